package comdirect

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultHostURL is the default host of the API.
	DefaultHostURL = "https://api.comdirect.de"

	// DefaultTANPollInterval is the fixed cadence at which the TAN challenge
	// status is polled during login.
	DefaultTANPollInterval = time.Second

	// DefaultTANTimeout is how long a login waits for the TAN challenge to be
	// approved before giving up.
	DefaultTANTimeout = 60 * time.Second

	// DefaultRefreshThreshold is how long before token expiry the background
	// loop refreshes the token.
	DefaultRefreshThreshold = 120 * time.Second
)

type managerBuilder struct {
	hostURL          string
	transport        http.RoundTripper
	cookieJar        http.CookieJar
	retryCount       int
	logger           resty.Logger
	debug            bool
	tanPollInterval  time.Duration
	tanTimeout       time.Duration
	refreshThreshold time.Duration
}

func newManagerBuilder() *managerBuilder {
	return &managerBuilder{
		hostURL:          DefaultHostURL,
		transport:        http.DefaultTransport,
		cookieJar:        nil,
		retryCount:       0,
		logger:           nil,
		debug:            false,
		tanPollInterval:  DefaultTANPollInterval,
		tanTimeout:       DefaultTANTimeout,
		refreshThreshold: DefaultRefreshThreshold,
	}
}

func (builder *managerBuilder) build() *Manager {
	m := &Manager{
		rc: resty.New(),

		tanPollInterval:  builder.tanPollInterval,
		tanTimeout:       builder.tanTimeout,
		refreshThreshold: builder.refreshThreshold,
	}

	// Set the API host.
	m.rc.SetBaseURL(builder.hostURL)

	// Set the transport.
	m.rc.SetTransport(builder.transport)

	// Set the cookie jar.
	m.rc.SetCookieJar(builder.cookieJar)

	// Set the logger.
	if builder.logger != nil {
		m.rc.SetLogger(builder.logger)
	}

	// Set the debug flag.
	m.rc.SetDebug(builder.debug)

	// The API rejects calls without an explicit Accept header.
	m.rc.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		req.SetHeader("Accept", "application/json")
		return nil
	})

	// Only transport-level failures are retried; HTTP error statuses are
	// classified and surfaced, never retried.
	m.rc.SetRetryCount(builder.retryCount)
	m.rc.AddRetryCondition(catchDialError)

	return m
}

// Option represents a type that can be used to configure the manager.
type Option interface {
	config(*managerBuilder)
}

// WithHostURL sets the API host the manager talks to.
func WithHostURL(hostURL string) Option {
	return &withHostURL{
		hostURL: hostURL,
	}
}

type withHostURL struct {
	hostURL string
}

func (opt withHostURL) config(builder *managerBuilder) {
	builder.hostURL = opt.hostURL
}

// WithTransport sets the HTTP transport used by the manager.
func WithTransport(transport http.RoundTripper) Option {
	return &withTransport{
		transport: transport,
	}
}

type withTransport struct {
	transport http.RoundTripper
}

func (opt withTransport) config(builder *managerBuilder) {
	builder.transport = opt.transport
}

// WithCookieJar sets the cookie jar used by the manager.
func WithCookieJar(jar http.CookieJar) Option {
	return &withCookieJar{
		jar: jar,
	}
}

type withCookieJar struct {
	jar http.CookieJar
}

func (opt withCookieJar) config(builder *managerBuilder) {
	builder.cookieJar = opt.jar
}

// WithRetryCount sets how often transport-level failures are retried.
func WithRetryCount(retryCount int) Option {
	return &withRetryCount{
		retryCount: retryCount,
	}
}

type withRetryCount struct {
	retryCount int
}

func (opt withRetryCount) config(builder *managerBuilder) {
	builder.retryCount = opt.retryCount
}

// WithLogger sets the logger the underlying HTTP client logs to.
func WithLogger(logger resty.Logger) Option {
	return &withLogger{
		logger: logger,
	}
}

type withLogger struct {
	logger resty.Logger
}

func (opt withLogger) config(builder *managerBuilder) {
	builder.logger = opt.logger
}

// WithDebug enables HTTP debug logging.
func WithDebug(debug bool) Option {
	return &withDebug{
		debug: debug,
	}
}

type withDebug struct {
	debug bool
}

func (opt withDebug) config(builder *managerBuilder) {
	builder.debug = opt.debug
}

// WithTANPollInterval overrides the TAN approval polling cadence.
func WithTANPollInterval(interval time.Duration) Option {
	return &withTANPollInterval{
		interval: interval,
	}
}

type withTANPollInterval struct {
	interval time.Duration
}

func (opt withTANPollInterval) config(builder *managerBuilder) {
	builder.tanPollInterval = opt.interval
}

// WithTANTimeout overrides how long a login waits for TAN approval.
func WithTANTimeout(timeout time.Duration) Option {
	return &withTANTimeout{
		timeout: timeout,
	}
}

type withTANTimeout struct {
	timeout time.Duration
}

func (opt withTANTimeout) config(builder *managerBuilder) {
	builder.tanTimeout = opt.timeout
}

// WithRefreshThreshold overrides how long before expiry tokens are refreshed.
func WithRefreshThreshold(threshold time.Duration) Option {
	return &withRefreshThreshold{
		threshold: threshold,
	}
}

type withRefreshThreshold struct {
	threshold time.Duration
}

func (opt withRefreshThreshold) config(builder *managerBuilder) {
	builder.refreshThreshold = opt.threshold
}
