package comdirect

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// Manager wraps the shared HTTP transport used by all clients created from it.
type Manager struct {
	rc *resty.Client

	tanPollInterval  time.Duration
	tanTimeout       time.Duration
	refreshThreshold time.Duration
}

// New creates a new manager with the given options.
func New(opts ...Option) *Manager {
	builder := newManagerBuilder()

	for _, opt := range opts {
		opt.config(builder)
	}

	return builder.build()
}

// r returns a new request bound to the given context.
func (m *Manager) r(ctx context.Context) *resty.Request {
	return m.rc.R().SetContext(ctx)
}

func (m *Manager) Close() {
	m.rc.GetClient().CloseIdleConnections()
}

// checkStatus converts a finished call into a classified error, or nil.
func (m *Manager) checkStatus(op string, class opClass, res *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%v: %w", op, err)
	}

	if !res.IsError() {
		return nil
	}

	apiErr := classifyStatus(op, class, res.StatusCode())

	logrus.WithFields(logrus.Fields{
		"pkg":    "go-comdirect",
		"op":     op,
		"status": res.StatusCode(),
		"kind":   apiErr.Kind,
	}).Debug("API call failed")

	return apiErr
}

// requestInfo builds the x-http-request-info header the API requires on
// session and banking calls.
func requestInfo(sessionID string) string {
	return fmt.Sprintf(`{"clientRequestId":{"sessionId":%q,"requestId":%q}}`, sessionID, requestID())
}

// requestID is a 9-digit identifier unique enough for request correlation.
func requestID() string {
	return fmt.Sprintf("%09d", time.Now().UnixNano()%1e9)
}

// InsecureTransport returns an HTTP transport that skips certificate
// verification. For tests against a TLS mock server only.
func InsecureTransport() http.RoundTripper {
	return &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
}

func catchDialError(res *resty.Response, err error) bool {
	return res.RawResponse == nil
}
