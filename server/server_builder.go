package server

import (
	"io"
	"net/http/httptest"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/metabubble/go-comdirect/server/backend"
)

type serverBuilder struct {
	withTLS  bool
	authLife time.Duration
	logger   io.Writer
}

func newServerBuilder() *serverBuilder {
	var logger io.Writer

	if os.Getenv("GO_COMDIRECT_SERVER_LOGGER_ENABLED") != "" {
		logger = gin.DefaultWriter
	} else {
		logger = io.Discard
	}

	return &serverBuilder{
		authLife: 10 * time.Minute,
		logger:   logger,
	}
}

func (builder *serverBuilder) build() *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		r: gin.New(),
		b: backend.New(builder.authLife),
	}

	if builder.withTLS {
		s.s = httptest.NewTLSServer(s.r)
	} else {
		s.s = httptest.NewServer(s.r)
	}

	s.r.Use(
		gin.LoggerWithConfig(gin.LoggerConfig{Output: builder.logger}),
		gin.Recovery(),
		s.logCalls(),
		s.handleOffline(),
	)

	initRouter(s)

	return s
}

// Option represents a type that can be used to configure the server.
type Option interface {
	config(*serverBuilder)
}

// WithTLS controls whether the server should serve over TLS.
func WithTLS(tls bool) Option {
	return &withTLS{
		withTLS: tls,
	}
}

type withTLS struct {
	withTLS bool
}

func (opt withTLS) config(builder *serverBuilder) {
	builder.withTLS = opt.withTLS
}

// WithAuthLife controls the lifetime of issued access tokens.
func WithAuthLife(authLife time.Duration) Option {
	return &withAuthLife{
		authLife: authLife,
	}
}

type withAuthLife struct {
	authLife time.Duration
}

func (opt withAuthLife) config(builder *serverBuilder) {
	builder.authLife = opt.authLife
}

// WithLogger controls where Gin logs to.
func WithLogger(logger io.Writer) Option {
	return &withLogger{
		logger: logger,
	}
}

type withLogger struct {
	logger io.Writer
}

func (opt withLogger) config(builder *serverBuilder) {
	builder.logger = opt.logger
}
