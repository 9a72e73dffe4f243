package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/metabubble/go-comdirect/server/backend"
)

func initRouter(s *Server) {
	// Token grants are the only unauthenticated route.
	s.r.POST("/oauth/token", s.handlePostToken())

	// Session and TAN routes accept any valid token.
	if session := s.r.Group("/api/session", s.requireAuth()); session != nil {
		if sessions := session.Group("/clients/user/v1/sessions"); sessions != nil {
			sessions.GET("", s.handleGetSessions())
			sessions.POST("/:sessionID/validate", s.handlePostSessionValidate())
			sessions.PATCH("/:sessionID", s.handlePatchSession())
		}

		if tan := session.Group("/v1/tan"); tan != nil {
			tan.GET("/:challengeID/status", s.handleGetChallengeStatus())
		}
	}

	// Banking routes additionally need a banking-scoped token.
	if banking := s.r.Group("/api/banking", s.requireAuth(), s.requireScope(backend.ScopeBanking)); banking != nil {
		banking.GET("/clients/user/v2/accounts/balances", s.handleGetBalances())
		banking.GET("/v1/accounts/:accountID/transactions", s.handleGetTransactions())
	}
}

func (s *Server) logCalls() gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := io.ReadAll(c.Request.Body)
		if err != nil {
			panic(err)
		} else {
			c.Request.Body = io.NopCloser(bytes.NewReader(req))
		}

		res, err := newBodyWriter(c.Writer)
		if err != nil {
			panic(err)
		} else {
			c.Writer = res
		}

		c.Next()

		s.callWatchersLock.RLock()
		defer s.callWatchersLock.RUnlock()

		for _, call := range s.callWatchers {
			if call.isWatching(c.Request.URL.Path) {
				call.publish(Call{
					URL:    c.Request.URL,
					Method: c.Request.Method,
					Status: c.Writer.Status(),

					RequestHeader: c.Request.Header,
					RequestBody:   req,

					ResponseHeader: c.Writer.Header(),
					ResponseBody:   res.bytes(),
				})
			}
		}
	}
}

func (s *Server) handleOffline() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.offline {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
	}
}

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		info, ok := s.b.VerifyToken(parts[1])
		if !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Set("UserID", info.UserID)
		c.Set("Scope", info.Scope)
		c.Set("AccessToken", parts[1])
	}
}

func (s *Server) requireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("Scope") != scope {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
	}
}

type bodyWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func newBodyWriter(w gin.ResponseWriter) (*bodyWriter, error) {
	if w == nil {
		return nil, errors.New("response writer is nil")
	}

	return &bodyWriter{
		ResponseWriter: w,

		buf: &bytes.Buffer{},
	}, nil
}

func (w bodyWriter) Write(b []byte) (int, error) {
	if n, err := w.buf.Write(b); err != nil {
		return n, err
	}

	return w.ResponseWriter.Write(b)
}

func (w bodyWriter) bytes() []byte {
	return w.buf.Bytes()
}
