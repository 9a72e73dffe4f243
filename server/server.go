// Package server provides a mock comdirect API for tests: the full login
// protocol with a controllable TAN challenge, token issuance and rotation,
// and the banking endpoints backed by in-memory data.
package server

import (
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/metabubble/go-comdirect"
	"github.com/metabubble/go-comdirect/server/backend"
)

type Server struct {
	// r is the gin router.
	r *gin.Engine

	// s is the underlying server.
	s *httptest.Server

	// b is the server backend, which manages users, tokens, sessions and
	// banking data.
	b *backend.Backend

	// callWatchers records calls received by the server.
	callWatchers     []callWatcher
	callWatchersLock sync.RWMutex

	// offline is whether to pretend the server is down and return 5xx errors.
	offline bool
}

func New(opts ...Option) *Server {
	builder := newServerBuilder()

	for _, opt := range opts {
		opt.config(builder)
	}

	return builder.build()
}

func (s *Server) GetHostURL() string {
	return s.s.URL
}

// AddCallWatcher registers fn for every call whose path is in paths, or for
// all calls if paths is empty.
func (s *Server) AddCallWatcher(fn func(Call), paths ...string) {
	s.callWatchersLock.Lock()
	defer s.callWatchersLock.Unlock()

	s.callWatchers = append(s.callWatchers, newCallWatcher(fn, paths...))
}

func (s *Server) CreateUser(username, password string) (string, error) {
	return s.b.CreateUser(username, password)
}

// AddBalance registers an account balance for the user; the account becomes
// known under balance.AccountID.
func (s *Server) AddBalance(userID string, balance comdirect.AccountBalance) {
	s.b.AddBalance(userID, balance)
}

func (s *Server) AddTransaction(accountID string, tx comdirect.Transaction) error {
	return s.b.AddTransaction(accountID, tx)
}

// SetApproveAfter controls the TAN challenge: it is approved on the nth
// status poll, or never if n is negative.
func (s *Server) SetApproveAfter(polls int) {
	s.b.SetApproveAfter(polls)
}

func (s *Server) SetAuthLife(authLife time.Duration) {
	s.b.SetAuthLife(authLife)
}

func (s *Server) SetOffline(offline bool) {
	s.offline = offline
}

func (s *Server) Close() {
	s.s.Close()
}
