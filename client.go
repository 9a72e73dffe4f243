package comdirect

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// ReauthHandler is notified when the held tokens have become unusable and a
// fresh interactive login is required.
type ReauthHandler func(reason string)

// ReasonTokenRefreshFailed is the reason passed to reauth handlers when the
// refresh grant was rejected.
const ReasonTokenRefreshFailed = "token_refresh_failed"

// refreshTickInterval is the cadence of the background expiry check.
const refreshTickInterval = time.Second

// Client is an authenticated API client. It owns the current token set,
// keeps it fresh in the background, and attaches it to every business call.
type Client struct {
	m *Manager

	clientID     string
	clientSecret string

	// sessionID identifies this client in the x-http-request-info header.
	sessionID string

	acc      string
	ref      string
	typ      string
	exp      time.Time
	authLock sync.RWMutex

	reauthHandlers []ReauthHandler
	hookLock       sync.RWMutex

	store     TokenStore
	storeLock sync.Mutex

	// refreshing guards against overlapping refresh attempts.
	refreshing atomic.Bool

	stopRefresh chan struct{}
	refreshDone chan struct{}
	closeOnce   sync.Once
}

func (m *Manager) newClient(clientID, clientSecret, sessionID string, auth Auth) *Client {
	c := &Client{
		m:            m,
		clientID:     clientID,
		clientSecret: clientSecret,
		sessionID:    sessionID,
		stopRefresh:  make(chan struct{}),
		refreshDone:  make(chan struct{}),
	}

	c.withAuth(auth)

	go c.refreshLoop()

	return c
}

// IsAuthenticated reports whether a token set is present and not yet
// expired. It has no side effects.
func (c *Client) IsAuthenticated() bool {
	c.authLock.RLock()
	defer c.authLock.RUnlock()

	return c.acc != "" && time.Now().Before(c.exp)
}

// AccessToken returns the current access token, or a token-expired error if
// none is held or the held one has expired. The check is local; no network
// call is ever made with an expired token.
func (c *Client) AccessToken() (string, error) {
	c.authLock.RLock()
	defer c.authLock.RUnlock()

	if c.acc == "" || !time.Now().Before(c.exp) {
		return "", &Error{Kind: KindTokenExpired, Message: "access token expired"}
	}

	return c.acc, nil
}

// ExpiresAt returns the expiry of the current token set, or the zero time if
// none is held.
func (c *Client) ExpiresAt() time.Time {
	c.authLock.RLock()
	defer c.authLock.RUnlock()

	return c.exp
}

// AddReauthHandler registers a handler invoked when a refresh fails. All
// registered handlers are invoked, in registration order, exactly once per
// failure event.
func (c *Client) AddReauthHandler(handler ReauthHandler) {
	c.hookLock.Lock()
	defer c.hookLock.Unlock()

	c.reauthHandlers = append(c.reauthHandlers, handler)
}

// SetTokenStore attaches a store that is rewritten after every successful
// refresh. The current token set is written immediately.
func (c *Client) SetTokenStore(store TokenStore) {
	c.storeLock.Lock()
	c.store = store
	c.storeLock.Unlock()

	c.authLock.RLock()
	auth := Auth{AccessToken: c.acc, RefreshToken: c.ref, TokenType: c.typ, ExpiresAt: c.exp}
	c.authLock.RUnlock()

	c.saveAuth(auth)
}

// Refresh performs a single refresh-token grant. On success the token set is
// replaced as a unit; on failure it is cleared entirely and every reauth
// handler is notified once. Refresh never retries; if another refresh is
// already in flight the call returns immediately without a second attempt.
func (c *Client) Refresh(ctx context.Context) error {
	if !c.refreshing.CompareAndSwap(false, true) {
		return nil
	}
	defer c.refreshing.Store(false)

	c.authLock.RLock()
	ref := c.ref
	c.authLock.RUnlock()

	if ref == "" {
		return &Error{Kind: KindTokenExpired, Op: "token refresh", Message: "no refresh token held"}
	}

	res, err := c.m.refreshGrant(ctx, c.clientID, c.clientSecret, ref)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"pkg": "go-comdirect",
		}).WithError(err).Warn("Token refresh failed, clearing token set")

		c.clearAuth()
		c.notifyReauth(ReasonTokenRefreshFailed)

		return err
	}

	auth := res.toAuth(time.Now())

	c.withAuth(auth)
	c.saveAuth(auth)

	return nil
}

// Close stops the background refresh loop and clears all state. No reauth
// handler is invoked after Close returns.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.stopRefresh)
	})

	<-c.refreshDone

	c.clearAuth()

	c.hookLock.Lock()
	defer c.hookLock.Unlock()

	c.reauthHandlers = nil
}

// withAuth installs a complete token set as a single swap.
func (c *Client) withAuth(auth Auth) *Client {
	c.authLock.Lock()
	defer c.authLock.Unlock()

	c.acc = auth.AccessToken
	c.ref = auth.RefreshToken
	c.typ = auth.TokenType
	c.exp = auth.ExpiresAt

	return c
}

func (c *Client) clearAuth() {
	c.authLock.Lock()
	defer c.authLock.Unlock()

	c.acc = ""
	c.ref = ""
	c.typ = ""
	c.exp = time.Time{}
}

func (c *Client) notifyReauth(reason string) {
	c.hookLock.RLock()
	handlers := append([]ReauthHandler(nil), c.reauthHandlers...)
	c.hookLock.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				// A panicking handler must not stop the remaining handlers.
				if r := recover(); r != nil {
					logrus.WithFields(logrus.Fields{
						"pkg":   "go-comdirect",
						"panic": r,
					}).Error("Reauth handler panicked")
				}
			}()

			handler(reason)
		}()
	}
}

func (c *Client) saveAuth(auth Auth) {
	c.storeLock.Lock()
	store := c.store
	c.storeLock.Unlock()

	if store == nil {
		return
	}

	if err := store.Save(TokenRecord{
		AccessToken:  auth.AccessToken,
		RefreshToken: auth.RefreshToken,
		TokenType:    auth.TokenType,
		ExpiresAt:    auth.ExpiresAt,
	}); err != nil {
		logrus.WithField("pkg", "go-comdirect").WithError(err).Warn("Failed to persist token set")
	}
}

// refreshLoop refreshes the token set shortly before it expires. It runs for
// the lifetime of the client and is stopped by Close. At most one refresh
// attempt is in flight at a time.
func (c *Client) refreshLoop() {
	defer close(c.refreshDone)

	ticker := time.NewTicker(refreshTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopRefresh:
			return

		case <-ticker.C:
		}

		c.authLock.RLock()
		due := c.acc != "" && !time.Now().Before(c.exp.Add(-c.m.refreshThreshold))
		c.authLock.RUnlock()

		if !due {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

		if err := c.Refresh(ctx); err != nil {
			logrus.WithField("pkg", "go-comdirect").WithError(err).Warn("Background token refresh failed")
		}

		cancel()
	}
}

// newReq prepares an authenticated business request. It fails locally if the
// token set is absent or expired.
func (c *Client) newReq(ctx context.Context) (*resty.Request, error) {
	acc, err := c.AccessToken()
	if err != nil {
		return nil, err
	}

	return c.m.r(ctx).
		SetAuthToken(acc).
		SetHeader("x-http-request-info", requestInfo(c.sessionID)), nil
}

func (c *Client) do(ctx context.Context, op string, class opClass, fn func(*resty.Request) (*resty.Response, error)) error {
	req, err := c.newReq(ctx)
	if err != nil {
		return err
	}

	res, err := fn(req)

	return c.m.checkStatus(op, class, res, err)
}
