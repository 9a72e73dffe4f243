package comdirect_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/metabubble/go-comdirect"
	"github.com/metabubble/go-comdirect/server"
)

func TestClient_Refresh(t *testing.T) {
	s := server.New()
	defer s.Close()

	_, err := s.CreateUser("username", "password")
	require.NoError(t, err)

	m := comdirect.New(
		comdirect.WithHostURL(s.GetHostURL()),
		comdirect.WithTANPollInterval(10*time.Millisecond),
	)
	defer m.Close()

	c, auth, err := m.NewClientWithLogin(context.Background(), testCreds)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Refresh(context.Background()))

	// The whole token set was swapped.
	acc, err := c.AccessToken()
	require.NoError(t, err)
	require.NotEqual(t, auth.AccessToken, acc)
	require.True(t, c.IsAuthenticated())
}

func TestClient_RefreshFailureClearsTokensAndNotifies(t *testing.T) {
	s := server.New()
	defer s.Close()

	m := comdirect.New(comdirect.WithHostURL(s.GetHostURL()))
	defer m.Close()

	// A token set whose refresh token the server has never issued.
	c := m.NewClient(testCreds.ClientID, testCreds.ClientSecret, comdirect.Auth{
		AccessToken:  "stale",
		RefreshToken: "bogus",
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	defer c.Close()

	var reasons []string

	// The first handler panics; the remaining ones must still run.
	c.AddReauthHandler(func(reason string) {
		reasons = append(reasons, "first:"+reason)
		panic("handler panic")
	})
	c.AddReauthHandler(func(reason string) {
		reasons = append(reasons, "second:"+reason)
	})

	err := c.Refresh(context.Background())
	require.True(t, errors.Is(err, comdirect.ErrAuthentication))

	// All handlers ran, in registration order, exactly once.
	require.Equal(t, []string{
		"first:" + comdirect.ReasonTokenRefreshFailed,
		"second:" + comdirect.ReasonTokenRefreshFailed,
	}, reasons)

	// The token set is gone as a unit.
	require.False(t, c.IsAuthenticated())

	_, err = c.AccessToken()
	require.True(t, errors.Is(err, comdirect.ErrTokenExpired))
}

func TestClient_BackgroundRefresh(t *testing.T) {
	s := server.New()
	defer s.Close()

	_, err := s.CreateUser("username", "password")
	require.NoError(t, err)

	// With the threshold above the token lifetime, the background loop
	// refreshes on its first tick.
	m := comdirect.New(
		comdirect.WithHostURL(s.GetHostURL()),
		comdirect.WithTANPollInterval(10*time.Millisecond),
		comdirect.WithRefreshThreshold(time.Hour),
	)
	defer m.Close()

	c, auth, err := m.NewClientWithLogin(context.Background(), testCreds)
	require.NoError(t, err)
	defer c.Close()

	require.Eventually(t, func() bool {
		acc, err := c.AccessToken()
		return err == nil && acc != auth.AccessToken
	}, 5*time.Second, 50*time.Millisecond)
}

func TestClient_ExpiredTokenNeverSent(t *testing.T) {
	s := server.New()
	defer s.Close()

	var calls int

	s.AddCallWatcher(func(server.Call) {
		calls++
	})

	m := comdirect.New(comdirect.WithHostURL(s.GetHostURL()))
	defer m.Close()

	c := m.NewClient(testCreds.ClientID, testCreds.ClientSecret, comdirect.Auth{
		AccessToken: "expired",
		TokenType:   "bearer",
		ExpiresAt:   time.Now().Add(-time.Minute),
	})
	defer c.Close()

	_, err := c.GetAccountBalances(context.Background())
	require.True(t, errors.Is(err, comdirect.ErrTokenExpired))

	// The expiry was detected locally; nothing reached the wire.
	require.Zero(t, calls)
}

func TestClient_CloseStopsRefreshLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := server.New()

	_, err := s.CreateUser("username", "password")
	require.NoError(t, err)

	m := comdirect.New(
		comdirect.WithHostURL(s.GetHostURL()),
		comdirect.WithTANPollInterval(10*time.Millisecond),
	)

	c, _, err := m.NewClientWithLogin(context.Background(), testCreds)
	require.NoError(t, err)

	c.Close()
	c.Close() // Closing twice is fine.

	require.False(t, c.IsAuthenticated())

	m.Close()
	s.Close()
}
