package comdirect_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/metabubble/go-comdirect"
	"github.com/metabubble/go-comdirect/server"
)

var testCreds = comdirect.Credentials{
	ClientID:     "User_XXX",
	ClientSecret: "secret",
	Username:     "username",
	Password:     "password",
}

func TestLogin(t *testing.T) {
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

	require.NotEmpty(t, auth.AccessToken)
	require.NotEmpty(t, auth.RefreshToken)
	require.True(t, auth.ExpiresAt.After(time.Now()))

	require.True(t, c.IsAuthenticated())

	acc, err := c.AccessToken()
	require.NoError(t, err)
	require.Equal(t, auth.AccessToken, acc)
}

func TestLogin_BadCredentials(t *testing.T) {
	s := server.New()
	defer s.Close()

	_, err := s.CreateUser("username", "password")
	require.NoError(t, err)

	m := comdirect.New(
		comdirect.WithHostURL(s.GetHostURL()),
		comdirect.WithTANPollInterval(10*time.Millisecond),
	)
	defer m.Close()

	creds := testCreds
	creds.Password = "wrong"

	_, _, err = m.NewClientWithLogin(context.Background(), creds)
	require.True(t, errors.Is(err, comdirect.ErrAuthentication))
}

func TestLogin_TANApprovedAfterPolling(t *testing.T) {
	s := server.New()
	defer s.Close()

	// Approval arrives on the third status poll.
	s.SetApproveAfter(3)

	_, err := s.CreateUser("username", "password")
	require.NoError(t, err)

	m := comdirect.New(
		comdirect.WithHostURL(s.GetHostURL()),
		comdirect.WithTANPollInterval(10*time.Millisecond),
	)
	defer m.Close()

	c, _, err := m.NewClientWithLogin(context.Background(), testCreds)
	require.NoError(t, err)
	defer c.Close()

	require.True(t, c.IsAuthenticated())
}

func TestLogin_TANTimeout(t *testing.T) {
	s := server.New()
	defer s.Close()

	// The challenge is never approved.
	s.SetApproveAfter(-1)

	_, err := s.CreateUser("username", "password")
	require.NoError(t, err)

	m := comdirect.New(
		comdirect.WithHostURL(s.GetHostURL()),
		comdirect.WithTANPollInterval(10*time.Millisecond),
		comdirect.WithTANTimeout(50*time.Millisecond),
	)
	defer m.Close()

	_, _, err = m.NewClientWithLogin(context.Background(), testCreds)
	require.True(t, errors.Is(err, comdirect.ErrTANTimeout))
}

func TestLogin_CanceledDuringPolling(t *testing.T) {
	s := server.New()
	defer s.Close()

	s.SetApproveAfter(-1)

	_, err := s.CreateUser("username", "password")
	require.NoError(t, err)

	m := comdirect.New(
		comdirect.WithHostURL(s.GetHostURL()),
		comdirect.WithTANPollInterval(10*time.Millisecond),
	)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, _, err = m.NewClientWithLogin(ctx, testCreds)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestLogin_TLS(t *testing.T) {
	s := server.New(server.WithTLS(true))
	defer s.Close()

	_, err := s.CreateUser("username", "password")
	require.NoError(t, err)

	m := comdirect.New(
		comdirect.WithHostURL(s.GetHostURL()),
		comdirect.WithTransport(comdirect.InsecureTransport()),
		comdirect.WithTANPollInterval(10*time.Millisecond),
	)
	defer m.Close()

	c, _, err := m.NewClientWithLogin(context.Background(), testCreds)
	require.NoError(t, err)
	defer c.Close()

	require.True(t, c.IsAuthenticated())
}

func TestNewClientWithRefresh(t *testing.T) {
	s := server.New()
	defer s.Close()

	_, err := s.CreateUser("username", "password")
	require.NoError(t, err)

	m := comdirect.New(
		comdirect.WithHostURL(s.GetHostURL()),
		comdirect.WithTANPollInterval(10*time.Millisecond),
	)
	defer m.Close()

	c1, auth, err := m.NewClientWithLogin(context.Background(), testCreds)
	require.NoError(t, err)
	c1.Close()

	// A fresh client from the refresh token alone, no interactive login.
	c2, auth2, err := m.NewClientWithRefresh(context.Background(), testCreds.ClientID, testCreds.ClientSecret, auth.RefreshToken)
	require.NoError(t, err)
	defer c2.Close()

	require.True(t, c2.IsAuthenticated())
	require.NotEqual(t, auth.AccessToken, auth2.AccessToken)
}
