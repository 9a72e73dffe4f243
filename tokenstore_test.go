package comdirect_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/metabubble/go-comdirect"
	"github.com/metabubble/go-comdirect/server"
)

func TestFileTokenStore(t *testing.T) {
	store := comdirect.NewFileTokenStore(filepath.Join(t.TempDir(), "tokens.json"))

	_, err := store.Load()
	require.True(t, errors.Is(err, comdirect.ErrNoStoredToken))

	rec := comdirect.TokenRecord{
		AccessToken:  "acc",
		RefreshToken: "ref",
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}

	require.NoError(t, store.Save(rec))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, rec.AccessToken, loaded.AccessToken)
	require.Equal(t, rec.RefreshToken, loaded.RefreshToken)
	require.Equal(t, rec.TokenType, loaded.TokenType)
	require.True(t, rec.ExpiresAt.Equal(loaded.ExpiresAt))
}

func TestClient_TokenStoreRewrittenAfterRefresh(t *testing.T) {
	s := server.New()
	defer s.Close()

	_, c, _ := newTestClient(t, s)

	store := comdirect.NewFileTokenStore(filepath.Join(t.TempDir(), "tokens.json"))

	// Attaching the store persists the current token set immediately.
	c.SetTokenStore(store)

	before, err := store.Load()
	require.NoError(t, err)
	require.NotEmpty(t, before.AccessToken)

	require.NoError(t, c.Refresh(context.Background()))

	after, err := store.Load()
	require.NoError(t, err)
	require.NotEqual(t, before.AccessToken, after.AccessToken)
}

func TestNewClientFromStore_ValidRecord(t *testing.T) {
	s := server.New()
	defer s.Close()

	_, c1, userID := newTestClient(t, s)

	s.AddBalance(userID, comdirect.AccountBalance{AccountID: "account-1", Balance: euro("1.00")})

	store := comdirect.NewFileTokenStore(filepath.Join(t.TempDir(), "tokens.json"))
	c1.SetTokenStore(store)
	c1.Close()

	m := comdirect.New(comdirect.WithHostURL(s.GetHostURL()))
	defer m.Close()

	// The stored token set is still valid and reused as-is.
	c2, auth, err := m.NewClientFromStore(context.Background(), testCreds.ClientID, testCreds.ClientSecret, store)
	require.NoError(t, err)
	defer c2.Close()

	rec, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, rec.AccessToken, auth.AccessToken)

	balances, err := c2.GetAccountBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 1)
}

func TestNewClientFromStore_ExpiredRecord(t *testing.T) {
	s := server.New()
	defer s.Close()

	_, c1, userID := newTestClient(t, s)

	s.AddBalance(userID, comdirect.AccountBalance{AccountID: "account-1", Balance: euro("1.00")})

	store := comdirect.NewFileTokenStore(filepath.Join(t.TempDir(), "tokens.json"))
	c1.SetTokenStore(store)
	c1.Close()

	// Backdate the stored expiry so only the refresh token is usable.
	rec, err := store.Load()
	require.NoError(t, err)

	rec.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.Save(rec))

	m := comdirect.New(comdirect.WithHostURL(s.GetHostURL()))
	defer m.Close()

	c2, auth, err := m.NewClientFromStore(context.Background(), testCreds.ClientID, testCreds.ClientSecret, store)
	require.NoError(t, err)
	defer c2.Close()

	require.NotEqual(t, rec.AccessToken, auth.AccessToken)

	// The rotated token set was written back.
	after, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, auth.AccessToken, after.AccessToken)

	balances, err := c2.GetAccountBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 1)
}

func TestNewClientFromStore_NoRecord(t *testing.T) {
	m := comdirect.New()
	defer m.Close()

	store := comdirect.NewFileTokenStore(filepath.Join(t.TempDir(), "tokens.json"))

	_, _, err := m.NewClientFromStore(context.Background(), testCreds.ClientID, testCreds.ClientSecret, store)
	require.True(t, errors.Is(err, comdirect.ErrNoStoredToken))
}
