package comdirect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TokenRecord is the persisted form of a token set.
type TokenRecord struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	TokenType    string    `json:"tokenType"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// TokenStore persists the current token set across process restarts.
type TokenStore interface {
	Load() (TokenRecord, error)
	Save(TokenRecord) error
}

// ErrNoStoredToken is returned by Load when the store holds no record.
var ErrNoStoredToken = errors.New("no stored token")

// FileTokenStore keeps the token record in a single JSON file, written with
// owner-only permissions.
type FileTokenStore struct {
	path string
	lock sync.Mutex
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Load() (TokenRecord, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return TokenRecord{}, ErrNoStoredToken
	} else if err != nil {
		return TokenRecord{}, fmt.Errorf("token store: %w", err)
	}

	var rec TokenRecord

	if err := json.Unmarshal(raw, &rec); err != nil {
		return TokenRecord{}, fmt.Errorf("token store: malformed record: %w", err)
	}

	return rec, nil
}

func (s *FileTokenStore) Save(rec TokenRecord) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("token store: %w", err)
	}

	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("token store: %w", err)
	}

	return nil
}

// NewClientFromStore creates a client from a persisted token record. A still
// valid record is reused as-is; an expired one is exchanged via the refresh
// grant. The store stays attached and is rewritten after every successful
// refresh.
func (m *Manager) NewClientFromStore(ctx context.Context, clientID, clientSecret string, store TokenStore) (*Client, Auth, error) {
	rec, err := store.Load()
	if err != nil {
		return nil, Auth{}, err
	}

	if time.Now().Before(rec.ExpiresAt) {
		auth := Auth{
			AccessToken:  rec.AccessToken,
			RefreshToken: rec.RefreshToken,
			TokenType:    rec.TokenType,
			ExpiresAt:    rec.ExpiresAt,
		}

		c := m.newClient(clientID, clientSecret, uuid.NewString(), auth)
		c.SetTokenStore(store)

		return c, auth, nil
	}

	c, auth, err := m.NewClientWithRefresh(ctx, clientID, clientSecret, rec.RefreshToken)
	if err != nil {
		return nil, Auth{}, err
	}

	c.SetTokenStore(store)

	return c, auth, nil
}
