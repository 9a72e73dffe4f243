// Package backend holds the state behind the mock comdirect server: users,
// tokens, login sessions, TAN challenges and banking data.
package backend

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/metabubble/go-comdirect"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidSession     = errors.New("invalid session")
	ErrInvalidChallenge   = errors.New("invalid challenge")
	ErrNotApproved        = errors.New("challenge not approved")
	ErrUnknownAccount     = errors.New("unknown account")
	ErrUserExists         = errors.New("user already exists")
)

// Token scopes. A password grant yields a session-scoped token which cannot
// access banking data; the secondary grant upgrades it.
const (
	ScopeSession = "SESSION"
	ScopeBanking = "BANKING"
)

type Backend struct {
	lock sync.RWMutex

	authLife time.Duration

	// approveAfter is the number of status polls after which a TAN challenge
	// counts as approved. Negative means never.
	approveAfter int

	users map[string]*user

	tokens  map[string]*token
	refresh map[string]*token

	sessions   map[string]*session
	challenges map[string]*challenge

	balances     map[string][]comdirect.AccountBalance
	transactions map[string][]comdirect.Transaction
	accountOwner map[string]string
}

type user struct {
	userID   string
	username string
	password string
}

type token struct {
	acc    string
	ref    string
	userID string
	scope  string
	exp    time.Time
}

type session struct {
	id        string
	userID    string
	tanActive bool
}

type challenge struct {
	id        string
	typ       string
	userID    string
	sessionID string
	polls     int
	approved  bool
}

// TokenPair is a minted token pair in its wire form.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// TokenInfo is the middleware's view of a presented access token.
type TokenInfo struct {
	UserID string
	Scope  string
}

func New(authLife time.Duration) *Backend {
	return &Backend{
		authLife:     authLife,
		approveAfter: 1,
		users:        make(map[string]*user),
		tokens:       make(map[string]*token),
		refresh:      make(map[string]*token),
		sessions:     make(map[string]*session),
		challenges:   make(map[string]*challenge),
		balances:     make(map[string][]comdirect.AccountBalance),
		transactions: make(map[string][]comdirect.Transaction),
		accountOwner: make(map[string]string),
	}
}

func (b *Backend) SetAuthLife(authLife time.Duration) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.authLife = authLife
}

func (b *Backend) SetApproveAfter(polls int) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.approveAfter = polls
}

func (b *Backend) CreateUser(username, password string) (string, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if _, ok := b.users[username]; ok {
		return "", ErrUserExists
	}

	u := &user{
		userID:   uuid.NewString(),
		username: username,
		password: password,
	}

	b.users[username] = u

	return u.userID, nil
}

func (b *Backend) AddBalance(userID string, balance comdirect.AccountBalance) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.balances[userID] = append(b.balances[userID], balance)
	b.accountOwner[balance.AccountID] = userID
}

func (b *Backend) AddTransaction(accountID string, tx comdirect.Transaction) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if _, ok := b.accountOwner[accountID]; !ok {
		return ErrUnknownAccount
	}

	b.transactions[accountID] = append(b.transactions[accountID], tx)

	return nil
}

func (b *Backend) PasswordGrant(username, password string) (TokenPair, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	u, ok := b.users[username]
	if !ok || u.password != password {
		return TokenPair{}, ErrInvalidCredentials
	}

	return b.newToken(u.userID, ScopeSession), nil
}

// VerifyToken resolves a presented access token. Expired and unknown tokens
// are indistinguishable to the caller.
func (b *Backend) VerifyToken(acc string) (TokenInfo, bool) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	tok, ok := b.tokens[acc]
	if !ok || time.Now().After(tok.exp) {
		return TokenInfo{}, false
	}

	return TokenInfo{UserID: tok.userID, Scope: tok.scope}, true
}

// GetSessions returns the login session for the user, creating one on first
// call.
func (b *Backend) GetSessions(userID string) []comdirect.SessionStatus {
	b.lock.Lock()
	defer b.lock.Unlock()

	for _, ses := range b.sessions {
		if ses.userID == userID {
			return []comdirect.SessionStatus{{Identifier: ses.id, SessionTANActive: ses.tanActive}}
		}
	}

	ses := &session{id: uuid.NewString(), userID: userID}

	b.sessions[ses.id] = ses

	return []comdirect.SessionStatus{{Identifier: ses.id}}
}

func (b *Backend) CreateChallenge(userID, sessionID string) (comdirect.Challenge, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	ses, ok := b.sessions[sessionID]
	if !ok || ses.userID != userID {
		return comdirect.Challenge{}, ErrInvalidSession
	}

	ch := &challenge{
		id:        uuid.NewString(),
		typ:       "P_TAN_PUSH",
		userID:    userID,
		sessionID: sessionID,
	}

	b.challenges[ch.id] = ch

	return comdirect.Challenge{
		ID:             ch.id,
		Typ:            ch.typ,
		AvailableTypes: []string{"P_TAN_PUSH", "P_TAN_PHOTO"},
	}, nil
}

// PollChallenge reports the challenge status and advances the poll counter.
func (b *Backend) PollChallenge(userID, challengeID string) (string, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	ch, ok := b.challenges[challengeID]
	if !ok || ch.userID != userID {
		return "", ErrInvalidChallenge
	}

	ch.polls++

	if b.approveAfter >= 0 && ch.polls >= b.approveAfter {
		ch.approved = true
	}

	if ch.approved {
		return comdirect.ChallengeApproved, nil
	}

	return comdirect.ChallengePending, nil
}

// ActivateSession marks the session TAN-active once its challenge has been
// approved.
func (b *Backend) ActivateSession(userID, sessionID, challengeID string) (comdirect.SessionStatus, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	ses, ok := b.sessions[sessionID]
	if !ok || ses.userID != userID {
		return comdirect.SessionStatus{}, ErrInvalidSession
	}

	ch, ok := b.challenges[challengeID]
	if !ok || ch.sessionID != sessionID {
		return comdirect.SessionStatus{}, ErrInvalidChallenge
	}

	if !ch.approved {
		return comdirect.SessionStatus{}, ErrNotApproved
	}

	delete(b.challenges, challengeID)

	ses.tanActive = true

	return comdirect.SessionStatus{Identifier: ses.id, SessionTANActive: true, Activated2FA: true}, nil
}

// SecondaryGrant exchanges a session-scoped token whose session has been
// TAN-activated for a banking-scoped token pair.
func (b *Backend) SecondaryGrant(acc string) (TokenPair, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	tok, ok := b.tokens[acc]
	if !ok || time.Now().After(tok.exp) {
		return TokenPair{}, ErrInvalidToken
	}

	var active bool

	for _, ses := range b.sessions {
		if ses.userID == tok.userID && ses.tanActive {
			active = true
			break
		}
	}

	if !active {
		return TokenPair{}, ErrNotApproved
	}

	delete(b.tokens, tok.acc)

	return b.newToken(tok.userID, ScopeBanking), nil
}

// RefreshGrant rotates a token pair. The old pair is invalidated.
func (b *Backend) RefreshGrant(ref string) (TokenPair, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	tok, ok := b.refresh[ref]
	if !ok {
		return TokenPair{}, ErrInvalidToken
	}

	delete(b.tokens, tok.acc)
	delete(b.refresh, tok.ref)

	return b.newToken(tok.userID, tok.scope), nil
}

func (b *Backend) Balances(userID string) []comdirect.AccountBalance {
	b.lock.RLock()
	defer b.lock.RUnlock()

	return append([]comdirect.AccountBalance(nil), b.balances[userID]...)
}

func (b *Backend) Transactions(userID, accountID string) ([]comdirect.Transaction, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	if owner, ok := b.accountOwner[accountID]; !ok || owner != userID {
		return nil, ErrUnknownAccount
	}

	return append([]comdirect.Transaction(nil), b.transactions[accountID]...), nil
}

// newToken mints a token pair. Callers must hold the write lock.
func (b *Backend) newToken(userID, scope string) TokenPair {
	tok := &token{
		acc:    uuid.NewString(),
		ref:    uuid.NewString(),
		userID: userID,
		scope:  scope,
		exp:    time.Now().Add(b.authLife),
	}

	b.tokens[tok.acc] = tok
	b.refresh[tok.ref] = tok

	return TokenPair{
		AccessToken:  tok.acc,
		RefreshToken: tok.ref,
		ExpiresIn:    int(time.Until(tok.exp).Seconds()),
	}
}
