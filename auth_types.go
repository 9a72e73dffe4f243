package comdirect

import "time"

// AuthState tracks progress through a single login attempt. States only move
// forward; any failure jumps to StateFailed and a new attempt starts over
// from StateUnauthenticated.
type AuthState int

const (
	StateUnauthenticated AuthState = iota
	StateGrantObtained
	StateSessionValidated
	StateChallengePending
	StateChallengeApproved
	StateAuthenticated
	StateFailed
)

func (s AuthState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateGrantObtained:
		return "grant-obtained"
	case StateSessionValidated:
		return "session-validated"
	case StateChallengePending:
		return "challenge-pending"
	case StateChallengeApproved:
		return "challenge-approved"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Credentials hold the OAuth client pair and the user's login. They are never
// written to logs, not even partially.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// Auth is the token set produced by a successful login or refresh. It is
// always replaced as a unit; readers never observe an access token paired
// with a stale expiry.
type Auth struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

// tokenRes is the wire form of every /oauth/token response.
type tokenRes struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

func (res tokenRes) toAuth(now time.Time) Auth {
	return Auth{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    res.TokenType,
		ExpiresAt:    now.Add(time.Duration(res.ExpiresIn) * time.Second),
	}
}

// SessionStatus is the server-assigned view of a login session.
type SessionStatus struct {
	Identifier       string `json:"identifier"`
	SessionTANActive bool   `json:"sessionTanActive"`
	Activated2FA     bool   `json:"activated2FA"`
}

// Challenge describes a pending TAN approval. The challenge kind (Typ) is an
// opaque server string such as P_TAN_PUSH.
type Challenge struct {
	ID             string   `json:"id"`
	Typ            string   `json:"typ"`
	AvailableTypes []string `json:"availableTypes,omitempty"`
}

// Challenge statuses reported by the TAN status endpoint.
const (
	ChallengePending  = "PENDING"
	ChallengeApproved = "AUTHENTICATED"
	ChallengeExpired  = "EXPIRED"
)

type challengeStatusRes struct {
	Status string `json:"status"`
}
