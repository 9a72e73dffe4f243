package comdirect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NewClientWithLogin runs the full five-step login protocol and returns an
// authenticated client together with its initial token set:
//
//  1. password grant for a pre-verification token pair
//  2. session identification under the pre-verification token
//  3. TAN challenge creation
//  4. polling for challenge approval on the user's device
//  5. session activation and secondary token exchange
//
// No step is retried; the first failure aborts the attempt and no token
// state is kept. Canceling ctx during the polling step stops the login
// promptly.
func (m *Manager) NewClientWithLogin(ctx context.Context, creds Credentials) (*Client, Auth, error) {
	flow := &loginFlow{m: m, creds: creds}

	auth, err := flow.run(ctx)
	if err != nil {
		return nil, Auth{}, err
	}

	return m.newClient(creds.ClientID, creds.ClientSecret, flow.sessionID, auth), auth, nil
}

// NewClientWithRefresh creates a client from a previously obtained refresh
// token, skipping the interactive login.
func (m *Manager) NewClientWithRefresh(ctx context.Context, clientID, clientSecret, refreshToken string) (*Client, Auth, error) {
	res, err := m.refreshGrant(ctx, clientID, clientSecret, refreshToken)
	if err != nil {
		return nil, Auth{}, err
	}

	auth := res.toAuth(time.Now())

	return m.newClient(clientID, clientSecret, uuid.NewString(), auth), auth, nil
}

// NewClient creates a client from a complete, externally obtained token set.
// The token set is installed atomically; there is no way to set its fields
// one by one.
func (m *Manager) NewClient(clientID, clientSecret string, auth Auth) *Client {
	return m.newClient(clientID, clientSecret, uuid.NewString(), auth)
}

// loginFlow drives one attempt of the login protocol. A flow is used exactly
// once; a fresh attempt starts over with a new session identifier.
type loginFlow struct {
	m     *Manager
	creds Credentials

	state AuthState

	// sessionID is generated locally, once per attempt.
	sessionID string

	// session is the server-assigned session record.
	session Session

	challenge Challenge

	// grant is the pre-verification token pair from step 1. It cannot access
	// business data and is discarded if any later step fails.
	grant tokenRes
}

// Session pairs the locally generated session identifier with the
// server-assigned session-status record. It lives for one login attempt.
type Session struct {
	ID     string
	Status SessionStatus
}

func (f *loginFlow) run(ctx context.Context) (Auth, error) {
	auth, err := f.steps(ctx)
	if err != nil {
		f.state = StateFailed
		f.grant = tokenRes{}

		return Auth{}, err
	}

	f.state = StateAuthenticated

	return auth, nil
}

func (f *loginFlow) steps(ctx context.Context) (Auth, error) {
	log := logrus.WithField("pkg", "go-comdirect")

	// Step 1: password grant.
	grant, err := f.m.passwordGrant(ctx, f.creds)
	if err != nil {
		return Auth{}, err
	}

	f.grant = grant
	f.state = StateGrantObtained

	// Step 2: session identification.
	f.sessionID = uuid.NewString()

	status, err := f.m.sessionStatus(ctx, f.grant.AccessToken, f.sessionID)
	if err != nil {
		return Auth{}, err
	}

	f.session = Session{ID: f.sessionID, Status: status}
	f.state = StateSessionValidated

	// Step 3: TAN challenge creation.
	challenge, err := f.m.validateSession(ctx, f.grant.AccessToken, f.sessionID, status.Identifier)
	if err != nil {
		return Auth{}, err
	}

	f.challenge = challenge
	f.state = StateChallengePending

	log.WithField("typ", challenge.Typ).Info("Waiting for TAN approval")

	// Step 4: poll for approval.
	if err := f.pollApproval(ctx); err != nil {
		return Auth{}, err
	}

	// Step 5: session activation and secondary token exchange.
	if _, err := f.m.activateSession(ctx, f.grant.AccessToken, f.sessionID, status.Identifier, challenge.ID); err != nil {
		return Auth{}, err
	}

	final, err := f.m.secondaryGrant(ctx, f.creds.ClientID, f.creds.ClientSecret, f.grant.AccessToken)
	if err != nil {
		return Auth{}, err
	}

	log.Info("Login complete")

	return final.toAuth(time.Now()), nil
}

// pollApproval polls the challenge status at a fixed cadence until the
// challenge is approved, the timeout elapses, or ctx is canceled. There is
// no backoff; the cadence is fixed regardless of elapsed time.
func (f *loginFlow) pollApproval(ctx context.Context) error {
	ticker := time.NewTicker(f.m.tanPollInterval)
	defer ticker.Stop()

	deadline := time.Now().Add(f.m.tanTimeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
		}

		status, err := f.m.challengeStatus(ctx, f.grant.AccessToken, f.sessionID, f.challenge.ID)
		if err != nil {
			return err
		}

		switch status {
		case ChallengeApproved:
			f.state = StateChallengeApproved
			return nil

		case ChallengeExpired:
			return &Error{Kind: KindTANTimeout, Op: "challenge status", Message: "TAN challenge expired"}
		}

		if !time.Now().Before(deadline) {
			return &Error{Kind: KindTANTimeout, Op: "challenge status", Message: "TAN challenge not approved in time"}
		}
	}
}

func (m *Manager) passwordGrant(ctx context.Context, creds Credentials) (tokenRes, error) {
	var res tokenRes

	r, err := m.r(ctx).
		SetFormData(map[string]string{
			"client_id":     creds.ClientID,
			"client_secret": creds.ClientSecret,
			"grant_type":    "password",
			"username":      creds.Username,
			"password":      creds.Password,
		}).
		SetResult(&res).
		Post("/oauth/token")

	if err := m.checkStatus("password grant", opAuth, r, err); err != nil {
		return tokenRes{}, err
	}

	return res, nil
}

func (m *Manager) sessionStatus(ctx context.Context, accessToken, sessionID string) (SessionStatus, error) {
	var res []SessionStatus

	r, err := m.r(ctx).
		SetAuthToken(accessToken).
		SetHeader("x-http-request-info", requestInfo(sessionID)).
		SetResult(&res).
		Get("/api/session/clients/user/v1/sessions")

	if err := m.checkStatus("session status", opAuth, r, err); err != nil {
		return SessionStatus{}, err
	}

	if len(res) == 0 {
		return SessionStatus{}, &Error{Kind: KindAuthentication, Op: "session status", Message: "no session visible server-side"}
	}

	return res[0], nil
}

func (m *Manager) validateSession(ctx context.Context, accessToken, sessionID, serverSessionID string) (Challenge, error) {
	r, err := m.r(ctx).
		SetAuthToken(accessToken).
		SetHeader("x-http-request-info", requestInfo(sessionID)).
		SetBody(SessionStatus{Identifier: serverSessionID, SessionTANActive: true, Activated2FA: true}).
		Post("/api/session/clients/user/v1/sessions/" + url.PathEscape(serverSessionID) + "/validate")

	if err := m.checkStatus("session validate", opAuth, r, err); err != nil {
		return Challenge{}, err
	}

	// The challenge travels in a response header, not the body.
	var challenge Challenge

	if err := json.Unmarshal([]byte(r.Header().Get("x-once-authentication-info")), &challenge); err != nil {
		return Challenge{}, fmt.Errorf("session validate: malformed challenge header: %w", err)
	}

	return challenge, nil
}

func (m *Manager) challengeStatus(ctx context.Context, accessToken, sessionID, challengeID string) (string, error) {
	var res challengeStatusRes

	r, err := m.r(ctx).
		SetAuthToken(accessToken).
		SetHeader("x-http-request-info", requestInfo(sessionID)).
		SetResult(&res).
		Get("/api/session/v1/tan/" + url.PathEscape(challengeID) + "/status")

	if err := m.checkStatus("challenge status", opAuth, r, err); err != nil {
		return "", err
	}

	return res.Status, nil
}

func (m *Manager) activateSession(ctx context.Context, accessToken, sessionID, serverSessionID, challengeID string) (SessionStatus, error) {
	var res SessionStatus

	r, err := m.r(ctx).
		SetAuthToken(accessToken).
		SetHeader("x-http-request-info", requestInfo(sessionID)).
		SetHeader("x-once-authentication-info", fmt.Sprintf(`{"id":%q}`, challengeID)).
		SetBody(SessionStatus{Identifier: serverSessionID, SessionTANActive: true, Activated2FA: true}).
		SetResult(&res).
		Patch("/api/session/clients/user/v1/sessions/" + url.PathEscape(serverSessionID))

	if err := m.checkStatus("session activate", opAuth, r, err); err != nil {
		return SessionStatus{}, err
	}

	return res, nil
}

func (m *Manager) secondaryGrant(ctx context.Context, clientID, clientSecret, accessToken string) (tokenRes, error) {
	var res tokenRes

	r, err := m.r(ctx).
		SetFormData(map[string]string{
			"client_id":     clientID,
			"client_secret": clientSecret,
			"grant_type":    "cd_secondary",
			"token":         accessToken,
		}).
		SetResult(&res).
		Post("/oauth/token")

	if err := m.checkStatus("secondary grant", opAuth, r, err); err != nil {
		return tokenRes{}, err
	}

	return res, nil
}

func (m *Manager) refreshGrant(ctx context.Context, clientID, clientSecret, refreshToken string) (tokenRes, error) {
	var res tokenRes

	r, err := m.r(ctx).
		SetFormData(map[string]string{
			"client_id":     clientID,
			"client_secret": clientSecret,
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
		}).
		SetResult(&res).
		Post("/oauth/token")

	if err := m.checkStatus("refresh grant", opAuth, r, err); err != nil {
		return tokenRes{}, err
	}

	return res, nil
}
