package sdk

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/terraconstructs/estate/internal/authority"
	"github.com/terraconstructs/estate/pkg/api"
)

func credentialsFromSession(s *api.Session) *Credentials {
	return &Credentials{
		AccessToken: s.AccessToken,
		TokenType:   s.TokenType,
		ExpiresAt:   time.Unix(s.ExpiresAt, 0).UTC(),
		UserID:      s.User.ID,
		Email:       s.User.Email,
	}
}

func (c *Credentials) session() *authority.Session {
	return &authority.Session{
		AccessToken: c.AccessToken,
		ExpiresAt:   c.ExpiresAt,
		Principal:   authority.Principal{ID: c.UserID, Email: c.Email},
	}
}

func (c *Client) install(creds *Credentials, ev authority.EventType) (*authority.Session, error) {
	if err := c.store.SaveCredentials(creds); err != nil {
		return nil, authority.Unexpected("failed to store credentials", err)
	}
	sess := creds.session()
	c.events.emit(authority.AuthEvent{Type: ev, Session: sess})
	return sess, nil
}

// SignInWithPassword exchanges email and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*authority.Session, error) {
	var out api.Session
	err := c.do(ctx, c.http, http.MethodPost, api.AuthPrefix+"/token?grant_type=password", "",
		api.PasswordGrantRequest{Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	return c.install(credentialsFromSession(&out), authority.EventSignedIn)
}

// SignUp registers an account. The session is nil when the backend wants
// the account confirmed first.
func (c *Client) SignUp(ctx context.Context, email, password string, meta authority.SignUpMetadata) (*authority.GatewaySignUp, error) {
	var out api.SignUpResponse
	err := c.do(ctx, c.http, http.MethodPost, api.AuthPrefix+"/signup", "", api.SignUpRequest{
		Email:    email,
		Password: password,
		Data:     api.SignUpData{FirstName: meta.FirstName, LastName: meta.LastName},
	}, &out)
	if err != nil {
		return nil, err
	}

	res := &authority.GatewaySignUp{
		Principal: authority.Principal{ID: out.User.ID, Email: out.User.Email},
	}
	if out.Session != nil {
		sess, err := c.install(credentialsFromSession(out.Session), authority.EventSignedIn)
		if err != nil {
			return nil, err
		}
		res.Session = sess
	}
	return res, nil
}

// SignOut drops the stored credentials and then revokes the session on the
// server. A token the server already rejects counts as signed out.
func (c *Client) SignOut(ctx context.Context) error {
	creds, loadErr := c.store.LoadCredentials()
	if err := c.store.DeleteCredentials(); err != nil {
		return authority.Unexpected("failed to delete credentials", err)
	}
	c.events.emit(authority.AuthEvent{Type: authority.EventSignedOut})

	if loadErr != nil {
		if errors.Is(loadErr, ErrNoCredentials) {
			return nil
		}
		return authority.Unexpected("failed to load credentials", loadErr)
	}

	err := c.do(ctx, c.http, http.MethodPost, api.AuthPrefix+"/logout", creds.AccessToken, nil, nil)
	if err != nil && authority.KindOf(err) == authority.KindCredential {
		return nil
	}
	return err
}

// ResetPasswordForEmail asks the server to mail a reset link that lands on
// redirectURL.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error {
	return c.do(ctx, c.http, http.MethodPost, api.AuthPrefix+"/recover", "",
		api.RecoverRequest{Email: email, RedirectTo: redirectURL}, nil)
}

// ConfirmPasswordReset sets a new password using the token from a reset
// link. Every session of the account is revoked by the server.
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	err := c.do(ctx, c.http, http.MethodPost, api.AuthPrefix+"/recover/confirm", "",
		api.RecoverConfirmRequest{Token: token, Password: newPassword}, nil)
	if err != nil {
		return err
	}
	c.events.emit(authority.AuthEvent{Type: authority.EventPasswordRecovery})
	return nil
}

// GetSession returns the stored session after confirming it with the
// server. Expired or rejected credentials are deleted and reported as nil.
func (c *Client) GetSession(ctx context.Context) (*authority.Session, error) {
	creds, err := c.store.LoadCredentials()
	if errors.Is(err, ErrNoCredentials) {
		return nil, nil
	}
	if err != nil {
		return nil, authority.Unexpected("failed to load credentials", err)
	}
	if creds.IsExpired(c.clock.Now()) {
		_ = c.store.DeleteCredentials()
		return nil, nil
	}

	var user api.User
	if err := c.do(ctx, c.http, http.MethodGet, api.AuthPrefix+"/user", creds.AccessToken, nil, &user); err != nil {
		if authority.KindOf(err) == authority.KindCredential {
			_ = c.store.DeleteCredentials()
			return nil, nil
		}
		return nil, err
	}

	if user.Email != creds.Email {
		creds.Email = user.Email
		_ = c.store.SaveCredentials(creds)
	}
	return creds.session(), nil
}

// SetSession installs an access token obtained elsewhere. The token is
// validated with the server; its expiry is read from the JWT claims.
// Replacing the current user's token emits TOKEN_REFRESHED, anything else
// SIGNED_IN.
func (c *Client) SetSession(ctx context.Context, accessToken string) (*authority.Session, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, authority.Validation("access token is malformed")
	}

	var user api.User
	if err := c.do(ctx, c.http, http.MethodGet, api.AuthPrefix+"/user", accessToken, nil, &user); err != nil {
		return nil, err
	}

	creds := &Credentials{
		AccessToken: accessToken,
		TokenType:   "bearer",
		UserID:      user.ID,
		Email:       user.Email,
	}
	if claims.ExpiresAt != nil {
		creds.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}

	ev := authority.EventSignedIn
	if prev, err := c.store.LoadCredentials(); err == nil && prev.UserID == user.ID {
		ev = authority.EventTokenRefreshed
	}
	return c.install(creds, ev)
}

// OnAuthStateChange registers fn for session-change events. Events are
// delivered asynchronously and in order.
func (c *Client) OnAuthStateChange(fn func(authority.AuthEvent)) authority.Subscription {
	return c.events.subscribe(fn)
}
