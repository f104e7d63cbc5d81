package iam

import (
	"context"
	"errors"
	"time"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/db/models"
)

var (
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrEmailTaken is returned by SignUp for an existing account.
	ErrEmailTaken = errors.New("user already registered")
	// ErrUserDisabled is returned for accounts an operator has disabled.
	ErrUserDisabled = errors.New("user is disabled")
	// ErrSessionInvalid is returned for forged, expired or revoked tokens.
	ErrSessionInvalid = errors.New("session is invalid or expired")
	// ErrResetTokenInvalid is returned for unknown, used or expired reset links.
	ErrResetTokenInvalid = errors.New("reset link is invalid or expired")
)

// ValidationError reports unacceptable input. Its message is safe to show.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// SessionGrant is an issued bearer session.
type SessionGrant struct {
	AccessToken string
	ExpiresAt   time.Time
	SessionID   string
	User        *models.User
}

// SignUpResult carries the new account and, when auto-confirm is on, its
// first session.
type SignUpResult struct {
	User    *models.User
	Session *SessionGrant
}

// ClientInfo describes the caller for session bookkeeping.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

// Service is the credential gateway.
type Service interface {
	// SignIn verifies email and password and issues a new session.
	SignIn(ctx context.Context, email, password string, client ClientInfo) (*SessionGrant, error)

	// SignUp registers an account with first_name and last_name metadata.
	SignUp(ctx context.Context, email, password string, metadata SignUpMetadata, client ClientInfo) (*SignUpResult, error)

	// SignOut revokes a session. Unknown or already revoked sessions are
	// not an error.
	SignOut(ctx context.Context, sessionID string) error

	// Authenticate resolves a bearer token to its principal.
	Authenticate(ctx context.Context, token string) (*auth.Principal, error)

	// GetUser returns the account behind a principal.
	GetUser(ctx context.Context, userID string) (*models.User, error)

	// SendPasswordReset mails a reset link to email. Unknown emails succeed
	// silently.
	SendPasswordReset(ctx context.Context, email, redirectURL string) error

	// ConfirmPasswordReset consumes a reset token, sets the new password and
	// revokes every session of the account.
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error

	// CreateUser registers an account from the operator CLI without issuing
	// a session.
	CreateUser(ctx context.Context, email, password string, metadata SignUpMetadata) (*models.User, error)

	// DisableUser blocks sign-in and revokes live sessions.
	DisableUser(ctx context.Context, userID string) error

	// PruneSessions deletes sessions that expired before now.
	PruneSessions(ctx context.Context) (int, error)
}

// SignUpMetadata is the profile seed captured at registration.
type SignUpMetadata struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Map converts the metadata for JSON storage.
func (m SignUpMetadata) Map() models.JSONMap {
	return models.JSONMap{"first_name": m.FirstName, "last_name": m.LastName}
}
