package authority

import (
	"context"
	"time"

	"github.com/terraconstructs/estate/internal/roles"
)

// Principal is the authenticated identity controlling a session.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session binds a principal to a bearer token.
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Principal   Principal `json:"user"`
}

// Expired reports whether the session is past its expiry at now. A zero
// expiry never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Profile holds denormalized display attributes for a principal.
type Profile struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// ProfilePatch is a partial profile update; nil fields are left unchanged.
type ProfilePatch struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Phone == nil && p.AvatarURL == nil
}

// Apply returns a copy of base with the patch merged in.
func (p ProfilePatch) Apply(base Profile) Profile {
	if p.FirstName != nil {
		base.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		base.LastName = *p.LastName
	}
	if p.Phone != nil {
		base.Phone = *p.Phone
	}
	if p.AvatarURL != nil {
		base.AvatarURL = *p.AvatarURL
	}
	return base
}

// VerificationStatus is the back-office outcome of identity verification.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// Valid reports membership in the closed status set.
func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationPending, VerificationApproved, VerificationRejected:
		return true
	}
	return false
}

// Verification is the at-most-one verification record of a principal.
type Verification struct {
	UserID    string             `json:"user_id"`
	Status    VerificationStatus `json:"status"`
	UpdatedAt time.Time          `json:"updated_at,omitzero"`
}

// SignUpMetadata is attached to a new account by the gateway.
type SignUpMetadata struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// GatewaySignUp is the gateway's sign-up answer. Session is nil when the
// account needs confirmation before it may sign in.
type GatewaySignUp struct {
	Principal Principal `json:"user"`
	Session   *Session  `json:"session,omitempty"`
}

// EventType names a push notification from the gateway.
type EventType string

const (
	EventInitialSession   EventType = "INITIAL_SESSION"
	EventSignedIn         EventType = "SIGNED_IN"
	EventSignedOut        EventType = "SIGNED_OUT"
	EventTokenRefreshed   EventType = "TOKEN_REFRESHED"
	EventUserUpdated      EventType = "USER_UPDATED"
	EventPasswordRecovery EventType = "PASSWORD_RECOVERY"
)

// AuthEvent is a session-change notification. Session is nil for sign-out.
type AuthEvent struct {
	Type    EventType
	Session *Session
}

// Subscription is a cancellable push-channel registration.
type Subscription interface {
	Unsubscribe()
}

// Gateway performs credential exchange and pushes session changes.
type Gateway interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, meta SignUpMetadata) (*GatewaySignUp, error)
	// SignOut invalidates the session remotely. Local credentials held by
	// the gateway must be dropped even when the remote call fails.
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email, redirectURL string) error
	// GetSession returns the current session or nil.
	GetSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(fn func(AuthEvent)) Subscription
}

// RoleStore reads and writes role assignments. GetRoles returns roles in
// backend order.
type RoleStore interface {
	GetRoles(ctx context.Context, principalID string) ([]roles.Role, error)
	InsertRole(ctx context.Context, principalID string, role roles.Role) error
	DeleteRole(ctx context.Context, principalID string, role roles.Role) error
}

// ProfileStore persists profiles. Absent rows are reported with an error
// matching ErrNotFound.
type ProfileStore interface {
	GetProfile(ctx context.Context, principalID string) (*Profile, error)
	InsertProfile(ctx context.Context, p Profile) (*Profile, error)
	UpdateProfile(ctx context.Context, principalID string, patch ProfilePatch) (*Profile, error)
}

// VerificationStore reads verification records. Absence is reported with an
// error matching ErrNotFound.
type VerificationStore interface {
	GetVerification(ctx context.Context, principalID string) (*Verification, error)
}
