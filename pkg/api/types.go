// Package api defines the JSON wire types of the estate REST API shared by
// the server and the Go SDK.
package api

import "time"

// Route prefixes.
const (
	AuthPrefix = "/auth/v1"
	RestPrefix = "/rest/v1"
)

// User is the account as seen by clients.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at,omitzero"`
}

// Session is an issued bearer session.
type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	ExpiresAt   int64  `json:"expires_at"` // unix seconds
	User        User   `json:"user"`
}

// PasswordGrantRequest is the body of POST /auth/v1/token?grant_type=password.
type PasswordGrantRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpData is the metadata captured at registration.
type SignUpData struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// SignUpRequest is the body of POST /auth/v1/signup.
type SignUpRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Data     SignUpData `json:"data"`
}

// SignUpResponse carries the new account; Session is nil when the account
// must be confirmed first.
type SignUpResponse struct {
	User    User     `json:"user"`
	Session *Session `json:"session,omitempty"`
}

// RecoverRequest is the body of POST /auth/v1/recover.
type RecoverRequest struct {
	Email      string `json:"email"`
	RedirectTo string `json:"redirect_to"`
}

// RecoverConfirmRequest is the body of POST /auth/v1/recover/confirm.
type RecoverConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// RoleList is the body of GET /rest/v1/users/{id}/roles.
type RoleList struct {
	Roles []string `json:"roles"`
}

// RoleRequest is the body of POST /rest/v1/users/{id}/roles.
type RoleRequest struct {
	Role string `json:"role"`
}

// Profile is a user's display record.
type Profile struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// ProfilePatch is the body of PATCH /rest/v1/profiles/{id}.
type ProfilePatch struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Verification is a user's identity verification record.
type Verification struct {
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Error codes.
const (
	CodeValidation        = "validation_failed"
	CodeInvalidCredential = "invalid_credentials"
	CodeEmailTaken        = "email_taken"
	CodeUserDisabled      = "user_disabled"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeNotFound          = "not_found"
	CodeInvalidResetToken = "invalid_reset_token"
	CodeInternal          = "internal_error"
)
