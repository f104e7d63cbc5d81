package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is an account that can sign in with email and password.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string     `bun:"id,pk,type:varchar(36)"`
	Email        string     `bun:"email,notnull,unique"`
	PasswordHash string     `bun:"password_hash,notnull"`
	UserMetadata JSONMap    `bun:"user_metadata,type:jsonb"` // sign-up metadata (first_name, last_name)
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	LastSignInAt *time.Time `bun:"last_sign_in_at"`
	DisabledAt   *time.Time `bun:"disabled_at"`
}

// Session is one issued bearer token. The token itself is never stored.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:sess"`

	ID         string    `bun:"id,pk,type:varchar(36)"`
	UserID     string    `bun:"user_id,notnull,type:varchar(36)"`
	TokenHash  string    `bun:"token_hash,notnull,unique"` // SHA256 of the bearer token
	ExpiresAt  time.Time `bun:"expires_at,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	LastUsedAt time.Time `bun:"last_used_at,notnull,default:current_timestamp"`
	UserAgent  *string   `bun:"user_agent"`
	IPAddress  *string   `bun:"ip_address"`
	Revoked    bool      `bun:"revoked,notnull,default:false"`
}

// Active reports whether the session can still authenticate at now.
func (s *Session) Active(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}

// PasswordReset is a single-use reset link.
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_resets,alias:pr"`

	ID          string     `bun:"id,pk,type:varchar(36)"`
	UserID      string     `bun:"user_id,notnull,type:varchar(36)"`
	TokenHash   string     `bun:"token_hash,notnull,unique"`
	RedirectURL string     `bun:"redirect_url,notnull"`
	ExpiresAt   time.Time  `bun:"expires_at,notnull"`
	UsedAt      *time.Time `bun:"used_at"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}
