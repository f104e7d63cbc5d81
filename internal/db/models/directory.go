package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UserRole grants one role from the closed role set to a user. Fetch order
// is assigned_at, then id.
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:ur"`

	ID         string    `bun:"id,pk,type:varchar(36)"`
	UserID     string    `bun:"user_id,notnull,type:varchar(36)"`
	Role       string    `bun:"role,notnull"`
	AssignedAt time.Time `bun:"assigned_at,notnull,default:current_timestamp"`
	AssignedBy string    `bun:"assigned_by,notnull"` // user id, or "system"
}

// Profile holds display attributes. Its id is the user id.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	ID        string    `bun:"id,pk,type:varchar(36)"`
	FirstName string    `bun:"first_name,notnull,default:''"`
	LastName  string    `bun:"last_name,notnull,default:''"`
	Email     string    `bun:"email,notnull,default:''"`
	Phone     *string   `bun:"phone"`
	AvatarURL *string   `bun:"avatar_url"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Verification statuses.
const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)

// Verification is the at-most-one identity verification outcome per user.
type Verification struct {
	bun.BaseModel `bun:"table:verifications,alias:v"`

	ID        string    `bun:"id,pk,type:varchar(36)"`
	UserID    string    `bun:"user_id,notnull,unique,type:varchar(36)"`
	Status    string    `bun:"status,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
