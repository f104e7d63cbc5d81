package repository

import (
	"context"
	"errors"
	"time"

	"github.com/terraconstructs/estate/internal/db/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a unique constraint rejects a write.
var ErrConflict = errors.New("already exists")

// UserRepository persists accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	// CreateWithProvisioning inserts the user and its pending provisioning
	// task in one transaction.
	CreateWithProvisioning(ctx context.Context, user *models.User, task *models.ProvisioningTask) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	TouchSignIn(ctx context.Context, id string, at time.Time) error
	SetDisabled(ctx context.Context, id string, disabled bool) error
}

// SessionRepository persists issued bearer sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) (int, error)
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// RoleRepository persists role assignments.
type RoleRepository interface {
	// ListForUser returns assignments in fetch order (assigned_at, id).
	ListForUser(ctx context.Context, userID string) ([]models.UserRole, error)
	// Grant inserts the assignment; an existing (user, role) pair is kept
	// and reported with created=false.
	Grant(ctx context.Context, assignment *models.UserRole) (created bool, err error)
	Revoke(ctx context.Context, userID, role string) (removed bool, err error)
}

// ProfileRepository persists profiles.
type ProfileRepository interface {
	Get(ctx context.Context, id string) (*models.Profile, error)
	// Create inserts the profile unless one exists; created reports which.
	Create(ctx context.Context, profile *models.Profile) (created bool, err error)
	Update(ctx context.Context, profile *models.Profile) error
}

// VerificationRepository persists verification outcomes.
type VerificationRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.Verification, error)
	Upsert(ctx context.Context, userID, status string) (*models.Verification, error)
}

// PasswordResetRepository persists reset links.
type PasswordResetRepository interface {
	Create(ctx context.Context, reset *models.PasswordReset) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordReset, error)
	// MarkUsed consumes the reset; false when it was already used.
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)
}

// ProvisioningRepository persists sign-up follow-up tasks.
type ProvisioningRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.ProvisioningTask, error)
	// ListPending returns pending tasks created before olderThan, oldest first.
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]models.ProvisioningTask, error)
	MarkDone(ctx context.Context, id string, at time.Time) error
	RecordFailure(ctx context.Context, id, message string, giveUp bool, at time.Time) error
}
