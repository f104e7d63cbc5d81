package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/estate/internal/db/bunx"
	"github.com/terraconstructs/estate/internal/db/models"
)

// BunUserRepository implements UserRepository using Bun ORM
type BunUserRepository struct {
	db *bun.DB
}

// NewBunUserRepository creates a new Bun-based user repository
func NewBunUserRepository(db *bun.DB) *BunUserRepository {
	return &BunUserRepository{db: db}
}

func prepareUser(user *models.User) {
	if user.ID == "" {
		user.ID = bunx.NewUUIDv7()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.UserMetadata == nil {
		user.UserMetadata = models.JSONMap{}
	}
}

// Create inserts a new user. Emails are stored lower-cased.
func (r *BunUserRepository) Create(ctx context.Context, user *models.User) error {
	prepareUser(user)
	if _, err := r.db.NewInsert().Model(user).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Email, ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// CreateWithProvisioning inserts the user and its provisioning task atomically
func (r *BunUserRepository) CreateWithProvisioning(ctx context.Context, user *models.User, task *models.ProvisioningTask) error {
	prepareUser(user)
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("user %s: %w", user.Email, ErrConflict)
			}
			return fmt.Errorf("create user: %w", err)
		}

		task.UserID = user.ID
		prepareTask(task)
		if _, err := tx.NewInsert().Model(task).Exec(ctx); err != nil {
			return fmt.Errorf("create provisioning task: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a user by ID
func (r *BunUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user := new(models.User)
	if err := r.db.NewSelect().Model(user).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *BunUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}

// List returns all users ordered by creation
func (r *BunUserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.NewSelect().Model(&users).Order("created_at ASC", "id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdatePassword replaces the password hash
func (r *BunUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireRow(res, "user")
}

// TouchSignIn records a successful sign-in
func (r *BunUserRepository) TouchSignIn(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("last_sign_in_at = ?", at.UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("touch sign-in: %w", err)
	}
	return nil
}

// SetDisabled disables or re-enables an account
func (r *BunUserRepository) SetDisabled(ctx context.Context, id string, disabled bool) error {
	q := r.db.NewUpdate().Model((*models.User)(nil)).Where("id = ?", id)
	if disabled {
		q = q.Set("disabled_at = ?", time.Now().UTC())
	} else {
		q = q.Set("disabled_at = NULL")
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("set disabled: %w", err)
	}
	return requireRow(res, "user")
}
