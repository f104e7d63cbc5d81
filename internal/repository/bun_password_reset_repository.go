package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/estate/internal/db/bunx"
	"github.com/terraconstructs/estate/internal/db/models"
)

// BunPasswordResetRepository implements PasswordResetRepository using Bun ORM
type BunPasswordResetRepository struct {
	db *bun.DB
}

// NewBunPasswordResetRepository creates a new Bun-based reset repository
func NewBunPasswordResetRepository(db *bun.DB) *BunPasswordResetRepository {
	return &BunPasswordResetRepository{db: db}
}

// Create stores a reset link
func (r *BunPasswordResetRepository) Create(ctx context.Context, reset *models.PasswordReset) error {
	if reset.ID == "" {
		reset.ID = bunx.NewUUIDv7()
	}
	if reset.CreatedAt.IsZero() {
		reset.CreatedAt = time.Now().UTC()
	}
	reset.ExpiresAt = reset.ExpiresAt.UTC()
	if _, err := r.db.NewInsert().Model(reset).Exec(ctx); err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

// GetByTokenHash looks up a reset by the hash of its token
func (r *BunPasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordReset, error) {
	reset := new(models.PasswordReset)
	if err := r.db.NewSelect().Model(reset).Where("token_hash = ?", tokenHash).Scan(ctx); err != nil {
		return nil, notFound(err, "password reset")
	}
	return reset, nil
}

// MarkUsed consumes the reset exactly once
func (r *BunPasswordResetRepository) MarkUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.PasswordReset)(nil)).
		Set("used_at = ?", at.UTC()).
		Where("id = ?", id).
		Where("used_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("mark reset used: %w", err)
	}
	return affected(res) > 0, nil
}
