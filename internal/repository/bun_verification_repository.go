package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/estate/internal/db/bunx"
	"github.com/terraconstructs/estate/internal/db/models"
)

// BunVerificationRepository implements VerificationRepository using Bun ORM
type BunVerificationRepository struct {
	db *bun.DB
}

// NewBunVerificationRepository creates a new Bun-based verification repository
func NewBunVerificationRepository(db *bun.DB) *BunVerificationRepository {
	return &BunVerificationRepository{db: db}
}

// GetByUserID retrieves the verification record of a user
func (r *BunVerificationRepository) GetByUserID(ctx context.Context, userID string) (*models.Verification, error) {
	v := new(models.Verification)
	if err := r.db.NewSelect().Model(v).Where("user_id = ?", userID).Scan(ctx); err != nil {
		return nil, notFound(err, "verification")
	}
	return v, nil
}

// Upsert records the outcome, keeping one row per user
func (r *BunVerificationRepository) Upsert(ctx context.Context, userID, status string) (*models.Verification, error) {
	now := time.Now().UTC()
	v := &models.Verification{
		ID:        bunx.NewUUIDv7(),
		UserID:    userID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.NewInsert().
		Model(v).
		On("CONFLICT (user_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("upsert verification: %w", err)
	}
	return r.GetByUserID(ctx, userID)
}
