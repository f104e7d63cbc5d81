package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/estate/internal/db/models"
)

// BunProfileRepository implements ProfileRepository using Bun ORM
type BunProfileRepository struct {
	db *bun.DB
}

// NewBunProfileRepository creates a new Bun-based profile repository
func NewBunProfileRepository(db *bun.DB) *BunProfileRepository {
	return &BunProfileRepository{db: db}
}

// Get retrieves a profile by user ID
func (r *BunProfileRepository) Get(ctx context.Context, id string) (*models.Profile, error) {
	profile := new(models.Profile)
	if err := r.db.NewSelect().Model(profile).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, "profile")
	}
	return profile, nil
}

// Create inserts the profile; an existing row wins
func (r *BunProfileRepository) Create(ctx context.Context, profile *models.Profile) (bool, error) {
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	res, err := r.db.NewInsert().
		Model(profile).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("create profile: %w", err)
	}
	return affected(res) > 0, nil
}

// Update writes all mutable columns
func (r *BunProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	profile.UpdatedAt = time.Now().UTC()
	res, err := r.db.NewUpdate().
		Model(profile).
		Column("first_name", "last_name", "email", "phone", "avatar_url", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return requireRow(res, "profile")
}
