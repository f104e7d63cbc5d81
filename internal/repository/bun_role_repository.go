package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/estate/internal/db/bunx"
	"github.com/terraconstructs/estate/internal/db/models"
)

// BunRoleRepository implements RoleRepository using Bun ORM
type BunRoleRepository struct {
	db *bun.DB
}

// NewBunRoleRepository creates a new Bun-based role repository
func NewBunRoleRepository(db *bun.DB) *BunRoleRepository {
	return &BunRoleRepository{db: db}
}

// ListForUser returns a user's assignments in fetch order
func (r *BunRoleRepository) ListForUser(ctx context.Context, userID string) ([]models.UserRole, error) {
	var assignments []models.UserRole
	err := r.db.NewSelect().
		Model(&assignments).
		Where("user_id = ?", userID).
		Order("assigned_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	return assignments, nil
}

// Grant inserts an assignment unless the user already holds the role
func (r *BunRoleRepository) Grant(ctx context.Context, assignment *models.UserRole) (bool, error) {
	if assignment.ID == "" {
		assignment.ID = bunx.NewUUIDv7()
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}

	res, err := r.db.NewInsert().
		Model(assignment).
		On("CONFLICT (user_id, role) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("grant role: %w", err)
	}
	return affected(res) > 0, nil
}

// Revoke removes an assignment
func (r *BunRoleRepository) Revoke(ctx context.Context, userID, role string) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*models.UserRole)(nil)).
		Where("user_id = ?", userID).
		Where("role = ?", role).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("revoke role: %w", err)
	}
	return affected(res) > 0, nil
}
