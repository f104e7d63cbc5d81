package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/estate/internal/db/bunx"
	"github.com/terraconstructs/estate/internal/db/models"
)

// BunProvisioningRepository implements ProvisioningRepository using Bun ORM
type BunProvisioningRepository struct {
	db *bun.DB
}

// NewBunProvisioningRepository creates a new Bun-based provisioning repository
func NewBunProvisioningRepository(db *bun.DB) *BunProvisioningRepository {
	return &BunProvisioningRepository{db: db}
}

func prepareTask(task *models.ProvisioningTask) {
	if task.ID == "" {
		task.ID = bunx.NewUUIDv7()
	}
	if task.Status == "" {
		task.Status = models.ProvisioningPending
	}
	if task.Metadata == nil {
		task.Metadata = models.JSONMap{}
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = now
}

// GetByUserID retrieves the provisioning task of a user
func (r *BunProvisioningRepository) GetByUserID(ctx context.Context, userID string) (*models.ProvisioningTask, error) {
	task := new(models.ProvisioningTask)
	if err := r.db.NewSelect().Model(task).Where("user_id = ?", userID).Scan(ctx); err != nil {
		return nil, notFound(err, "provisioning task")
	}
	return task, nil
}

// ListPending returns pending tasks created before the cutoff
func (r *BunProvisioningRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]models.ProvisioningTask, error) {
	var tasks []models.ProvisioningTask
	q := r.db.NewSelect().
		Model(&tasks).
		Where("status = ?", models.ProvisioningPending).
		Where("created_at <= ?", olderThan.UTC()).
		Order("created_at ASC", "id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list pending provisioning tasks: %w", err)
	}
	return tasks, nil
}

// MarkDone closes a task
func (r *BunProvisioningRepository) MarkDone(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*models.ProvisioningTask)(nil)).
		Set("status = ?", models.ProvisioningDone).
		Set("completed_at = ?", at.UTC()).
		Set("updated_at = ?", at.UTC()).
		Set("last_error = NULL").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark provisioning done: %w", err)
	}
	return requireRow(res, "provisioning task")
}

// RecordFailure counts a failed attempt; giveUp moves the task to failed
func (r *BunProvisioningRepository) RecordFailure(ctx context.Context, id, message string, giveUp bool, at time.Time) error {
	status := models.ProvisioningPending
	if giveUp {
		status = models.ProvisioningFailed
	}
	res, err := r.db.NewUpdate().
		Model((*models.ProvisioningTask)(nil)).
		Set("attempts = attempts + 1").
		Set("last_error = ?", message).
		Set("status = ?", status).
		Set("updated_at = ?", at.UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("record provisioning failure: %w", err)
	}
	return requireRow(res, "provisioning task")
}
