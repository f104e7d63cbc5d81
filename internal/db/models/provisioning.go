package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Provisioning task statuses.
const (
	ProvisioningPending = "pending"
	ProvisioningDone    = "done"
	ProvisioningFailed  = "failed"
)

// ProvisioningTask marks a sign-up whose follow-up (profile row and default
// role) is not known to be complete. It is written in the same transaction
// as the user and closed by the reconciler.
type ProvisioningTask struct {
	bun.BaseModel `bun:"table:provisioning_tasks,alias:pt"`

	ID          string     `bun:"id,pk,type:varchar(36)"`
	UserID      string     `bun:"user_id,notnull,unique,type:varchar(36)"`
	Metadata    JSONMap    `bun:"metadata,type:jsonb"`
	Status      string     `bun:"status,notnull"`
	Attempts    int        `bun:"attempts,notnull,default:0"`
	LastError   *string    `bun:"last_error"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	CompletedAt *time.Time `bun:"completed_at"`
}
