package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/estate/internal/auth/bunadapter"
	"github.com/terraconstructs/estate/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260901000000, down_20260901000000)
}

type tableSpec struct {
	name  string
	model any
}

var schemaTables = []tableSpec{
	{"users", (*models.User)(nil)},
	{"sessions", (*models.Session)(nil)},
	{"user_roles", (*models.UserRole)(nil)},
	{"profiles", (*models.Profile)(nil)},
	{"verifications", (*models.Verification)(nil)},
	{"password_resets", (*models.PasswordReset)(nil)},
	{"provisioning_tasks", (*models.ProvisioningTask)(nil)},
	{"casbin_rules", (*bunadapter.CasbinRule)(nil)},
}

var schemaIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_user_roles_user_role ON user_roles(user_id, role)`,
	`CREATE INDEX IF NOT EXISTS idx_user_roles_order ON user_roles(user_id, assigned_at, id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_password_resets_user_id ON password_resets(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_provisioning_tasks_status ON provisioning_tasks(status, created_at)`,
}

// up_20260901000000 creates the identity schema
func up_20260901000000(ctx context.Context, db *bun.DB) error {
	for _, t := range schemaTables {
		fmt.Printf(" [up] creating %s table...", t.name)
		if _, err := db.NewCreateTable().Model(t.model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
		fmt.Println(" OK")
	}

	fmt.Print(" [up] creating indexes...")
	for _, stmt := range schemaIndexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	if IsPostgreSQL(db) {
		_, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (lower(email))`)
		if err != nil {
			return fmt.Errorf("failed to create email index: %w", err)
		}
	}
	fmt.Println(" OK")

	return nil
}

// down_20260901000000 drops the identity schema
func down_20260901000000(ctx context.Context, db *bun.DB) error {
	for i := len(schemaTables) - 1; i >= 0; i-- {
		t := schemaTables[i]
		fmt.Printf(" [down] dropping %s table...", t.name)
		if _, err := db.NewDropTable().Model(t.model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", t.name, err)
		}
		fmt.Println(" OK")
	}
	return nil
}
