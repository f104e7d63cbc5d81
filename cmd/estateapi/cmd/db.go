package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"

	"github.com/terraconstructs/estate/cmd/estateapi/cmd/cmdutil"
	"github.com/terraconstructs/estate/internal/db/bunx"
	"github.com/terraconstructs/estate/internal/migrations"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
	Long:  `Commands for managing database migrations and schema.`,
}

// withMigrator opens the database and hands fn a migrator. When lock is set
// the migration lock is held for the duration of fn.
func withMigrator(ctx context.Context, lock bool, fn func(*migrate.Migrator) error) error {
	db, err := cmdutil.OpenDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer bunx.Close(db)

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if !lock {
		return fn(migrator)
	}

	if err := migrator.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if err := migrator.Unlock(ctx); err != nil {
			fmt.Printf("Warning: failed to release migration lock: %v\n", err)
		}
	}()
	return fn(migrator)
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize migration tables",
	Long:  `Creates the migration tracking tables in the database. Run this once during initial setup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), false, func(m *migrate.Migrator) error {
			if err := m.Init(cmd.Context()); err != nil {
				return fmt.Errorf("failed to initialize migrator: %w", err)
			}
			fmt.Println("Migration tables initialized successfully")
			return nil
		})
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Applies all pending migrations, including the default authorization
policies. Migration tables are created when missing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := cmdutil.OpenDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		group, err := migrations.Apply(cmd.Context(), db)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		if group.IsZero() {
			fmt.Println("No new migrations to apply")
		} else {
			fmt.Printf("Applied migration group %d\n", group.ID)
		}
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), false, func(m *migrate.Migrator) error {
			ms, err := m.MigrationsWithStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Println("Migrations:")
			for _, mig := range ms {
				status := "pending"
				if mig.GroupID > 0 {
					status = fmt.Sprintf("applied (group %d)", mig.GroupID)
				}
				fmt.Printf("  %s: %s\n", mig.Name, status)
			}
			return nil
		})
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Rollback last migration group",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), true, func(m *migrate.Migrator) error {
			group, err := m.Rollback(cmd.Context())
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			if group.IsZero() {
				fmt.Println("No migrations to rollback")
			} else {
				fmt.Printf("Rolled back migration group %d\n", group.ID)
			}
			return nil
		})
	},
}

func init() {
	dbCmd.AddCommand(dbInitCmd, dbMigrateCmd, dbStatusCmd, dbRollbackCmd)
	rootCmd.AddCommand(dbCmd)
}
