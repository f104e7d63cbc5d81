// Package migrations holds the schema history applied by `estateapi db`.
package migrations

import (
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/migrate"
)

// Migrations is the registry every migration file adds itself to.
var Migrations = migrate.NewMigrations()

// IsPostgreSQL reports whether db speaks the Postgres dialect. The
// case-insensitive email index is created only there.
func IsPostgreSQL(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.PG
}
