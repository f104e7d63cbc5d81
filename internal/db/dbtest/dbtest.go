// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/terraconstructs/estate/internal/db/bunx"
	"github.com/terraconstructs/estate/internal/migrations"
)

// Open returns a fresh database with every migration applied. It is closed
// when the test ends.
func Open(t testing.TB) *bun.DB {
	t.Helper()
	ctx := context.Background()

	db, err := bunx.NewDB(ctx, ":memory:", bunx.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = migrations.Apply(ctx, db)
	require.NoError(t, err)
	return db
}
