package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/estate/internal/db/dbtest"
	"github.com/terraconstructs/estate/internal/db/models"
)

func TestRoleRepository_GrantListRevoke(t *testing.T) {
	ctx := context.Background()
	repo := NewBunRoleRepository(dbtest.Open(t))

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	created, err := repo.Grant(ctx, &models.UserRole{UserID: "u1", Role: "vendor", AssignedAt: base.Add(time.Minute), AssignedBy: "system"})
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repo.Grant(ctx, &models.UserRole{UserID: "u1", Role: "landlord", AssignedAt: base, AssignedBy: "system"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Grant(ctx, &models.UserRole{UserID: "u1", Role: "vendor", AssignedBy: "system"})
	require.NoError(t, err)
	assert.False(t, created, "duplicate grant is a no-op")

	list, err := repo.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "landlord", list[0].Role)
	assert.Equal(t, "vendor", list[1].Role)

	removed, err := repo.Revoke(ctx, "u1", "vendor")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.Revoke(ctx, "u1", "vendor")
	require.NoError(t, err)
	assert.False(t, removed)

	empty, err := repo.ListForUser(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
