package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/estate/internal/db/dbtest"
	"github.com/terraconstructs/estate/internal/db/models"
)

func TestProfileRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBunProfileRepository(dbtest.Open(t))

	_, err := repo.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	created, err := repo.Create(ctx, &models.Profile{ID: "u1", FirstName: "Eve", LastName: "Adams", Email: "eve@example.com"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(ctx, &models.Profile{ID: "u1", FirstName: "Other"})
	require.NoError(t, err)
	assert.False(t, created, "existing profile wins")

	p, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Eve", p.FirstName)

	phone := "+15550100"
	p.Phone = &phone
	p.LastName = "Baker"
	require.NoError(t, repo.Update(ctx, p))

	p, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Baker", p.LastName)
	require.NotNil(t, p.Phone)
	assert.Equal(t, phone, *p.Phone)

	assert.ErrorIs(t, repo.Update(ctx, &models.Profile{ID: "missing"}), ErrNotFound)
}
