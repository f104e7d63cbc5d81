package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/estate/internal/db/dbtest"
	"github.com/terraconstructs/estate/internal/db/models"
)

func TestVerificationRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewBunVerificationRepository(dbtest.Open(t))

	_, err := repo.GetByUserID(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	v, err := repo.Upsert(ctx, "u1", models.VerificationPending)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationPending, v.Status)

	v2, err := repo.Upsert(ctx, "u1", models.VerificationApproved)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationApproved, v2.Status)
	assert.Equal(t, v.ID, v2.ID, "one row per user")
}
