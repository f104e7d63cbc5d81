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

func TestPasswordResetRepository_SingleUse(t *testing.T) {
	ctx := context.Background()
	repo := NewBunPasswordResetRepository(dbtest.Open(t))

	reset := &models.PasswordReset{
		UserID:      "u1",
		TokenHash:   "abc",
		RedirectURL: "http://localhost:5173/reset-password",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Create(ctx, reset))

	got, err := repo.GetByTokenHash(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, reset.ID, got.ID)
	assert.Nil(t, got.UsedAt)

	ok, err := repo.MarkUsed(ctx, reset.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkUsed(ctx, reset.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.GetByTokenHash(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
