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

func TestSessionRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	users := NewBunUserRepository(db)
	sessions := NewBunSessionRepository(db)

	user := &models.User{Email: "dana@example.com", PasswordHash: "hash"}
	require.NoError(t, users.Create(ctx, user))

	now := time.Now().UTC()
	live := &models.Session{UserID: user.ID, TokenHash: "h1", ExpiresAt: now.Add(time.Hour)}
	old := &models.Session{UserID: user.ID, TokenHash: "h2", ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, sessions.Create(ctx, live))
	require.NoError(t, sessions.Create(ctx, old))

	got, err := sessions.GetByID(ctx, live.ID)
	require.NoError(t, err)
	assert.True(t, got.Active(now))

	require.NoError(t, sessions.Revoke(ctx, live.ID))
	require.NoError(t, sessions.Revoke(ctx, live.ID))
	got, err = sessions.GetByID(ctx, live.ID)
	require.NoError(t, err)
	assert.False(t, got.Active(now))

	n, err := sessions.RevokeAllForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = sessions.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = sessions.GetByID(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
