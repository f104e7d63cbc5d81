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

func TestUserRepository_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewBunUserRepository(dbtest.Open(t))

	user := &models.User{
		Email:        "  Alice@Example.com ",
		PasswordHash: "hash",
		UserMetadata: models.JSONMap{"first_name": "Alice"},
	}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)

	byEmail, err := repo.GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, "Alice", byEmail.UserMetadata["first_name"])

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash", byID.PasswordHash)

	err = repo.Create(ctx, &models.User{Email: "alice@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_CreateWithProvisioning(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	users := NewBunUserRepository(db)
	tasks := NewBunProvisioningRepository(db)

	user := &models.User{Email: "bob@example.com", PasswordHash: "hash"}
	task := &models.ProvisioningTask{Metadata: models.JSONMap{"first_name": "Bob", "last_name": "Builder"}}
	require.NoError(t, users.CreateWithProvisioning(ctx, user, task))

	got, err := tasks.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProvisioningPending, got.Status)
	assert.Equal(t, "Builder", got.Metadata["last_name"])

	// A duplicate email rolls back both rows.
	dup := &models.User{Email: "bob@example.com", PasswordHash: "hash"}
	err = users.CreateWithProvisioning(ctx, dup, &models.ProvisioningTask{})
	require.ErrorIs(t, err, ErrConflict)

	all, err := users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUserRepository_PasswordSignInAndDisable(t *testing.T) {
	ctx := context.Background()
	repo := NewBunUserRepository(dbtest.Open(t))

	user := &models.User{Email: "carol@example.com", PasswordHash: "old"}
	require.NoError(t, repo.Create(ctx, user))

	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "new"))
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, repo.TouchSignIn(ctx, user.ID, at))
	require.NoError(t, repo.SetDisabled(ctx, user.ID, true))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)
	require.NotNil(t, got.LastSignInAt)
	assert.True(t, got.LastSignInAt.Equal(at))
	assert.NotNil(t, got.DisabledAt)

	require.NoError(t, repo.SetDisabled(ctx, user.ID, false))
	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DisabledAt)

	assert.ErrorIs(t, repo.UpdatePassword(ctx, "missing", "x"), ErrNotFound)
}
