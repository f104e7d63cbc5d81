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

func TestProvisioningRepository_Pending(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	users := NewBunUserRepository(db)
	repo := NewBunProvisioningRepository(db)

	u := &models.User{Email: "frank@example.com", PasswordHash: "h"}
	task := &models.ProvisioningTask{CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, users.CreateWithProvisioning(ctx, u, task))

	fresh := &models.User{Email: "gina@example.com", PasswordHash: "h"}
	require.NoError(t, users.CreateWithProvisioning(ctx, fresh, &models.ProvisioningTask{}))

	pending, err := repo.ListPending(ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, u.ID, pending[0].UserID)

	require.NoError(t, repo.RecordFailure(ctx, task.ID, "boom", false, time.Now()))
	got, err := repo.GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, models.ProvisioningPending, got.Status)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "boom", *got.LastError)

	require.NoError(t, repo.RecordFailure(ctx, task.ID, "boom again", true, time.Now()))
	got, err = repo.GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProvisioningFailed, got.Status)
	assert.Equal(t, 2, got.Attempts)

	require.NoError(t, repo.MarkDone(ctx, task.ID, time.Now()))
	got, err = repo.GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProvisioningDone, got.Status)
	assert.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.LastError)
}
