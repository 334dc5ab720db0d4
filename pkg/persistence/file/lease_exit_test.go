package file

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbellotti/exitflow/pkg/models"
	"github.com/mbellotti/exitflow/pkg/persistence"
)

func newLeaseExit(status models.LeaseExitStatus) *models.LeaseExit {
	return &models.LeaseExit{
		ID:      uuid.New().String(),
		LeaseID: "L-2001",
		Status:  status,
	}
}

func TestLeaseExitRepository_CreateAndGet(t *testing.T) {
	repo := NewLeaseExitRepository(t.TempDir())
	leaseExit := newLeaseExit(models.LeaseExitStatusInProgress)

	require.NoError(t, repo.Create(context.Background(), leaseExit))
	assert.Equal(t, int64(1), leaseExit.Revision)

	stored, err := repo.GetByID(context.Background(), leaseExit.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, leaseExit.ID, stored.ID)
	assert.Equal(t, int64(1), stored.Revision)

	missing, err := repo.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLeaseExitRepository_CreateDuplicate(t *testing.T) {
	repo := NewLeaseExitRepository(t.TempDir())
	leaseExit := newLeaseExit(models.LeaseExitStatusDraft)

	require.NoError(t, repo.Create(context.Background(), leaseExit))

	err := repo.Create(context.Background(), leaseExit)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrLeaseExitAlreadyExists)
}

func TestLeaseExitRepository_ConditionalUpdate(t *testing.T) {
	repo := NewLeaseExitRepository(t.TempDir())
	leaseExit := newLeaseExit(models.LeaseExitStatusInProgress)

	require.NoError(t, repo.Create(context.Background(), leaseExit))

	// Two readers load the same revision.
	first, err := repo.GetByID(context.Background(), leaseExit.ID)
	require.NoError(t, err)

	second, err := repo.GetByID(context.Background(), leaseExit.ID)
	require.NoError(t, err)

	first.Status = models.LeaseExitStatusPendingApproval
	require.NoError(t, repo.Update(context.Background(), first))
	assert.Equal(t, int64(2), first.Revision)

	// The second writer holds a stale revision and must conflict.
	second.Status = models.LeaseExitStatusReviewNeeded
	err = repo.Update(context.Background(), second)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrRevisionConflict)
	assert.True(t, persistence.IsRevisionConflict(err))

	stored, err := repo.GetByID(context.Background(), leaseExit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeaseExitStatusPendingApproval, stored.Status, "stale write must not land")
}

func TestLeaseExitRepository_UpdateMissing(t *testing.T) {
	repo := NewLeaseExitRepository(t.TempDir())
	leaseExit := newLeaseExit(models.LeaseExitStatusInProgress)

	err := repo.Update(context.Background(), leaseExit)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrLeaseExitNotFound)
	assert.True(t, persistence.IsLeaseExitNotFound(err))
}

func TestLeaseExitRepository_ListByStatus(t *testing.T) {
	repo := NewLeaseExitRepository(t.TempDir())

	inProgress := newLeaseExit(models.LeaseExitStatusInProgress)
	pending := newLeaseExit(models.LeaseExitStatusPendingApproval)
	completed := newLeaseExit(models.LeaseExitStatusCompleted)

	for _, leaseExit := range []*models.LeaseExit{inProgress, pending, completed} {
		require.NoError(t, repo.Create(context.Background(), leaseExit))
	}

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := repo.ListByStatus(context.Background(), models.ActiveStatuses()...)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	onlyPending, err := repo.ListByStatus(context.Background(), models.LeaseExitStatusPendingApproval)
	require.NoError(t, err)
	require.Len(t, onlyPending, 1)
	assert.Equal(t, pending.ID, onlyPending[0].ID)
}
