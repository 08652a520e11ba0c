package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhyoong/bearmemori/pkg/services"
	testdb "github.com/jhyoong/bearmemori/test/database"
)

func TestBackupRequest(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewBackupService(client)
	ctx := context.Background()

	job, err := svc.Request(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, services.BackupStatusRequested, job.Status)

	got, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
}

func TestBackupRequestRejectsActiveDuplicate(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewBackupService(client)
	ctx := context.Background()

	first, err := svc.Request(ctx, 1)
	require.NoError(t, err)

	_, err = svc.Request(ctx, 1)
	assert.ErrorIs(t, err, services.ErrAlreadyExists)

	// Running still counts as active.
	_, err = svc.SetStatus(ctx, first.ID, services.BackupStatusRunning)
	require.NoError(t, err)
	_, err = svc.Request(ctx, 1)
	assert.ErrorIs(t, err, services.ErrAlreadyExists)

	// Once terminal, a new run is allowed.
	_, err = svc.SetStatus(ctx, first.ID, services.BackupStatusDone)
	require.NoError(t, err)
	_, err = svc.Request(ctx, 1)
	assert.NoError(t, err)
}

func TestBackupRequestPerUser(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewBackupService(client)
	ctx := context.Background()

	_, err := svc.Request(ctx, 1)
	require.NoError(t, err)

	// Another user's active run does not block this one.
	_, err = svc.Request(ctx, 2)
	assert.NoError(t, err)
}

func TestBackupListByUserNewestFirst(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewBackupService(client)
	ctx := context.Background()

	first, err := svc.Request(ctx, 1)
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, first.ID, services.BackupStatusDone)
	require.NoError(t, err)
	second, err := svc.Request(ctx, 1)
	require.NoError(t, err)

	jobs, err := svc.ListByUser(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
}

func TestBackupSetStatusValidation(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewBackupService(client)
	ctx := context.Background()

	job, err := svc.Request(ctx, 1)
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, job.ID, "paused")
	assert.True(t, services.IsValidationError(err))

	_, err = svc.SetStatus(ctx, "no-such-id", services.BackupStatusRunning)
	assert.ErrorIs(t, err, services.ErrNotFound)
}
