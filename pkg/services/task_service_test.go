package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhyoong/bearmemori/pkg/models"
	"github.com/jhyoong/bearmemori/pkg/services"
	testdb "github.com/jhyoong/bearmemori/test/database"
)

func TestTaskCreateAndComplete(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewTaskService(client)
	ctx := context.Background()

	task, err := svc.Create(ctx, models.CreateTaskRequest{
		OwnerUserID: 1,
		Description: "file the expense report",
		DueAt:       ptr("2026-08-26T17:00:00Z"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStateNotDone, task.State)
	require.NotNil(t, task.DueAt)

	done, err := svc.Update(ctx, task.ID, models.UpdateTaskRequest{
		State: ptr(models.TaskStateDone),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStateDone, done.State)
}

func TestTaskCreateValidation(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewTaskService(client)
	ctx := context.Background()

	_, err := svc.Create(ctx, models.CreateTaskRequest{Description: "x"})
	assert.True(t, services.IsValidationError(err))

	_, err = svc.Create(ctx, models.CreateTaskRequest{OwnerUserID: 1})
	assert.True(t, services.IsValidationError(err))

	_, err = svc.Create(ctx, models.CreateTaskRequest{
		OwnerUserID: 1, Description: "x", DueAt: ptr("tomorrow-ish"),
	})
	assert.True(t, services.IsValidationError(err))
}

func TestTaskListOrdering(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewTaskService(client)
	ctx := context.Background()

	undated, err := svc.Create(ctx, models.CreateTaskRequest{
		OwnerUserID: 1, Description: "someday",
	})
	require.NoError(t, err)
	later, err := svc.Create(ctx, models.CreateTaskRequest{
		OwnerUserID: 1, Description: "later", DueAt: ptr("2026-09-01T09:00:00Z"),
	})
	require.NoError(t, err)
	sooner, err := svc.Create(ctx, models.CreateTaskRequest{
		OwnerUserID: 1, Description: "sooner", DueAt: ptr("2026-08-25T09:00:00Z"),
	})
	require.NoError(t, err)

	tasks, err := svc.List(ctx, 1, nil, 0)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, sooner.ID, tasks[0].ID)
	assert.Equal(t, later.ID, tasks[1].ID)
	assert.Equal(t, undated.ID, tasks[2].ID)
}

func TestTaskListFilterByState(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewTaskService(client)
	ctx := context.Background()

	open, err := svc.Create(ctx, models.CreateTaskRequest{OwnerUserID: 1, Description: "open"})
	require.NoError(t, err)
	closed, err := svc.Create(ctx, models.CreateTaskRequest{OwnerUserID: 1, Description: "closed"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, closed.ID, models.UpdateTaskRequest{State: ptr(models.TaskStateDone)})
	require.NoError(t, err)

	tasks, err := svc.List(ctx, 1, ptr(models.TaskStateNotDone), 0)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, open.ID, tasks[0].ID)
}

func TestTaskCompleteRecurringAdvancesDueDate(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewTaskService(client)
	ctx := context.Background()

	task, err := svc.Create(ctx, models.CreateTaskRequest{
		OwnerUserID:       1,
		Description:       "weekly review",
		DueAt:             ptr("2026-08-24T09:00:00Z"),
		RecurrenceMinutes: ptr(int64(7 * 24 * 60)),
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, task.ID, models.UpdateTaskRequest{
		State: ptr(models.TaskStateDone),
	})
	require.NoError(t, err)

	// Still open, one week further out.
	assert.Equal(t, models.TaskStateNotDone, updated.State)
	require.NotNil(t, updated.DueAt)
	assert.Equal(t, time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC), updated.DueAt.UTC())
}

func TestTaskCompleteRecurringWithoutDueDateMarksDone(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewTaskService(client)
	ctx := context.Background()

	task, err := svc.Create(ctx, models.CreateTaskRequest{
		OwnerUserID:       1,
		Description:       "ad-hoc recurring",
		RecurrenceMinutes: ptr(int64(60)),
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, task.ID, models.UpdateTaskRequest{
		State: ptr(models.TaskStateDone),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStateDone, updated.State)
}

func TestTaskDelete(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewTaskService(client)
	ctx := context.Background()

	task, err := svc.Create(ctx, models.CreateTaskRequest{OwnerUserID: 1, Description: "gone soon"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, task.ID))
	assert.ErrorIs(t, svc.Delete(ctx, task.ID), services.ErrNotFound)

	_, err = svc.Get(ctx, task.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
}
