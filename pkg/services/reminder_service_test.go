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

func TestReminderCreateAndGet(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewReminderService(client, nil)
	ctx := context.Background()

	r, err := svc.Create(ctx, models.CreateReminderRequest{
		OwnerUserID: 1,
		Text:        "take out the recycling",
		FireAt:      "2026-08-25T08:00:00Z",
	})
	require.NoError(t, err)
	assert.False(t, r.Fired)

	got, err := svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "take out the recycling", got.Text)
	assert.Equal(t, time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC), got.FireAt.UTC())
}

func TestReminderCreateValidation(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewReminderService(client, nil)
	ctx := context.Background()

	cases := []models.CreateReminderRequest{
		{Text: "x", FireAt: "2026-08-25T08:00:00Z"},
		{OwnerUserID: 1, FireAt: "2026-08-25T08:00:00Z"},
		{OwnerUserID: 1, Text: "x", FireAt: "not a time"},
		{OwnerUserID: 1, Text: "x", FireAt: "2026-08-25T08:00:00Z", RecurrenceMinutes: ptr(int64(0))},
	}
	for _, req := range cases {
		_, err := svc.Create(ctx, req)
		assert.True(t, services.IsValidationError(err), "request %+v", req)
	}
}

func TestReminderFireDue(t *testing.T) {
	client := testdb.NewTestClient(t)
	pub := &capturePublisher{}
	svc := services.NewReminderService(client, pub)
	audits := services.NewAuditService(client)
	ctx := context.Background()

	due, err := svc.Create(ctx, models.CreateReminderRequest{
		OwnerUserID: 1,
		Text:        "call the plumber",
		FireAt:      "2026-08-24T09:00:00Z",
	})
	require.NoError(t, err)
	future, err := svc.Create(ctx, models.CreateReminderRequest{
		OwnerUserID: 1,
		Text:        "not yet",
		FireAt:      "2026-08-30T09:00:00Z",
	})
	require.NoError(t, err)

	fired, err := svc.FireDue(ctx, time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	got, err := svc.Get(ctx, due.ID)
	require.NoError(t, err)
	assert.True(t, got.Fired)
	got, err = svc.Get(ctx, future.ID)
	require.NoError(t, err)
	assert.False(t, got.Fired)

	notes := pub.published()
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotifyTypeReminder, notes[0].Type)
	assert.Equal(t, int64(1), notes[0].UserID)
	assert.Equal(t, due.ID, notes[0].Data["reminder_id"])
	assert.Equal(t, "call the plumber", notes[0].Data["text"])

	rec := lastAudit(t, audits, "reminder", due.ID)
	assert.Equal(t, models.AuditActionFired, rec.Action)
	assert.Equal(t, "scheduler", rec.Actor)
}

func TestReminderFireDueIncludesMemoryContent(t *testing.T) {
	client := testdb.NewTestClient(t)
	pub := &capturePublisher{}
	memories := services.NewMemoryService(client, time.Hour)
	svc := services.NewReminderService(client, pub)
	ctx := context.Background()

	m := createTextMemory(t, memories, 1, "renew the car insurance")
	_, err := svc.Create(ctx, models.CreateReminderRequest{
		OwnerUserID: 1,
		MemoryID:    &m.ID,
		Text:        "insurance deadline",
		FireAt:      "2026-08-24T09:00:00Z",
	})
	require.NoError(t, err)

	_, err = svc.FireDue(ctx, time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	notes := pub.published()
	require.Len(t, notes, 1)
	assert.Equal(t, m.ID, notes[0].Data["memory_id"])
	assert.Equal(t, "renew the car insurance", notes[0].Data["memory_content"])
}

func TestReminderFireDueRecurrence(t *testing.T) {
	client := testdb.NewTestClient(t)
	pub := &capturePublisher{}
	svc := services.NewReminderService(client, pub)
	ctx := context.Background()

	r, err := svc.Create(ctx, models.CreateReminderRequest{
		OwnerUserID:       1,
		Text:              "stretch break",
		FireAt:            "2026-08-24T09:00:00Z",
		RecurrenceMinutes: ptr(int64(60)),
	})
	require.NoError(t, err)

	fired, err := svc.FireDue(ctx, time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	all, err := svc.List(ctx, models.ListRemindersParams{OwnerUserID: 1})
	require.NoError(t, err)
	require.Len(t, all, 2)

	var successor *models.Reminder
	for i := range all {
		if all[i].ID != r.ID {
			successor = &all[i]
		}
	}
	require.NotNil(t, successor)
	assert.False(t, successor.Fired)
	assert.Equal(t, "stretch break", successor.Text)
	assert.Equal(t, time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC), successor.FireAt.UTC())
	require.NotNil(t, successor.RecurrenceMinutes)
	assert.Equal(t, int64(60), *successor.RecurrenceMinutes)
}

func TestReminderFireDuePublishFailureLeavesUnfired(t *testing.T) {
	client := testdb.NewTestClient(t)
	pub := &capturePublisher{fail: true}
	svc := services.NewReminderService(client, pub)
	ctx := context.Background()

	r, err := svc.Create(ctx, models.CreateReminderRequest{
		OwnerUserID: 1,
		Text:        "must survive a broker outage",
		FireAt:      "2026-08-24T09:00:00Z",
	})
	require.NoError(t, err)

	fired, err := svc.FireDue(ctx, time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, fired)

	got, err := svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.Fired)

	// Broker back up: the next tick fires it.
	pub.fail = false
	fired, err = svc.FireDue(ctx, time.Date(2026, 8, 24, 10, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

func TestReminderListUpcomingOnly(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewReminderService(client, &capturePublisher{})
	ctx := context.Background()

	_, err := svc.Create(ctx, models.CreateReminderRequest{
		OwnerUserID: 1, Text: "past", FireAt: "2020-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	upcoming, err := svc.Create(ctx, models.CreateReminderRequest{
		OwnerUserID: 1, Text: "future", FireAt: "2099-01-01T00:00:00Z",
	})
	require.NoError(t, err)

	_, err = svc.FireDue(ctx, time.Now().UTC())
	require.NoError(t, err)

	list, err := svc.List(ctx, models.ListRemindersParams{OwnerUserID: 1, UpcomingOnly: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, upcoming.ID, list[0].ID)
}

func TestReminderDelete(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewReminderService(client, nil)
	ctx := context.Background()

	r, err := svc.Create(ctx, models.CreateReminderRequest{
		OwnerUserID: 1, Text: "throwaway", FireAt: "2026-08-25T08:00:00Z",
	})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, r.ID))
	assert.ErrorIs(t, svc.Delete(ctx, r.ID), services.ErrNotFound)
}
