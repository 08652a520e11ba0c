package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhyoong/bearmemori/pkg/models"
	"github.com/jhyoong/bearmemori/pkg/services"
	testdb "github.com/jhyoong/bearmemori/test/database"
)

func TestSettingsGetDefaults(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewSettingsService(client)

	settings, err := svc.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), settings.UserID)
	assert.Equal(t, "UTC", settings.Timezone)
	assert.Equal(t, "en", settings.Language)
}

func TestSettingsUpsertAndGet(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewSettingsService(client)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, 42, models.UpsertSettingsRequest{
		Timezone: "Asia/Singapore",
		Language: "en",
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Singapore", got.Timezone)

	// Second upsert replaces, it does not duplicate.
	_, err = svc.Upsert(ctx, 42, models.UpsertSettingsRequest{
		Timezone: "Europe/Berlin",
	})
	require.NoError(t, err)
	got, err = svc.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", got.Timezone)
	assert.Equal(t, "en", got.Language)
}

func TestSettingsUpsertInvalidTimezone(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewSettingsService(client)

	_, err := svc.Upsert(context.Background(), 42, models.UpsertSettingsRequest{
		Timezone: "Mars/Olympus_Mons",
	})
	assert.True(t, services.IsValidationError(err))
}

func TestSettingsUpsertEmptyFieldsDefault(t *testing.T) {
	client := testdb.NewTestClient(t)
	svc := services.NewSettingsService(client)

	settings, err := svc.Upsert(context.Background(), 42, models.UpsertSettingsRequest{})
	require.NoError(t, err)
	assert.Equal(t, "UTC", settings.Timezone)
	assert.Equal(t, "en", settings.Language)
}
