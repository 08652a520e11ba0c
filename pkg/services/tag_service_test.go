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

func TestAddTagsConfirmedBecomeSearchable(t *testing.T) {
	client := testdb.NewTestClient(t)
	memories := services.NewMemoryService(client, time.Hour)
	tags := services.NewTagService(client)
	search := services.NewSearchService(client)
	ctx := context.Background()

	m := createTextMemory(t, memories, 1, "picture from the trail")
	added, err := tags.AddTags(ctx, m.ID, models.AddTagsRequest{
		Tags:   []string{"hiking", "alps"},
		Status: models.TagStatusConfirmed,
	})
	require.NoError(t, err)
	assert.Len(t, added, 2)

	hits, err := search.Search(ctx, 1, "alps", false, 0, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, m.ID, hits[0].Memory.ID)
}

func TestAddTagsSuggestedNotSearchable(t *testing.T) {
	client := testdb.NewTestClient(t)
	memories := services.NewMemoryService(client, time.Hour)
	tags := services.NewTagService(client)
	search := services.NewSearchService(client)
	ctx := context.Background()

	m := createTextMemory(t, memories, 1, "another trail picture")
	_, err := tags.AddTags(ctx, m.ID, models.AddTagsRequest{
		Tags:   []string{"glacier"},
		Status: models.TagStatusSuggested,
	})
	require.NoError(t, err)

	hits, err := search.Search(ctx, 1, "glacier", false, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestAddTagsConfirmingSuggested(t *testing.T) {
	client := testdb.NewTestClient(t)
	memories := services.NewMemoryService(client, time.Hour)
	tags := services.NewTagService(client)
	ctx := context.Background()

	m := createTextMemory(t, memories, 1, "market haul")
	_, err := tags.AddTags(ctx, m.ID, models.AddTagsRequest{
		Tags: []string{"vegetables"}, Status: models.TagStatusSuggested,
	})
	require.NoError(t, err)
	_, err = tags.AddTags(ctx, m.ID, models.AddTagsRequest{
		Tags: []string{"vegetables"}, Status: models.TagStatusConfirmed,
	})
	require.NoError(t, err)

	got, err := memories.Tags(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.TagStatusConfirmed, got[0].Status)
	assert.NotNil(t, got[0].ConfirmedAt)
}

func TestAddTagsValidation(t *testing.T) {
	client := testdb.NewTestClient(t)
	memories := services.NewMemoryService(client, time.Hour)
	tags := services.NewTagService(client)
	ctx := context.Background()

	m := createTextMemory(t, memories, 1, "anything")

	_, err := tags.AddTags(ctx, m.ID, models.AddTagsRequest{Status: models.TagStatusConfirmed})
	assert.True(t, services.IsValidationError(err))

	_, err = tags.AddTags(ctx, m.ID, models.AddTagsRequest{
		Tags: []string{"x"}, Status: models.TagStatus("archived"),
	})
	assert.True(t, services.IsValidationError(err))

	_, err = tags.AddTags(ctx, m.ID, models.AddTagsRequest{
		Tags: []string{""}, Status: models.TagStatusConfirmed,
	})
	assert.True(t, services.IsValidationError(err))

	_, err = tags.AddTags(ctx, "no-such-memory", models.AddTagsRequest{
		Tags: []string{"x"}, Status: models.TagStatusConfirmed,
	})
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestDeleteTagReindexes(t *testing.T) {
	client := testdb.NewTestClient(t)
	memories := services.NewMemoryService(client, time.Hour)
	tags := services.NewTagService(client)
	search := services.NewSearchService(client)
	ctx := context.Background()

	m := createTextMemory(t, memories, 1, "kitchen renovation ideas")
	_, err := tags.AddTags(ctx, m.ID, models.AddTagsRequest{
		Tags: []string{"cabinets"}, Status: models.TagStatusConfirmed,
	})
	require.NoError(t, err)

	require.NoError(t, tags.DeleteTag(ctx, m.ID, "cabinets"))

	hits, err := search.Search(ctx, 1, "cabinets", false, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	assert.ErrorIs(t, tags.DeleteTag(ctx, m.ID, "cabinets"), services.ErrNotFound)
}

func TestExpireSuggested(t *testing.T) {
	client := testdb.NewTestClient(t)
	memories := services.NewMemoryService(client, time.Hour)
	tags := services.NewTagService(client)
	audits := services.NewAuditService(client)
	ctx := context.Background()

	m := createTextMemory(t, memories, 1, "snapshot with guesses")
	_, err := tags.AddTags(ctx, m.ID, models.AddTagsRequest{
		Tags: []string{"guess"}, Status: models.TagStatusSuggested,
	})
	require.NoError(t, err)
	_, err = tags.AddTags(ctx, m.ID, models.AddTagsRequest{
		Tags: []string{"keeper"}, Status: models.TagStatusConfirmed,
	})
	require.NoError(t, err)

	// Cutoff in the future sweeps every suggested tag.
	removed, err := tags.ExpireSuggested(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := memories.Tags(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keeper", got[0].Tag)

	rec := lastAudit(t, audits, "memory", m.ID)
	assert.Equal(t, models.AuditActionExpired, rec.Action)
	assert.Equal(t, "scheduler", rec.Actor)
}

func TestExpireSuggestedSparesFresh(t *testing.T) {
	client := testdb.NewTestClient(t)
	memories := services.NewMemoryService(client, time.Hour)
	tags := services.NewTagService(client)
	ctx := context.Background()

	m := createTextMemory(t, memories, 1, "fresh suggestion")
	_, err := tags.AddTags(ctx, m.ID, models.AddTagsRequest{
		Tags: []string{"recent"}, Status: models.TagStatusSuggested,
	})
	require.NoError(t, err)

	removed, err := tags.ExpireSuggested(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, removed)
}
