package streams_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhyoong/bearmemori/pkg/models"
	"github.com/jhyoong/bearmemori/pkg/streams"
)

func newTestClient(t *testing.T) *streams.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return streams.NewClientFromRedis(rdb)
}

func TestPublishAndReadJob(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	stream := streams.JobStream(models.JobTypeFollowup)

	require.NoError(t, client.EnsureGroup(ctx, stream, "workers"))
	require.NoError(t, client.PublishJob(ctx, models.JobMessage{
		JobID:   "j-1",
		JobType: models.JobTypeFollowup,
		Payload: json.RawMessage(`{"text":"hello"}`),
		UserID:  7,
	}))

	msgs, err := client.ReadGroup(ctx, stream, "workers", "w1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var msg models.JobMessage
	require.NoError(t, json.Unmarshal(msgs[0].Raw, &msg))
	assert.Equal(t, "j-1", msg.JobID)
	assert.Equal(t, int64(7), msg.UserID)
}

func TestEnsureGroupIdempotent(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.EnsureGroup(ctx, streams.NotifyStream, "gateway"))
	require.NoError(t, client.EnsureGroup(ctx, streams.NotifyStream, "gateway"))
}

func TestEnsureGroupSeesEarlierMessages(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	// Published before the group exists; the group starts at offset 0 so the
	// message is still delivered.
	require.NoError(t, client.PublishNotification(ctx, models.Notification{
		Type: models.NotifyTypeReminder, UserID: 1,
		Data: map[string]any{"text": "early"},
	}))
	require.NoError(t, client.EnsureGroup(ctx, streams.NotifyStream, "gateway"))

	msgs, err := client.ReadGroup(ctx, streams.NotifyStream, "gateway", "g1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestReadGroupMissingGroupReturnsNothing(t *testing.T) {
	client := newTestClient(t)

	msgs, err := client.ReadGroup(context.Background(), "jobs:nope", "ghosts", "g1", 10, 10*time.Millisecond)
	assert.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestAckStopsRedelivery(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	stream := streams.JobStream(models.JobTypeImageTag)

	require.NoError(t, client.EnsureGroup(ctx, stream, "workers"))
	require.NoError(t, client.PublishJob(ctx, models.JobMessage{
		JobID: "j-1", JobType: models.JobTypeImageTag, Payload: json.RawMessage(`{}`),
	}))

	msgs, err := client.ReadGroup(ctx, stream, "workers", "w1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NoError(t, client.Ack(ctx, stream, "workers", msgs[0].ID))

	// ">" only delivers new messages; the acked one is gone for good.
	msgs, err = client.ReadGroup(ctx, stream, "workers", "w1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestNotificationRoundTripOnStream(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.EnsureGroup(ctx, streams.NotifyStream, "gateway"))
	require.NoError(t, client.PublishNotification(ctx, models.Notification{
		Type:   models.NotifyTypeTaskMatchResult,
		UserID: 9,
		Data:   map[string]any{"task_id": "t-1", "memory_id": "m-1"},
	}))

	msgs, err := client.ReadGroup(ctx, streams.NotifyStream, "gateway", "g1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var n models.Notification
	require.NoError(t, json.Unmarshal(msgs[0].Raw, &n))
	assert.Equal(t, models.NotifyTypeTaskMatchResult, n.Type)
	assert.Equal(t, int64(9), n.UserID)
	assert.Equal(t, "t-1", n.Data["task_id"])
}
