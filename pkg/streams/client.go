// Package streams wraps the Redis Streams broker: job input streams, the
// outbound notify stream, and consumer-group plumbing shared by the worker
// and the gateway.
package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhyoong/bearmemori/pkg/metrics"
	"github.com/jhyoong/bearmemori/pkg/models"
)

// NotifyStream is the single outbound notification stream.
const NotifyStream = "notify"

// messageField is the single field carried by every stream record; its value
// is a JSON object.
const messageField = "message"

// maxStreamLen caps stream growth; old entries are trimmed approximately.
const maxStreamLen = 10000

// JobStream returns the input stream key for a job type.
func JobStream(jobType string) string {
	return "jobs:" + jobType
}

// Message is one delivered stream record.
type Message struct {
	ID     string
	Stream string
	Raw    []byte
}

// Client is a thin broker wrapper shared by publishers and consumers.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to the broker at the given URL (redis://host:port/db).
func NewClient(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// NewClientFromRedis wraps an existing Redis client (useful for testing).
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Close closes the broker connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies broker connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PublishJob appends a job message to its job type's input stream.
func (c *Client) PublishJob(ctx context.Context, msg models.JobMessage) error {
	return c.publish(ctx, JobStream(msg.JobType), msg)
}

// PublishNotification appends a notification to the outbound notify stream.
func (c *Client) PublishNotification(ctx context.Context, n models.Notification) error {
	if err := c.publish(ctx, NotifyStream, n); err != nil {
		return err
	}
	metrics.NotificationsPublished.WithLabelValues(n.Type).Inc()
	return nil
}

func (c *Client) publish(ctx context.Context, stream string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal stream message: %w", err)
	}
	if err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]any{messageField: string(raw)},
	}).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}
	return nil
}

// EnsureGroup creates the consumer group from offset 0, creating the stream
// if absent. BUSYGROUP on re-creation is ignored.
func (c *Client) EnsureGroup(ctx context.Context, stream, group string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isBusyGroupError(err) {
		return fmt.Errorf("failed to create consumer group %s on %s: %w", group, stream, err)
	}
	return nil
}

// ReadGroup performs one blocking consumer-group read on a single stream.
// Returns no messages (and no error) on timeout.
func (c *Client) ReadGroup(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error) {
	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || isNoGroupError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from %s: %w", stream, err)
	}

	var msgs []Message
	for _, st := range res {
		for _, m := range st.Messages {
			raw, ok := m.Values[messageField].(string)
			if !ok {
				// Unknown record shape; deliver empty payload so the consumer
				// can ack and drop it.
				raw = ""
			}
			msgs = append(msgs, Message{ID: m.ID, Stream: st.Stream, Raw: []byte(raw)})
		}
	}
	return msgs, nil
}

// Ack acknowledges a delivered message for the group.
func (c *Client) Ack(ctx context.Context, stream, group, id string) error {
	if err := c.rdb.XAck(ctx, stream, group, id).Err(); err != nil {
		return fmt.Errorf("failed to ack %s on %s: %w", id, stream, err)
	}
	return nil
}

// Redis returns the underlying client for callers needing plain key/value
// operations (TTL state, digest markers).
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

func isBusyGroupError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}

func isNoGroupError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "NOGROUP")
}
