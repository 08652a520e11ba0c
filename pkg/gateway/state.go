package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// PendingKind is the multi-step action a user is in the middle of.
type PendingKind string

// Pending action kinds. Idle is represented by an absent state row.
const (
	PendingAwaitingTags         PendingKind = "awaiting_tags"
	PendingAwaitingDueDate      PendingKind = "awaiting_due_date"
	PendingAwaitingReminderTime PendingKind = "awaiting_reminder_time"
)

// PendingAction is the stored state for one user's in-flight action. Ref
// points at the entity the follow-up answer applies to (memory id, task id,
// reminder text).
type PendingAction struct {
	Kind PendingKind `json:"kind"`
	Ref  string      `json:"ref"`
}

// StateStore keeps pending actions in a TTL key/value store so abandoned
// flows expire on their own.
type StateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStateStore creates the pending-action store.
func NewStateStore(rdb *redis.Client, ttl time.Duration) *StateStore {
	return &StateStore{rdb: rdb, ttl: ttl}
}

func pendingKey(userID int64) string {
	return "gateway:pending:" + strconv.FormatInt(userID, 10)
}

// Get returns the user's pending action, or nil when idle.
func (s *StateStore) Get(ctx context.Context, userID int64) (*PendingAction, error) {
	raw, err := s.rdb.Get(ctx, pendingKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending action: %w", err)
	}
	var action PendingAction
	if err := json.Unmarshal([]byte(raw), &action); err != nil {
		return nil, nil
	}
	return &action, nil
}

// Set stores the user's pending action with the configured TTL.
func (s *StateStore) Set(ctx context.Context, userID int64, action PendingAction) error {
	raw, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal pending action: %w", err)
	}
	if err := s.rdb.Set(ctx, pendingKey(userID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store pending action: %w", err)
	}
	return nil
}

// Clear returns the user to idle.
func (s *StateStore) Clear(ctx context.Context, userID int64) error {
	return s.rdb.Del(ctx, pendingKey(userID)).Err()
}
