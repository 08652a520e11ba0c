package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhyoong/bearmemori/pkg/llm"
)

// HistoryStore persists per-user chat history and session summaries in a TTL
// key/value store. History expires after 24 h of inactivity, summaries after
// 7 d; both TTLs refresh on save.
type HistoryStore struct {
	rdb        *redis.Client
	historyTTL time.Duration
	summaryTTL time.Duration
}

// NewHistoryStore creates a history store over an existing Redis client.
func NewHistoryStore(rdb *redis.Client, historyTTL, summaryTTL time.Duration) *HistoryStore {
	return &HistoryStore{rdb: rdb, historyTTL: historyTTL, summaryTTL: summaryTTL}
}

func historyKey(userID int64) string {
	return "chat:history:" + strconv.FormatInt(userID, 10)
}

func summaryKey(userID int64) string {
	return "chat:summary:" + strconv.FormatInt(userID, 10)
}

// LoadHistory returns the user's chat history, empty when absent or expired.
func (s *HistoryStore) LoadHistory(ctx context.Context, userID int64) ([]llm.Message, error) {
	raw, err := s.rdb.Get(ctx, historyKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	var history []llm.Message
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		// A corrupt blob resets the session rather than wedging it.
		return nil, nil
	}
	return history, nil
}

// SaveHistory stores the history and refreshes its TTL.
func (s *HistoryStore) SaveHistory(ctx context.Context, userID int64, history []llm.Message) error {
	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal chat history: %w", err)
	}
	if err := s.rdb.Set(ctx, historyKey(userID), raw, s.historyTTL).Err(); err != nil {
		return fmt.Errorf("failed to save chat history: %w", err)
	}
	return nil
}

// ClearHistory drops the user's history.
func (s *HistoryStore) ClearHistory(ctx context.Context, userID int64) error {
	return s.rdb.Del(ctx, historyKey(userID)).Err()
}

// LoadSummary returns the user's session summary, empty when absent.
func (s *HistoryStore) LoadSummary(ctx context.Context, userID int64) (string, error) {
	raw, err := s.rdb.Get(ctx, summaryKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session summary: %w", err)
	}
	return raw, nil
}

// SaveSummary stores the summary and refreshes its TTL.
func (s *HistoryStore) SaveSummary(ctx context.Context, userID int64, summary string) error {
	if err := s.rdb.Set(ctx, summaryKey(userID), summary, s.summaryTTL).Err(); err != nil {
		return fmt.Errorf("failed to save session summary: %w", err)
	}
	return nil
}
