package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jhyoong/bearmemori/pkg/database"
	"github.com/jhyoong/bearmemori/pkg/models"
)

// TagService manages memory tags. Confirmed tags participate in search, so
// every confirmed-tag mutation re-indexes the owning memory in the same
// transaction.
type TagService struct {
	client *database.Client
}

// NewTagService creates a new TagService.
func NewTagService(client *database.Client) *TagService {
	return &TagService{client: client}
}

// AddTags upserts tags on a memory with the given status. Re-adding a
// suggested tag as confirmed confirms it.
func (s *TagService) AddTags(ctx context.Context, memoryID string, req models.AddTagsRequest) ([]models.MemoryTag, error) {
	if len(req.Tags) == 0 {
		return nil, NewValidationError("tags", "required")
	}
	if req.Status != models.TagStatusSuggested && req.Status != models.TagStatusConfirmed {
		return nil, NewValidationError("status", "must be suggested or confirmed")
	}

	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.Get(&exists, `SELECT 1 FROM memories WHERE id = ?`, memoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check memory: %w", err)
	}

	now := time.Now().UTC()
	var result []models.MemoryTag
	for _, tag := range req.Tags {
		if tag == "" {
			continue
		}
		t := models.MemoryTag{MemoryID: memoryID, Tag: tag, Status: req.Status}
		if req.Status == models.TagStatusSuggested {
			t.SuggestedAt = &now
		} else {
			t.ConfirmedAt = &now
		}
		if _, err := tx.NamedExec(
			`INSERT INTO memory_tags (memory_id, tag, status, suggested_at, confirmed_at)
			 VALUES (:memory_id, :tag, :status, :suggested_at, :confirmed_at)
			 ON CONFLICT (memory_id, tag) DO UPDATE SET status = excluded.status,
			     confirmed_at = COALESCE(excluded.confirmed_at, memory_tags.confirmed_at)`, t); err != nil {
			return nil, fmt.Errorf("failed to upsert tag: %w", err)
		}
		result = append(result, t)
	}
	if len(result) == 0 {
		return nil, NewValidationError("tags", "no non-empty tags given")
	}

	if req.Status == models.TagStatusConfirmed {
		if err := database.ReindexMemory(tx, memoryID); err != nil {
			return nil, err
		}
	}
	if err := auditTx(tx, "memory", memoryID, models.AuditActionUpdated, ActorAPI,
		map[string]any{"tags": req.Tags, "tag_status": string(req.Status)}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return result, nil
}

// DeleteTag removes one tag from a memory, re-indexing when the tag was
// confirmed.
func (s *TagService) DeleteTag(ctx context.Context, memoryID, tag string) error {
	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var status models.TagStatus
	err = tx.Get(&status,
		`SELECT status FROM memory_tags WHERE memory_id = ? AND tag = ?`, memoryID, tag)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load tag: %w", err)
	}

	if _, err := tx.Exec(
		`DELETE FROM memory_tags WHERE memory_id = ? AND tag = ?`, memoryID, tag); err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	if status == models.TagStatusConfirmed {
		if err := database.ReindexMemory(tx, memoryID); err != nil {
			return err
		}
	}
	if err := auditTx(tx, "memory", memoryID, models.AuditActionUpdated, ActorAPI,
		map[string]any{"tag_removed": tag}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ExpireSuggested deletes suggested tags older than the cutoff. Suggested tags
// are never indexed, so no FTS work is needed. Returns the number removed.
func (s *TagService) ExpireSuggested(ctx context.Context, cutoff time.Time) (int, error) {
	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stale []models.MemoryTag
	if err := tx.Select(&stale,
		`SELECT memory_id, tag, status, suggested_at, confirmed_at FROM memory_tags
		 WHERE status = 'suggested' AND suggested_at IS NOT NULL AND suggested_at <= ?`,
		cutoff.UTC()); err != nil {
		return 0, fmt.Errorf("failed to select stale tags: %w", err)
	}

	for _, t := range stale {
		if _, err := tx.Exec(
			`DELETE FROM memory_tags WHERE memory_id = ? AND tag = ?`, t.MemoryID, t.Tag); err != nil {
			return 0, fmt.Errorf("failed to delete stale tag: %w", err)
		}
		if err := auditTx(tx, "memory", t.MemoryID, models.AuditActionExpired, ActorScheduler,
			map[string]any{"tag": t.Tag, "reason": "suggested_tag_expiry"}); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return len(stale), nil
}
