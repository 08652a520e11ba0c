package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jhyoong/bearmemori/pkg/database"
	"github.com/jhyoong/bearmemori/pkg/models"
)

// MemoryService manages memory lifecycle: creation, mutation, deletion, media
// blob ownership, and keeping the FTS index in step with every change.
type MemoryService struct {
	client     *database.Client
	pendingTTL time.Duration
}

// NewMemoryService creates a new MemoryService. pendingTTL is how long a
// pending media memory lives before scheduler expiry.
func NewMemoryService(client *database.Client, pendingTTL time.Duration) *MemoryService {
	return &MemoryService{client: client, pendingTTL: pendingTTL}
}

// Create inserts a memory. Media memories start pending (awaiting
// classification) with an expiry deadline; text memories are confirmed
// immediately and indexed.
func (s *MemoryService) Create(ctx context.Context, req models.CreateMemoryRequest) (*models.Memory, error) {
	if req.OwnerUserID == 0 {
		return nil, NewValidationError("owner_user_id", "required")
	}
	if (req.Content == nil || *req.Content == "") && req.MediaType == nil {
		return nil, NewValidationError("content", "content or media required")
	}

	now := time.Now().UTC()
	m := models.Memory{
		ID:          uuid.New().String(),
		OwnerUserID: req.OwnerUserID,
		Content:     req.Content,
		MediaType:   req.MediaType,
		MediaFileID: req.MediaFileID,
		MediaPath:   req.MediaPath,
		Status:      models.MemoryStatusConfirmed,
		IsPinned:    req.IsPinned,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.MediaType != nil {
		m.Status = models.MemoryStatusPending
		expires := now.Add(s.pendingTTL)
		m.PendingExpiresAt = &expires
	}

	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.NamedExec(
		`INSERT INTO memories (id, owner_user_id, content, media_type, media_file_id, media_path,
		     status, pending_expires_at, is_pinned, created_at, updated_at)
		 VALUES (:id, :owner_user_id, :content, :media_type, :media_file_id, :media_path,
		     :status, :pending_expires_at, :is_pinned, :created_at, :updated_at)`, m); err != nil {
		return nil, fmt.Errorf("failed to insert memory: %w", err)
	}

	if m.Status == models.MemoryStatusConfirmed {
		if err := database.ReindexMemory(tx, m.ID); err != nil {
			return nil, err
		}
	}

	if err := auditTx(tx, "memory", m.ID, models.AuditActionCreated, ActorAPI, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return &m, nil
}

// Get returns a memory by id.
func (s *MemoryService) Get(ctx context.Context, id string) (*models.Memory, error) {
	var m models.Memory
	err := s.client.DB().GetContext(ctx, &m,
		`SELECT id, owner_user_id, content, media_type, media_file_id, media_path,
		     status, pending_expires_at, is_pinned, created_at, updated_at
		 FROM memories WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}
	return &m, nil
}

// Tags returns a memory's tags, confirmed first.
func (s *MemoryService) Tags(ctx context.Context, id string) ([]models.MemoryTag, error) {
	var tags []models.MemoryTag
	if err := s.client.DB().SelectContext(ctx, &tags,
		`SELECT memory_id, tag, status, suggested_at, confirmed_at
		 FROM memory_tags WHERE memory_id = ? ORDER BY status, tag`, id); err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

// Update applies a partial mutation. Status transitions keep the FTS index
// consistent: confirming indexes the memory, re-pending removes it.
func (s *MemoryService) Update(ctx context.Context, id string, req models.UpdateMemoryRequest) (*models.Memory, error) {
	if req.Status != nil &&
		*req.Status != models.MemoryStatusPending && *req.Status != models.MemoryStatusConfirmed {
		return nil, NewValidationError("status", "must be pending or confirmed")
	}

	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var m models.Memory
	err = tx.Get(&m,
		`SELECT id, owner_user_id, content, media_type, media_file_id, media_path,
		     status, pending_expires_at, is_pinned, created_at, updated_at
		 FROM memories WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load memory: %w", err)
	}

	changed := map[string]any{}
	if req.Content != nil {
		m.Content = req.Content
		changed["content"] = *req.Content
	}
	if req.MediaPath != nil {
		m.MediaPath = req.MediaPath
		changed["media_path"] = *req.MediaPath
	}
	if req.IsPinned != nil {
		m.IsPinned = *req.IsPinned
		changed["is_pinned"] = *req.IsPinned
	}
	if req.Status != nil && *req.Status != m.Status {
		m.Status = *req.Status
		changed["status"] = string(*req.Status)
		if m.Status == models.MemoryStatusConfirmed {
			m.PendingExpiresAt = nil
		} else {
			expires := time.Now().UTC().Add(s.pendingTTL)
			m.PendingExpiresAt = &expires
		}
	}
	if len(changed) == 0 {
		return &m, nil
	}
	m.UpdatedAt = time.Now().UTC()

	if _, err := tx.NamedExec(
		`UPDATE memories SET content = :content, media_path = :media_path, status = :status,
		     pending_expires_at = :pending_expires_at, is_pinned = :is_pinned, updated_at = :updated_at
		 WHERE id = :id`, m); err != nil {
		return nil, fmt.Errorf("failed to update memory: %w", err)
	}

	if err := database.ReindexMemory(tx, m.ID); err != nil {
		return nil, err
	}
	if err := auditTx(tx, "memory", m.ID, models.AuditActionUpdated, ActorAPI, changed); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return &m, nil
}

// Delete removes a memory, its FTS row, its tags (cascade), and its media
// blob.
func (s *MemoryService) Delete(ctx context.Context, id string) error {
	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var mediaPath *string
	err = tx.Get(&mediaPath, `SELECT media_path FROM memories WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load memory: %w", err)
	}

	if err := database.RemoveFromIndex(tx, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM memories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	if err := auditTx(tx, "memory", id, models.AuditActionDeleted, ActorAPI, nil); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	removeBlob(mediaPath, id)
	return nil
}

// ExpirePending deletes pending media memories whose deadline has passed.
// All mutations commit once at the end of the sweep. Returns the expired ids.
func (s *MemoryService) ExpirePending(ctx context.Context, now time.Time) ([]string, error) {
	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var expired []struct {
		ID        string  `db:"id"`
		MediaPath *string `db:"media_path"`
	}
	if err := tx.Select(&expired,
		`SELECT id, media_path FROM memories
		 WHERE status = 'pending' AND pending_expires_at IS NOT NULL AND pending_expires_at <= ?`,
		now.UTC()); err != nil {
		return nil, fmt.Errorf("failed to select expired memories: %w", err)
	}

	var ids []string
	for _, row := range expired {
		// Pending memories are normally absent from the index; clear any stale row.
		if err := database.RemoveFromIndex(tx, row.ID); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(`DELETE FROM memories WHERE id = ?`, row.ID); err != nil {
			return nil, fmt.Errorf("failed to delete expired memory: %w", err)
		}
		if err := auditTx(tx, "memory", row.ID, models.AuditActionExpired, ActorScheduler, nil); err != nil {
			return nil, err
		}
		removeBlob(row.MediaPath, row.ID)
		ids = append(ids, row.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return ids, nil
}

// removeBlob unlinks a media file best-effort; a missing file is not an error.
func removeBlob(path *string, memoryID string) {
	if path == nil || *path == "" {
		return
	}
	if err := os.Remove(*path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove media blob", "memory_id", memoryID, "path", *path, "error", err)
	}
}
