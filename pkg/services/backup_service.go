package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhyoong/bearmemori/pkg/database"
	"github.com/jhyoong/bearmemori/pkg/models"
)

// Backup job statuses.
const (
	BackupStatusRequested = "requested"
	BackupStatusRunning   = "running"
	BackupStatusDone      = "done"
	BackupStatusFailed    = "failed"
)

// BackupService tracks per-user backup runs. Only one non-terminal run per
// user is allowed at a time.
type BackupService struct {
	client *database.Client
}

// NewBackupService creates a new BackupService.
func NewBackupService(client *database.Client) *BackupService {
	return &BackupService{client: client}
}

// Request records a new backup run for the user.
func (s *BackupService) Request(ctx context.Context, userID int64) (*models.BackupJob, error) {
	if userID == 0 {
		return nil, NewValidationError("user_id", "required")
	}

	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var active int
	err = tx.Get(&active,
		`SELECT COUNT(*) FROM backup_jobs WHERE user_id = ? AND status IN (?, ?)`,
		userID, BackupStatusRequested, BackupStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("failed to check active backups: %w", err)
	}
	if active > 0 {
		return nil, ErrAlreadyExists
	}

	now := time.Now().UTC()
	job := models.BackupJob{
		ID:        uuid.New().String(),
		UserID:    userID,
		Status:    BackupStatusRequested,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := tx.NamedExec(
		`INSERT INTO backup_jobs (id, user_id, status, created_at, updated_at)
		 VALUES (:id, :user_id, :status, :created_at, :updated_at)`, job); err != nil {
		return nil, fmt.Errorf("failed to insert backup job: %w", err)
	}
	if err := auditTx(tx, "backup_job", job.ID, models.AuditActionCreated, ActorAPI, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return &job, nil
}

// Get returns a backup run by id.
func (s *BackupService) Get(ctx context.Context, id string) (*models.BackupJob, error) {
	var job models.BackupJob
	err := s.client.DB().GetContext(ctx, &job,
		`SELECT id, user_id, status, created_at, updated_at FROM backup_jobs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backup job: %w", err)
	}
	return &job, nil
}

// ListByUser returns a user's backup runs, newest first.
func (s *BackupService) ListByUser(ctx context.Context, userID int64, limit int) ([]models.BackupJob, error) {
	if userID == 0 {
		return nil, NewValidationError("user_id", "required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var jobs []models.BackupJob
	if err := s.client.DB().SelectContext(ctx, &jobs,
		`SELECT id, user_id, status, created_at, updated_at FROM backup_jobs
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list backup jobs: %w", err)
	}
	return jobs, nil
}

// SetStatus advances a backup run's status.
func (s *BackupService) SetStatus(ctx context.Context, id, status string) (*models.BackupJob, error) {
	switch status {
	case BackupStatusRequested, BackupStatusRunning, BackupStatusDone, BackupStatusFailed:
	default:
		return nil, NewValidationError("status", "unknown backup status")
	}

	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var job models.BackupJob
	err = tx.Get(&job,
		`SELECT id, user_id, status, created_at, updated_at FROM backup_jobs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load backup job: %w", err)
	}

	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	if _, err := tx.NamedExec(
		`UPDATE backup_jobs SET status = :status, updated_at = :updated_at WHERE id = :id`, job); err != nil {
		return nil, fmt.Errorf("failed to update backup job: %w", err)
	}
	if err := auditTx(tx, "backup_job", job.ID, models.AuditActionUpdated, ActorAPI,
		map[string]any{"status": status}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return &job, nil
}
