package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/jhyoong/bearmemori/pkg/database"
	"github.com/jhyoong/bearmemori/pkg/models"
)

// JobService manages durable LLM job records. Creating a job commits the row
// first, then publishes the stream message; a publish failure leaves a queued
// row behind rather than a dangling message for a job that does not exist.
type JobService struct {
	client    *database.Client
	publisher JobPublisher
}

// NewJobService creates a new JobService.
func NewJobService(client *database.Client, publisher JobPublisher) *JobService {
	return &JobService{client: client, publisher: publisher}
}

// Create inserts a queued job and publishes its message on the job type's
// input stream.
func (s *JobService) Create(ctx context.Context, req models.CreateJobRequest) (*models.LLMJob, error) {
	if !slices.Contains(models.JobTypes, req.JobType) {
		return nil, NewValidationError("job_type", "unknown job type")
	}
	if len(req.Payload) == 0 {
		return nil, NewValidationError("payload", "required")
	}

	now := time.Now().UTC()
	job := models.LLMJob{
		ID:          uuid.New().String(),
		JobType:     req.JobType,
		Payload:     req.Payload,
		OwnerUserID: req.OwnerUserID,
		Status:      models.JobStatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO llm_jobs (id, job_type, payload, owner_user_id, status, result, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, NULL, NULL, ?, ?)`,
		job.ID, job.JobType, string(job.Payload), job.OwnerUserID, job.Status,
		job.CreatedAt, job.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}
	if err := auditTx(tx, "llm_job", job.ID, models.AuditActionCreated, ActorAPI,
		map[string]any{"job_type": job.JobType}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	if s.publisher != nil {
		msg := models.JobMessage{JobID: job.ID, JobType: job.JobType, Payload: job.Payload}
		if job.OwnerUserID != nil {
			msg.UserID = *job.OwnerUserID
		}
		if err := s.publisher.PublishJob(ctx, msg); err != nil {
			// The queued row stays behind for inspection and manual requeue.
			slog.Error("Failed to publish job message", "job_id", job.ID, "job_type", job.JobType, "error", err)
			return nil, fmt.Errorf("failed to publish job message: %w", err)
		}
	}
	return &job, nil
}

// Get returns a job by id.
func (s *JobService) Get(ctx context.Context, id string) (*models.LLMJob, error) {
	row := s.client.DB().QueryRowxContext(ctx,
		`SELECT id, job_type, payload, owner_user_id, status, result, error, created_at, updated_at
		 FROM llm_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// List returns jobs newest first, optionally filtered by status and type.
func (s *JobService) List(ctx context.Context, status *models.JobStatus, jobType string, limit int) ([]models.LLMJob, error) {
	query := `SELECT id, job_type, payload, owner_user_id, status, result, error, created_at, updated_at
	 FROM llm_jobs WHERE 1=1`
	var args []any
	if status != nil {
		query += ` AND status = ?`
		args = append(args, *status)
	}
	if jobType != "" {
		query += ` AND job_type = ?`
		args = append(args, jobType)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.client.DB().QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.LLMJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// Update transitions a job's status and records result or error. Terminal
// jobs reject further transitions with a validation error so redeliveries
// surface as 4xx, not silent overwrites.
func (s *JobService) Update(ctx context.Context, id string, req models.UpdateJobRequest) (*models.LLMJob, error) {
	if req.Status != nil {
		switch *req.Status {
		case models.JobStatusQueued, models.JobStatusProcessing,
			models.JobStatusCompleted, models.JobStatusFailed:
		default:
			return nil, NewValidationError("status", "unknown job status")
		}
	}

	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowx(
		`SELECT id, job_type, payload, owner_user_id, status, result, error, created_at, updated_at
		 FROM llm_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}

	changed := map[string]any{}
	if req.Status != nil && *req.Status != job.Status {
		if job.Status.IsTerminal() {
			return nil, NewValidationError("status", fmt.Sprintf("job is already %s", job.Status))
		}
		job.Status = *req.Status
		changed["status"] = string(*req.Status)
	}
	if req.Result != nil {
		job.Result = req.Result
		changed["result_set"] = true
	}
	if req.Error != nil {
		job.Error = req.Error
		changed["error"] = *req.Error
	}
	if len(changed) == 0 {
		return job, nil
	}
	job.UpdatedAt = time.Now().UTC()

	if _, err := tx.Exec(
		`UPDATE llm_jobs SET status = ?, result = ?, error = ?, updated_at = ? WHERE id = ?`,
		job.Status, job.Result, job.Error, job.UpdatedAt, job.ID); err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	if err := auditTx(tx, "llm_job", job.ID, models.AuditActionUpdated, ActorAPI, changed); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return job, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.LLMJob, error) {
	var (
		job     models.LLMJob
		payload string
	)
	if err := row.Scan(&job.ID, &job.JobType, &payload, &job.OwnerUserID,
		&job.Status, &job.Result, &job.Error, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	job.Payload = []byte(payload)
	return &job, nil
}
