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

// TaskService manages user tasks.
type TaskService struct {
	client *database.Client
}

// NewTaskService creates a new TaskService.
func NewTaskService(client *database.Client) *TaskService {
	return &TaskService{client: client}
}

// Create inserts a task in state NOT_DONE.
func (s *TaskService) Create(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	if req.OwnerUserID == 0 {
		return nil, NewValidationError("owner_user_id", "required")
	}
	if req.Description == "" {
		return nil, NewValidationError("description", "required")
	}

	now := time.Now().UTC()
	t := models.Task{
		ID:                uuid.New().String(),
		OwnerUserID:       req.OwnerUserID,
		MemoryID:          req.MemoryID,
		Description:       req.Description,
		State:             models.TaskStateNotDone,
		RecurrenceMinutes: req.RecurrenceMinutes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.DueAt != nil {
		due, err := models.ParseUTC(*req.DueAt)
		if err != nil {
			return nil, NewValidationError("due_at", "invalid timestamp")
		}
		t.DueAt = &due
	}

	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.NamedExec(
		`INSERT INTO tasks (id, owner_user_id, memory_id, description, state, due_at,
		     recurrence_minutes, created_at, updated_at)
		 VALUES (:id, :owner_user_id, :memory_id, :description, :state, :due_at,
		     :recurrence_minutes, :created_at, :updated_at)`, t); err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}
	if err := auditTx(tx, "task", t.ID, models.AuditActionCreated, ActorAPI, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return &t, nil
}

// Get returns a task by id.
func (s *TaskService) Get(ctx context.Context, id string) (*models.Task, error) {
	var t models.Task
	err := s.client.DB().GetContext(ctx, &t,
		`SELECT id, owner_user_id, memory_id, description, state, due_at,
		     recurrence_minutes, created_at, updated_at
		 FROM tasks WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &t, nil
}

// List returns a user's tasks, optionally filtered by state, soonest due first
// with undated tasks last.
func (s *TaskService) List(ctx context.Context, ownerUserID int64, state *models.TaskState, limit int) ([]models.Task, error) {
	if ownerUserID == 0 {
		return nil, NewValidationError("owner_user_id", "required")
	}
	query := `SELECT id, owner_user_id, memory_id, description, state, due_at,
	     recurrence_minutes, created_at, updated_at
	 FROM tasks WHERE owner_user_id = ?`
	args := []any{ownerUserID}
	if state != nil {
		query += ` AND state = ?`
		args = append(args, *state)
	}
	query += ` ORDER BY due_at IS NULL, due_at ASC, created_at ASC`
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	var tasks []models.Task
	if err := s.client.DB().SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Update applies a partial mutation. Completing a recurring task resets it to
// NOT_DONE with the due date advanced by the recurrence instead of marking it
// DONE.
func (s *TaskService) Update(ctx context.Context, id string, req models.UpdateTaskRequest) (*models.Task, error) {
	if req.State != nil &&
		*req.State != models.TaskStateNotDone && *req.State != models.TaskStateDone {
		return nil, NewValidationError("state", "must be NOT_DONE or DONE")
	}

	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var t models.Task
	err = tx.Get(&t,
		`SELECT id, owner_user_id, memory_id, description, state, due_at,
		     recurrence_minutes, created_at, updated_at
		 FROM tasks WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}

	changed := map[string]any{}
	if req.Description != nil {
		t.Description = *req.Description
		changed["description"] = *req.Description
	}
	if req.DueAt != nil {
		due, err := models.ParseUTC(*req.DueAt)
		if err != nil {
			return nil, NewValidationError("due_at", "invalid timestamp")
		}
		t.DueAt = &due
		changed["due_at"] = models.FormatUTC(due)
	}
	if req.RecurrenceMinutes != nil {
		t.RecurrenceMinutes = req.RecurrenceMinutes
		changed["recurrence_minutes"] = *req.RecurrenceMinutes
	}
	if req.State != nil && *req.State != t.State {
		if *req.State == models.TaskStateDone && t.RecurrenceMinutes != nil && t.DueAt != nil {
			next := t.DueAt.Add(time.Duration(*t.RecurrenceMinutes) * time.Minute)
			t.DueAt = &next
			changed["due_at"] = models.FormatUTC(next)
			changed["recurrence_advanced"] = true
		} else {
			t.State = *req.State
			changed["state"] = string(*req.State)
		}
	}
	if len(changed) == 0 {
		return &t, nil
	}
	t.UpdatedAt = time.Now().UTC()

	if _, err := tx.NamedExec(
		`UPDATE tasks SET description = :description, state = :state, due_at = :due_at,
		     recurrence_minutes = :recurrence_minutes, updated_at = :updated_at
		 WHERE id = :id`, t); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	if err := auditTx(tx, "task", t.ID, models.AuditActionUpdated, ActorAPI, changed); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return &t, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := auditTx(tx, "task", id, models.AuditActionDeleted, ActorAPI, nil); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
