package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jhyoong/bearmemori/pkg/database"
	"github.com/jhyoong/bearmemori/pkg/models"
)

// ReminderService manages reminders and fires the due ones. Delivery is
// at-least-once: the notification is published before the fired flag commits,
// so a crash between the two replays the reminder on the next tick.
type ReminderService struct {
	client   *database.Client
	notifier NotificationPublisher
}

// NewReminderService creates a new ReminderService. notifier may be nil in
// tests that only exercise CRUD.
func NewReminderService(client *database.Client, notifier NotificationPublisher) *ReminderService {
	return &ReminderService{client: client, notifier: notifier}
}

// Create inserts a reminder.
func (s *ReminderService) Create(ctx context.Context, req models.CreateReminderRequest) (*models.Reminder, error) {
	if req.OwnerUserID == 0 {
		return nil, NewValidationError("owner_user_id", "required")
	}
	if req.Text == "" {
		return nil, NewValidationError("text", "required")
	}
	fireAt, err := models.ParseUTC(req.FireAt)
	if err != nil {
		return nil, NewValidationError("fire_at", "invalid timestamp")
	}
	if req.RecurrenceMinutes != nil && *req.RecurrenceMinutes <= 0 {
		return nil, NewValidationError("recurrence_minutes", "must be positive")
	}

	r := models.Reminder{
		ID:                uuid.New().String(),
		OwnerUserID:       req.OwnerUserID,
		MemoryID:          req.MemoryID,
		Text:              req.Text,
		FireAt:            fireAt,
		RecurrenceMinutes: req.RecurrenceMinutes,
		CreatedAt:         time.Now().UTC(),
	}

	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertReminder(tx, r); err != nil {
		return nil, err
	}
	if err := auditTx(tx, "reminder", r.ID, models.AuditActionCreated, ActorAPI, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return &r, nil
}

func insertReminder(tx *sqlx.Tx, r models.Reminder) error {
	if _, err := tx.NamedExec(
		`INSERT INTO reminders (id, owner_user_id, memory_id, text, fire_at, fired,
		     recurrence_minutes, created_at)
		 VALUES (:id, :owner_user_id, :memory_id, :text, :fire_at, :fired,
		     :recurrence_minutes, :created_at)`, r); err != nil {
		return fmt.Errorf("failed to insert reminder: %w", err)
	}
	return nil
}

// Get returns a reminder by id.
func (s *ReminderService) Get(ctx context.Context, id string) (*models.Reminder, error) {
	var r models.Reminder
	err := s.client.DB().GetContext(ctx, &r,
		`SELECT id, owner_user_id, memory_id, text, fire_at, fired,
		     recurrence_minutes, created_at
		 FROM reminders WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return &r, nil
}

// List returns a user's reminders ordered by fire time.
func (s *ReminderService) List(ctx context.Context, params models.ListRemindersParams) ([]models.Reminder, error) {
	if params.OwnerUserID == 0 {
		return nil, NewValidationError("owner_user_id", "required")
	}
	query := `SELECT id, owner_user_id, memory_id, text, fire_at, fired,
	     recurrence_minutes, created_at
	 FROM reminders WHERE owner_user_id = ?`
	args := []any{params.OwnerUserID}
	if params.Fired != nil {
		query += ` AND fired = ?`
		args = append(args, *params.Fired)
	}
	if params.UpcomingOnly {
		query += ` AND fired = 0 AND fire_at > ?`
		args = append(args, time.Now().UTC())
	}
	query += ` ORDER BY fire_at ASC`
	limit := params.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	var reminders []models.Reminder
	if err := s.client.DB().SelectContext(ctx, &reminders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}

// Update applies a partial mutation.
func (s *ReminderService) Update(ctx context.Context, id string, req models.UpdateReminderRequest) (*models.Reminder, error) {
	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var r models.Reminder
	err = tx.Get(&r,
		`SELECT id, owner_user_id, memory_id, text, fire_at, fired,
		     recurrence_minutes, created_at
		 FROM reminders WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reminder: %w", err)
	}

	changed := map[string]any{}
	if req.Text != nil {
		r.Text = *req.Text
		changed["text"] = *req.Text
	}
	if req.FireAt != nil {
		fireAt, err := models.ParseUTC(*req.FireAt)
		if err != nil {
			return nil, NewValidationError("fire_at", "invalid timestamp")
		}
		r.FireAt = fireAt
		changed["fire_at"] = models.FormatUTC(fireAt)
	}
	if req.Fired != nil && *req.Fired != r.Fired {
		r.Fired = *req.Fired
		changed["fired"] = *req.Fired
	}
	if req.RecurrenceMinutes != nil {
		if *req.RecurrenceMinutes <= 0 {
			return nil, NewValidationError("recurrence_minutes", "must be positive")
		}
		r.RecurrenceMinutes = req.RecurrenceMinutes
		changed["recurrence_minutes"] = *req.RecurrenceMinutes
	}
	if len(changed) == 0 {
		return &r, nil
	}

	if _, err := tx.NamedExec(
		`UPDATE reminders SET text = :text, fire_at = :fire_at, fired = :fired,
		     recurrence_minutes = :recurrence_minutes
		 WHERE id = :id`, r); err != nil {
		return nil, fmt.Errorf("failed to update reminder: %w", err)
	}
	if err := auditTx(tx, "reminder", r.ID, models.AuditActionUpdated, ActorAPI, changed); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return &r, nil
}

// Delete removes a reminder.
func (s *ReminderService) Delete(ctx context.Context, id string) error {
	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := auditTx(tx, "reminder", id, models.AuditActionDeleted, ActorAPI, nil); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// FireDue fires every unfired reminder due at or before now: publishes its
// notification, marks it fired, and for recurring reminders inserts the
// successor row offset by the recurrence. All rows commit in one transaction
// after publishing. Returns the number fired.
func (s *ReminderService) FireDue(ctx context.Context, now time.Time) (int, error) {
	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var due []models.Reminder
	if err := tx.Select(&due,
		`SELECT id, owner_user_id, memory_id, text, fire_at, fired,
		     recurrence_minutes, created_at
		 FROM reminders WHERE fired = 0 AND fire_at <= ? ORDER BY fire_at ASC`,
		now.UTC()); err != nil {
		return 0, fmt.Errorf("failed to select due reminders: %w", err)
	}

	fired := 0
	for _, r := range due {
		if s.notifier != nil {
			data := map[string]any{
				"reminder_id": r.ID,
				"text":        r.Text,
				"fire_at":     models.FormatUTC(r.FireAt),
			}
			if r.MemoryID != nil {
				data["memory_id"] = *r.MemoryID
				var content *string
				if err := tx.Get(&content,
					`SELECT content FROM memories WHERE id = ?`, *r.MemoryID); err == nil && content != nil {
					data["memory_content"] = *content
				}
			}
			n := models.Notification{
				Type:   models.NotifyTypeReminder,
				UserID: r.OwnerUserID,
				Data:   data,
			}
			if err := s.notifier.PublishNotification(ctx, n); err != nil {
				// Leave the reminder unfired so the next tick retries it.
				slog.Warn("Failed to publish reminder notification", "reminder_id", r.ID, "error", err)
				continue
			}
		}

		if _, err := tx.Exec(`UPDATE reminders SET fired = 1 WHERE id = ?`, r.ID); err != nil {
			return 0, fmt.Errorf("failed to mark reminder fired: %w", err)
		}
		if err := auditTx(tx, "reminder", r.ID, models.AuditActionFired, ActorScheduler, nil); err != nil {
			return 0, err
		}
		fired++

		if r.RecurrenceMinutes != nil && *r.RecurrenceMinutes > 0 {
			next := models.Reminder{
				ID:                uuid.New().String(),
				OwnerUserID:       r.OwnerUserID,
				MemoryID:          r.MemoryID,
				Text:              r.Text,
				FireAt:            r.FireAt.Add(time.Duration(*r.RecurrenceMinutes) * time.Minute),
				RecurrenceMinutes: r.RecurrenceMinutes,
				CreatedAt:         time.Now().UTC(),
			}
			if err := insertReminder(tx, next); err != nil {
				return 0, err
			}
			if err := auditTx(tx, "reminder", next.ID, models.AuditActionCreated, ActorScheduler,
				map[string]any{"source": "recurrence", "predecessor": r.ID}); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return fired, nil
}
