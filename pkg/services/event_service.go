package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jhyoong/bearmemori/pkg/database"
	"github.com/jhyoong/bearmemori/pkg/models"
)

// EventService manages extracted calendar events. Events arrive pending and
// wait for the user to confirm or reject; pending ones left unanswered are
// re-prompted by the scheduler.
type EventService struct {
	client   *database.Client
	notifier NotificationPublisher
}

// NewEventService creates a new EventService.
func NewEventService(client *database.Client, notifier NotificationPublisher) *EventService {
	return &EventService{client: client, notifier: notifier}
}

// Create inserts a pending event.
func (s *EventService) Create(ctx context.Context, req models.CreateEventRequest) (*models.Event, error) {
	if req.OwnerUserID == 0 {
		return nil, NewValidationError("owner_user_id", "required")
	}
	if req.Description == "" {
		return nil, NewValidationError("description", "required")
	}
	eventTime, err := models.ParseUTC(req.EventTime)
	if err != nil {
		return nil, NewValidationError("event_time", "invalid timestamp")
	}
	if req.SourceType == "" {
		return nil, NewValidationError("source_type", "required")
	}

	now := time.Now().UTC()
	e := models.Event{
		ID:           uuid.New().String(),
		OwnerUserID:  req.OwnerUserID,
		Description:  req.Description,
		EventTime:    eventTime,
		Status:       models.EventStatusPending,
		PendingSince: now,
		SourceType:   req.SourceType,
		SourceRef:    req.SourceRef,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.NamedExec(
		`INSERT INTO events (id, owner_user_id, description, event_time, status,
		     pending_since, source_type, source_ref, created_at, updated_at)
		 VALUES (:id, :owner_user_id, :description, :event_time, :status,
		     :pending_since, :source_type, :source_ref, :created_at, :updated_at)`, e); err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	if err := auditTx(tx, "event", e.ID, models.AuditActionCreated, ActorAPI, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return &e, nil
}

// Get returns an event by id.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	var e models.Event
	err := s.client.DB().GetContext(ctx, &e,
		`SELECT id, owner_user_id, description, event_time, status,
		     pending_since, source_type, source_ref, created_at, updated_at
		 FROM events WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &e, nil
}

// List returns a user's events, optionally filtered by status, soonest first.
func (s *EventService) List(ctx context.Context, ownerUserID int64, status *models.EventStatus, limit int) ([]models.Event, error) {
	if ownerUserID == 0 {
		return nil, NewValidationError("owner_user_id", "required")
	}
	query := `SELECT id, owner_user_id, description, event_time, status,
	     pending_since, source_type, source_ref, created_at, updated_at
	 FROM events WHERE owner_user_id = ?`
	args := []any{ownerUserID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY event_time ASC`
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	var events []models.Event
	if err := s.client.DB().SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// Update applies a partial mutation. Confirming an event publishes an
// event_confirmation notification after the transaction commits.
func (s *EventService) Update(ctx context.Context, id string, req models.UpdateEventRequest) (*models.Event, error) {
	if req.Status != nil {
		switch *req.Status {
		case models.EventStatusPending, models.EventStatusConfirmed, models.EventStatusRejected:
		default:
			return nil, NewValidationError("status", "must be pending, confirmed, or rejected")
		}
	}

	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var e models.Event
	err = tx.Get(&e,
		`SELECT id, owner_user_id, description, event_time, status,
		     pending_since, source_type, source_ref, created_at, updated_at
		 FROM events WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}

	changed := map[string]any{}
	confirmed := false
	if req.Description != nil {
		e.Description = *req.Description
		changed["description"] = *req.Description
	}
	if req.EventTime != nil {
		eventTime, err := models.ParseUTC(*req.EventTime)
		if err != nil {
			return nil, NewValidationError("event_time", "invalid timestamp")
		}
		e.EventTime = eventTime
		changed["event_time"] = models.FormatUTC(eventTime)
	}
	if req.Status != nil && *req.Status != e.Status {
		confirmed = *req.Status == models.EventStatusConfirmed
		e.Status = *req.Status
		changed["status"] = string(*req.Status)
		if *req.Status == models.EventStatusPending {
			e.PendingSince = time.Now().UTC()
		}
	}
	if len(changed) == 0 {
		return &e, nil
	}
	e.UpdatedAt = time.Now().UTC()

	if _, err := tx.NamedExec(
		`UPDATE events SET description = :description, event_time = :event_time,
		     status = :status, pending_since = :pending_since, updated_at = :updated_at
		 WHERE id = :id`, e); err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	if err := auditTx(tx, "event", e.ID, models.AuditActionUpdated, ActorAPI, changed); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	if confirmed && s.notifier != nil {
		n := models.Notification{
			Type:   models.NotifyTypeEventConfirmation,
			UserID: e.OwnerUserID,
			Data: map[string]any{
				"event_id":    e.ID,
				"description": e.Description,
				"event_time":  models.FormatUTC(e.EventTime),
			},
		}
		if err := s.notifier.PublishNotification(ctx, n); err != nil {
			slog.Warn("Failed to publish event confirmation", "event_id", e.ID, "error", err)
		}
	}
	return &e, nil
}

// Delete removes an event.
func (s *EventService) Delete(ctx context.Context, id string) error {
	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := auditTx(tx, "event", id, models.AuditActionDeleted, ActorAPI, nil); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// RepromptStale publishes an event_reprompt for every event still pending
// since before the cutoff, then resets pending_since so the same event is not
// re-prompted every tick. Returns the number re-prompted.
func (s *EventService) RepromptStale(ctx context.Context, cutoff time.Time) (int, error) {
	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stale []models.Event
	if err := tx.Select(&stale,
		`SELECT id, owner_user_id, description, event_time, status,
		     pending_since, source_type, source_ref, created_at, updated_at
		 FROM events WHERE status = 'pending' AND pending_since <= ?`,
		cutoff.UTC()); err != nil {
		return 0, fmt.Errorf("failed to select stale events: %w", err)
	}

	reprompted := 0
	for _, e := range stale {
		if s.notifier != nil {
			n := models.Notification{
				Type:   models.NotifyTypeEventReprompt,
				UserID: e.OwnerUserID,
				Data: map[string]any{
					"event_id":    e.ID,
					"description": e.Description,
					"event_time":  models.FormatUTC(e.EventTime),
				},
			}
			if err := s.notifier.PublishNotification(ctx, n); err != nil {
				slog.Warn("Failed to publish event reprompt", "event_id", e.ID, "error", err)
				continue
			}
		}
		if _, err := tx.Exec(
			`UPDATE events SET pending_since = ?, updated_at = ? WHERE id = ?`,
			time.Now().UTC(), time.Now().UTC(), e.ID); err != nil {
			return 0, fmt.Errorf("failed to reset pending_since: %w", err)
		}
		if err := auditTx(tx, "event", e.ID, models.AuditActionRequeued, ActorScheduler, nil); err != nil {
			return 0, err
		}
		reprompted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return reprompted, nil
}
