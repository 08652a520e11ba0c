package models

import "time"

// EventStatus is the confirmation state of an extracted event.
type EventStatus string

// Event status values.
const (
	EventStatusPending   EventStatus = "pending"
	EventStatusConfirmed EventStatus = "confirmed"
	EventStatusRejected  EventStatus = "rejected"
)

// Event is a calendar-like entry extracted from a source (email, chat).
// Pending events that the user never answers are re-prompted after 24h.
type Event struct {
	ID           string      `db:"id" json:"id"`
	OwnerUserID  int64       `db:"owner_user_id" json:"owner_user_id"`
	Description  string      `db:"description" json:"description"`
	EventTime    time.Time   `db:"event_time" json:"event_time"`
	Status       EventStatus `db:"status" json:"status"`
	PendingSince time.Time   `db:"pending_since" json:"pending_since"`
	SourceType   string      `db:"source_type" json:"source_type"`
	SourceRef    *string     `db:"source_ref" json:"source_ref,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// CreateEventRequest is the payload for POST /events.
type CreateEventRequest struct {
	OwnerUserID int64   `json:"owner_user_id"`
	Description string  `json:"description"`
	EventTime   string  `json:"event_time"`
	SourceType  string  `json:"source_type"`
	SourceRef   *string `json:"source_ref,omitempty"`
}

// UpdateEventRequest is the payload for PATCH /events/{id}.
type UpdateEventRequest struct {
	Description *string      `json:"description,omitempty"`
	EventTime   *string      `json:"event_time,omitempty"`
	Status      *EventStatus `json:"status,omitempty"`
}
