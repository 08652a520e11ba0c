package models

import "time"

// Reminder is a time-triggered notification bound to a memory. Firing a
// recurring reminder inserts a successor row offset by the recurrence.
type Reminder struct {
	ID                string    `db:"id" json:"id"`
	OwnerUserID       int64     `db:"owner_user_id" json:"owner_user_id"`
	MemoryID          *string   `db:"memory_id" json:"memory_id,omitempty"`
	Text              string    `db:"text" json:"text"`
	FireAt            time.Time `db:"fire_at" json:"fire_at"`
	Fired             bool      `db:"fired" json:"fired"`
	RecurrenceMinutes *int64    `db:"recurrence_minutes" json:"recurrence_minutes,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// CreateReminderRequest is the payload for POST /reminders.
type CreateReminderRequest struct {
	OwnerUserID       int64   `json:"owner_user_id"`
	MemoryID          *string `json:"memory_id,omitempty"`
	Text              string  `json:"text"`
	FireAt            string  `json:"fire_at"`
	RecurrenceMinutes *int64  `json:"recurrence_minutes,omitempty"`
}

// UpdateReminderRequest is the payload for PATCH /reminders/{id}.
type UpdateReminderRequest struct {
	Text              *string `json:"text,omitempty"`
	FireAt            *string `json:"fire_at,omitempty"`
	Fired             *bool   `json:"fired,omitempty"`
	RecurrenceMinutes *int64  `json:"recurrence_minutes,omitempty"`
}

// ListRemindersParams filters GET /reminders.
type ListRemindersParams struct {
	OwnerUserID  int64
	Fired        *bool
	UpcomingOnly bool
	Limit        int
}
