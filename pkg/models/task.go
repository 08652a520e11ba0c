package models

import "time"

// TaskState is the completion state of a task.
type TaskState string

// Task state values.
const (
	TaskStateNotDone TaskState = "NOT_DONE"
	TaskStateDone    TaskState = "DONE"
)

// Task is a user to-do, optionally linked to the memory it came from.
type Task struct {
	ID                string     `db:"id" json:"id"`
	OwnerUserID       int64      `db:"owner_user_id" json:"owner_user_id"`
	MemoryID          *string    `db:"memory_id" json:"memory_id,omitempty"`
	Description       string     `db:"description" json:"description"`
	State             TaskState  `db:"state" json:"state"`
	DueAt             *time.Time `db:"due_at" json:"due_at,omitempty"`
	RecurrenceMinutes *int64     `db:"recurrence_minutes" json:"recurrence_minutes,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// CreateTaskRequest is the payload for POST /tasks.
type CreateTaskRequest struct {
	OwnerUserID       int64   `json:"owner_user_id"`
	MemoryID          *string `json:"memory_id,omitempty"`
	Description       string  `json:"description"`
	DueAt             *string `json:"due_at,omitempty"`
	RecurrenceMinutes *int64  `json:"recurrence_minutes,omitempty"`
}

// UpdateTaskRequest is the payload for PATCH /tasks/{id}.
type UpdateTaskRequest struct {
	Description       *string    `json:"description,omitempty"`
	State             *TaskState `json:"state,omitempty"`
	DueAt             *string    `json:"due_at,omitempty"`
	RecurrenceMinutes *int64     `json:"recurrence_minutes,omitempty"`
}
