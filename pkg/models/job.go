package models

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of an LLM job.
type JobStatus string

// Job status values. Completed and failed are terminal: a redelivered stream
// message for a terminal job must not re-invoke the model.
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job type names. Each has its own input stream and worker handler.
const (
	JobTypeImageTag       = "image_tag"
	JobTypeIntentClassify = "intent_classify"
	JobTypeFollowup       = "followup"
	JobTypeTaskMatch      = "task_match"
	JobTypeEmailExtract   = "email_extract"
)

// JobTypes lists every known job type in stream polling order.
var JobTypes = []string{
	JobTypeImageTag,
	JobTypeIntentClassify,
	JobTypeFollowup,
	JobTypeTaskMatch,
	JobTypeEmailExtract,
}

// LLMJob is a durable record of one asynchronous model invocation.
type LLMJob struct {
	ID          string          `db:"id" json:"id"`
	JobType     string          `db:"job_type" json:"job_type"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	OwnerUserID *int64          `db:"owner_user_id" json:"owner_user_id,omitempty"`
	Status      JobStatus       `db:"status" json:"status"`
	Result      *string         `db:"result" json:"result,omitempty"`
	Error       *string         `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// CreateJobRequest is the payload for POST /llm_jobs. Creating a job also
// publishes a message on the job type's input stream.
type CreateJobRequest struct {
	JobType     string          `json:"job_type"`
	Payload     json.RawMessage `json:"payload"`
	OwnerUserID *int64          `json:"owner_user_id,omitempty"`
}

// UpdateJobRequest is the payload for PATCH /llm_jobs/{id}.
type UpdateJobRequest struct {
	Status *JobStatus `json:"status,omitempty"`
	Result *string    `json:"result,omitempty"`
	Error  *string    `json:"error,omitempty"`
}

// JobMessage is the wire contract published on job input streams.
type JobMessage struct {
	JobID   string          `json:"job_id"`
	JobType string          `json:"job_type"`
	Payload json.RawMessage `json:"payload"`
	UserID  int64           `json:"user_id"`
}
