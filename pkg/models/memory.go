package models

import "time"

// MemoryStatus is the lifecycle state of a memory.
type MemoryStatus string

// Memory status values.
const (
	MemoryStatusPending   MemoryStatus = "pending"
	MemoryStatusConfirmed MemoryStatus = "confirmed"
)

// TagStatus is the lifecycle state of a memory tag.
type TagStatus string

// Tag status values.
const (
	TagStatusSuggested TagStatus = "suggested"
	TagStatusConfirmed TagStatus = "confirmed"
)

// Memory is a user-owned note, optionally carrying a media attachment.
// Media memories start pending until classified and auto-expire if never
// confirmed.
type Memory struct {
	ID               string       `db:"id" json:"id"`
	OwnerUserID      int64        `db:"owner_user_id" json:"owner_user_id"`
	Content          *string      `db:"content" json:"content,omitempty"`
	MediaType        *string      `db:"media_type" json:"media_type,omitempty"`
	MediaFileID      *string      `db:"media_file_id" json:"media_file_id,omitempty"`
	MediaPath        *string      `db:"media_path" json:"media_path,omitempty"`
	Status           MemoryStatus `db:"status" json:"status"`
	PendingExpiresAt *time.Time   `db:"pending_expires_at" json:"pending_expires_at,omitempty"`
	IsPinned         bool         `db:"is_pinned" json:"is_pinned"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`
}

// MemoryTag is a (memory, tag) association. Suggested tags come from the
// vision pipeline and expire unless confirmed; only confirmed tags are
// searchable.
type MemoryTag struct {
	MemoryID    string     `db:"memory_id" json:"memory_id"`
	Tag         string     `db:"tag" json:"tag"`
	Status      TagStatus  `db:"status" json:"status"`
	SuggestedAt *time.Time `db:"suggested_at" json:"suggested_at,omitempty"`
	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
}

// CreateMemoryRequest is the payload for POST /memories.
type CreateMemoryRequest struct {
	OwnerUserID int64   `json:"owner_user_id"`
	Content     *string `json:"content,omitempty"`
	MediaType   *string `json:"media_type,omitempty"`
	MediaFileID *string `json:"media_file_id,omitempty"`
	MediaPath   *string `json:"media_path,omitempty"`
	IsPinned    bool    `json:"is_pinned"`
}

// UpdateMemoryRequest is the payload for PATCH /memories/{id}. Nil fields are
// left untouched.
type UpdateMemoryRequest struct {
	Content   *string       `json:"content,omitempty"`
	Status    *MemoryStatus `json:"status,omitempty"`
	IsPinned  *bool         `json:"is_pinned,omitempty"`
	MediaPath *string       `json:"media_path,omitempty"`
}

// AddTagsRequest is the payload for POST /memories/{id}/tags.
type AddTagsRequest struct {
	Tags   []string  `json:"tags"`
	Status TagStatus `json:"status"`
}

// SearchResult is one hit from the full-text index.
type SearchResult struct {
	Memory Memory   `json:"memory"`
	Tags   []string `json:"tags"`
	Score  float64  `json:"score"`
}
