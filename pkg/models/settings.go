package models

import "time"

// UserSettings holds per-user locale preferences. Rows are upserted and never
// deleted.
type UserSettings struct {
	UserID    int64     `db:"user_id" json:"user_id"`
	Timezone  string    `db:"timezone" json:"timezone"`
	Language  string    `db:"language" json:"language"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// UpsertSettingsRequest is the payload for PUT /settings/{user_id}.
type UpsertSettingsRequest struct {
	Timezone string `json:"timezone"`
	Language string `json:"language"`
}

// BackupJob is a read-only status record for a user's backup run.
type BackupJob struct {
	ID        string    `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
