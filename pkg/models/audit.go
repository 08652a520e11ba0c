package models

import (
	"encoding/json"
	"time"
)

// Audit actions recorded for entity state changes.
const (
	AuditActionCreated  = "created"
	AuditActionUpdated  = "updated"
	AuditActionDeleted  = "deleted"
	AuditActionFired    = "fired"
	AuditActionExpired  = "expired"
	AuditActionRequeued = "requeued"
)

// AuditRecord is one append-only row describing a state change. The audit log
// is the source of truth for "what happened"; it is never mutated.
type AuditRecord struct {
	ID         int64           `db:"id" json:"id"`
	EntityType string          `db:"entity_type" json:"entity_type"`
	EntityID   string          `db:"entity_id" json:"entity_id"`
	Action     string          `db:"action" json:"action"`
	Actor      string          `db:"actor" json:"actor"`
	Detail     json.RawMessage `db:"detail" json:"detail,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// AuditQueryParams filters GET /audit. Results are ordered by
// (created_at desc, id desc) so pagination is deterministic.
type AuditQueryParams struct {
	EntityType string
	EntityID   string
	Action     string
	Actor      string
	Limit      int
	Offset     int
}
