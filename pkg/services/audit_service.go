package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jhyoong/bearmemori/pkg/database"
	"github.com/jhyoong/bearmemori/pkg/models"
)

// Actors recorded on audit rows.
const (
	ActorAPI       = "api"
	ActorScheduler = "scheduler"
)

// AuditService records and queries the append-only audit log.
type AuditService struct {
	client *database.Client
}

// NewAuditService creates a new AuditService.
func NewAuditService(client *database.Client) *AuditService {
	return &AuditService{client: client}
}

// auditTx appends one audit row inside an open transaction. detail may be nil.
func auditTx(tx *sqlx.Tx, entityType, entityID, action, actor string, detail map[string]any) error {
	var detailJSON *string
	if detail != nil {
		raw, err := json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("failed to marshal audit detail: %w", err)
		}
		s := string(raw)
		detailJSON = &s
	}
	if _, err := tx.Exec(
		`INSERT INTO audit_log (entity_type, entity_id, action, actor, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entityType, entityID, action, actor, detailJSON, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// Query returns audit records matching the filters, ordered by
// (created_at desc, id desc).
func (s *AuditService) Query(ctx context.Context, params models.AuditQueryParams) ([]models.AuditRecord, error) {
	query := `SELECT id, entity_type, entity_id, action, actor, detail, created_at FROM audit_log WHERE 1=1`
	var args []any
	if params.EntityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, params.EntityType)
	}
	if params.EntityID != "" {
		query += ` AND entity_id = ?`
		args = append(args, params.EntityID)
	}
	if params.Action != "" {
		query += ` AND action = ?`
		args = append(args, params.Action)
	}
	if params.Actor != "" {
		query += ` AND actor = ?`
		args = append(args, params.Actor)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	limit := params.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, params.Offset)

	var records []models.AuditRecord
	rows, err := s.client.DB().QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec    models.AuditRecord
			detail *string
		)
		if err := rows.Scan(&rec.ID, &rec.EntityType, &rec.EntityID, &rec.Action,
			&rec.Actor, &detail, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if detail != nil {
			rec.Detail = json.RawMessage(*detail)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
