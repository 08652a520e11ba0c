package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhyoong/bearmemori/pkg/database"
	"github.com/jhyoong/bearmemori/pkg/models"
)

// stopWords are dropped from queries before building the match expression.
// When a query consists only of stop words we search with the original tokens
// instead of returning nothing.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "in": {}, "is": {},
	"it": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {},
	"to": {}, "was": {}, "with": {},
}

// SearchService queries the FTS index over confirmed memories.
type SearchService struct {
	client *database.Client
}

// NewSearchService creates a new SearchService.
func NewSearchService(client *database.Client) *SearchService {
	return &SearchService{client: client}
}

// Search runs a full-text query scoped to one owner. Pinned matches sort
// before equally-relevant unpinned ones. An empty query is a validation error
// unless pinnedOnly is set, which lists all confirmed pinned memories newest
// first with a neutral score.
func (s *SearchService) Search(ctx context.Context, ownerUserID int64, query string, pinnedOnly bool, limit, offset int) ([]models.SearchResult, error) {
	if ownerUserID == 0 {
		return nil, NewValidationError("owner", "required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	if strings.TrimSpace(query) == "" {
		if !pinnedOnly {
			return nil, NewValidationError("q", "query is empty")
		}
		return s.listPinned(ctx, ownerUserID, limit, offset)
	}

	match := buildMatchExpr(query)
	sqlQuery := `
		SELECT m.id, m.owner_user_id, m.content, m.media_type, m.media_file_id, m.media_path,
		       m.status, m.pending_expires_at, m.is_pinned, m.created_at, m.updated_at,
		       f.rank
		FROM memory_fts f
		JOIN fts_meta meta ON meta.docid = f.rowid
		JOIN memories m ON m.id = meta.memory_id
		WHERE memory_fts MATCH ? AND m.owner_user_id = ? AND m.status = 'confirmed'`
	args := []any{match, ownerUserID}
	if pinnedOnly {
		sqlQuery += ` AND m.is_pinned = 1`
	}
	sqlQuery += ` ORDER BY m.is_pinned DESC, f.rank ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.client.DB().QueryxContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run search: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var (
			m    models.Memory
			rank float64
		)
		if err := rows.Scan(&m.ID, &m.OwnerUserID, &m.Content, &m.MediaType, &m.MediaFileID,
			&m.MediaPath, &m.Status, &m.PendingExpiresAt, &m.IsPinned,
			&m.CreatedAt, &m.UpdatedAt, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, models.SearchResult{Memory: m, Score: rank})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return s.attachTags(ctx, results)
}

func (s *SearchService) listPinned(ctx context.Context, ownerUserID int64, limit, offset int) ([]models.SearchResult, error) {
	var memories []models.Memory
	if err := s.client.DB().SelectContext(ctx, &memories,
		`SELECT id, owner_user_id, content, media_type, media_file_id, media_path,
		     status, pending_expires_at, is_pinned, created_at, updated_at
		 FROM memories
		 WHERE owner_user_id = ? AND status = 'confirmed' AND is_pinned = 1
		 ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		ownerUserID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list pinned memories: %w", err)
	}
	results := make([]models.SearchResult, 0, len(memories))
	for _, m := range memories {
		results = append(results, models.SearchResult{Memory: m, Score: 0})
	}
	return s.attachTags(ctx, results)
}

func (s *SearchService) attachTags(ctx context.Context, results []models.SearchResult) ([]models.SearchResult, error) {
	for i := range results {
		var tags []string
		if err := s.client.DB().SelectContext(ctx, &tags,
			`SELECT tag FROM memory_tags WHERE memory_id = ? AND status = 'confirmed' ORDER BY tag`,
			results[i].Memory.ID); err != nil {
			return nil, fmt.Errorf("failed to load result tags: %w", err)
		}
		results[i].Tags = tags
	}
	return results, nil
}

// buildMatchExpr tokenizes on whitespace, drops stop words (falling back to
// the originals when nothing survives), and joins the quoted tokens with OR.
func buildMatchExpr(query string) string {
	tokens := strings.Fields(query)
	kept := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, stop := stopWords[strings.ToLower(t)]; !stop {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		kept = tokens
	}
	quoted := make([]string, len(kept))
	for i, t := range kept {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}
