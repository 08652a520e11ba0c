package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// The FTS index is external-content: delete operations must replay the exact
// (content, tags) strings last inserted for a row, or the index silently
// corrupts. fts_meta shadows those strings and is written in the same
// transaction as every index mutation. Index deletes never use any value
// other than the cached one.

type ftsCacheRow struct {
	DocID   int64  `db:"docid"`
	Content string `db:"content"`
	Tags    string `db:"tags"`
}

// ReindexMemory brings the FTS row for a memory in line with the primary
// tables. Confirmed memories get a fresh (content, tags) row; anything else is
// removed from the index. Must run inside the transaction that mutated the
// memory or its tags.
func ReindexMemory(tx *sqlx.Tx, memoryID string) error {
	var row struct {
		DocID   int64          `db:"docid"`
		Status  string         `db:"status"`
		Content sql.NullString `db:"content"`
	}
	err := tx.Get(&row,
		`SELECT rowid AS docid, status, content FROM memories WHERE id = ?`, memoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return RemoveFromIndex(tx, memoryID)
	}
	if err != nil {
		return fmt.Errorf("failed to load memory for indexing: %w", err)
	}

	if row.Status != "confirmed" {
		return RemoveFromIndex(tx, memoryID)
	}

	var tags []string
	if err := tx.Select(&tags,
		`SELECT tag FROM memory_tags WHERE memory_id = ? AND status = 'confirmed' ORDER BY tag`,
		memoryID); err != nil {
		return fmt.Errorf("failed to load confirmed tags: %w", err)
	}

	freshContent := row.Content.String
	freshTags := strings.Join(tags, " ")

	if err := deleteCached(tx, memoryID); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`INSERT INTO memory_fts (rowid, content, tags) VALUES (?, ?, ?)`,
		row.DocID, freshContent, freshTags); err != nil {
		return fmt.Errorf("failed to insert fts row: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO fts_meta (memory_id, docid, content, tags) VALUES (?, ?, ?, ?)
		 ON CONFLICT (memory_id) DO UPDATE SET docid = excluded.docid,
		     content = excluded.content, tags = excluded.tags`,
		memoryID, row.DocID, freshContent, freshTags); err != nil {
		return fmt.Errorf("failed to update fts cache: %w", err)
	}

	return nil
}

// RemoveFromIndex drops a memory's FTS row using the cached strings and clears
// the cache. No-op when the memory was never indexed.
func RemoveFromIndex(tx *sqlx.Tx, memoryID string) error {
	if err := deleteCached(tx, memoryID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM fts_meta WHERE memory_id = ?`, memoryID); err != nil {
		return fmt.Errorf("failed to clear fts cache: %w", err)
	}
	return nil
}

// deleteCached emits an external-content delete for the cached strings, if a
// cache row exists. Deletes with non-cached strings are unsupported and
// suppressed by construction: this is the only delete path.
func deleteCached(tx *sqlx.Tx, memoryID string) error {
	var cached ftsCacheRow
	err := tx.Get(&cached,
		`SELECT docid, content, tags FROM fts_meta WHERE memory_id = ?`, memoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read fts cache: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO memory_fts (memory_fts, rowid, content, tags) VALUES ('delete', ?, ?, ?)`,
		cached.DocID, cached.Content, cached.Tags); err != nil {
		return fmt.Errorf("failed to delete fts row: %w", err)
	}
	return nil
}

// RebuildIndex truncates the index and its cache and re-indexes every
// confirmed memory. Maintenance operation; runs in one transaction.
func RebuildIndex(db *sqlx.DB) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to start rebuild transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT INTO memory_fts (memory_fts) VALUES ('delete-all')`); err != nil {
		return fmt.Errorf("failed to truncate fts index: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM fts_meta`); err != nil {
		return fmt.Errorf("failed to truncate fts cache: %w", err)
	}

	var ids []string
	if err := tx.Select(&ids, `SELECT id FROM memories WHERE status = 'confirmed'`); err != nil {
		return fmt.Errorf("failed to list confirmed memories: %w", err)
	}
	for _, id := range ids {
		if err := ReindexMemory(tx, id); err != nil {
			return fmt.Errorf("failed to reindex memory %s: %w", id, err)
		}
	}

	return tx.Commit()
}
