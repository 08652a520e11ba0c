package database_test

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhyoong/bearmemori/pkg/database"
	testdb "github.com/jhyoong/bearmemori/test/database"
)

func insertMemory(t *testing.T, db *sqlx.DB, id, content, status string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := db.Exec(
		`INSERT INTO memories (id, owner_user_id, content, status, is_pinned, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`, id, 1, content, status, now, now)
	require.NoError(t, err)
}

func reindex(t *testing.T, db *sqlx.DB, id string) {
	t.Helper()
	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, database.ReindexMemory(tx, id))
	require.NoError(t, tx.Commit())
}

func matchCount(t *testing.T, db *sqlx.DB, query string) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n,
		`SELECT count(*) FROM memory_fts WHERE memory_fts MATCH ?`, query))
	return n
}

func TestReindexMemoryConfirmed(t *testing.T) {
	client := testdb.NewTestClient(t)
	db := client.DB()

	insertMemory(t, db, "m-1", "bought oat milk at the corner shop", "confirmed")
	reindex(t, db, "m-1")

	assert.Equal(t, 1, matchCount(t, db, "oat"))

	var cached struct {
		Content string `db:"content"`
		Tags    string `db:"tags"`
	}
	require.NoError(t, db.Get(&cached,
		`SELECT content, tags FROM fts_meta WHERE memory_id = ?`, "m-1"))
	assert.Equal(t, "bought oat milk at the corner shop", cached.Content)
	assert.Equal(t, "", cached.Tags)
}

func TestReindexMemoryIncludesConfirmedTagsOnly(t *testing.T) {
	client := testdb.NewTestClient(t)
	db := client.DB()

	insertMemory(t, db, "m-1", "photo of the cat", "confirmed")
	now := time.Now().UTC()
	_, err := db.Exec(
		`INSERT INTO memory_tags (memory_id, tag, status, suggested_at, confirmed_at)
		 VALUES (?, 'cat', 'confirmed', ?, ?), (?, 'sofa', 'suggested', ?, NULL)`,
		"m-1", now, now, "m-1", now)
	require.NoError(t, err)

	reindex(t, db, "m-1")

	assert.Equal(t, 1, matchCount(t, db, "tags:cat"))
	assert.Equal(t, 0, matchCount(t, db, "tags:sofa"))
}

func TestReindexMemoryRePendRemovesRow(t *testing.T) {
	client := testdb.NewTestClient(t)
	db := client.DB()

	insertMemory(t, db, "m-1", "meeting notes from friday", "confirmed")
	reindex(t, db, "m-1")
	require.Equal(t, 1, matchCount(t, db, "friday"))

	_, err := db.Exec(`UPDATE memories SET status = 'pending' WHERE id = ?`, "m-1")
	require.NoError(t, err)
	reindex(t, db, "m-1")

	assert.Equal(t, 0, matchCount(t, db, "friday"))
	var n int
	require.NoError(t, db.Get(&n, `SELECT count(*) FROM fts_meta WHERE memory_id = ?`, "m-1"))
	assert.Equal(t, 0, n)
}

func TestReindexMemoryReplacesStaleContent(t *testing.T) {
	client := testdb.NewTestClient(t)
	db := client.DB()

	insertMemory(t, db, "m-1", "original wording", "confirmed")
	reindex(t, db, "m-1")

	_, err := db.Exec(`UPDATE memories SET content = 'revised wording' WHERE id = ?`, "m-1")
	require.NoError(t, err)
	reindex(t, db, "m-1")

	assert.Equal(t, 0, matchCount(t, db, "original"))
	assert.Equal(t, 1, matchCount(t, db, "revised"))
}

func TestRemoveFromIndexUnindexedIsNoop(t *testing.T) {
	client := testdb.NewTestClient(t)
	db := client.DB()

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, database.RemoveFromIndex(tx, "never-indexed"))
	require.NoError(t, tx.Commit())
}

func TestRebuildIndex(t *testing.T) {
	client := testdb.NewTestClient(t)
	db := client.DB()

	insertMemory(t, db, "m-1", "grocery run on saturday", "confirmed")
	insertMemory(t, db, "m-2", "pending photo", "pending")
	reindex(t, db, "m-1")

	// Desynchronize the cache on purpose, then rebuild.
	_, err := db.Exec(`UPDATE memories SET content = 'grocery run moved to sunday' WHERE id = ?`, "m-1")
	require.NoError(t, err)

	require.NoError(t, database.RebuildIndex(db))

	assert.Equal(t, 1, matchCount(t, db, "sunday"))
	assert.Equal(t, 0, matchCount(t, db, "saturday"))
	assert.Equal(t, 0, matchCount(t, db, "photo"))
}
