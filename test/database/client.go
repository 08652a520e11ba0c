// Package database provides test helpers for the SQLite store.
package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jhyoong/bearmemori/pkg/database"
)

// NewTestClient creates a migrated SQLite client on a per-test temp file.
// The file and connection are cleaned up when the test ends.
func NewTestClient(t *testing.T) *database.Client {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	client, err := database.NewClient(context.Background(), path)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, client.Close())
	})
	return client
}
