// ABOUTME: Tests for opening the SQLite store on disk
// ABOUTME: Checks directory creation, WAL mode and safe reopening
package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableNames(t *testing.T, path string) []string {
	t.Helper()
	database, err := OpenDatabase(path)
	require.NoError(t, err)
	defer database.Close()

	rows, err := database.Query("SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func TestOpenDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "leadsync.db")

	database, err := OpenDatabase(dbPath)
	require.NoError(t, err)
	defer database.Close()

	_, err = os.Stat(dbPath)
	require.NoError(t, err)

	var mode string
	require.NoError(t, database.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpenDatabaseInvalidPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

	_, err := OpenDatabase(filepath.Join(file, "leadsync.db"))
	assert.Error(t, err)
}

func TestOpenDatabaseTwice(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "leadsync.db")

	first := tableNames(t, dbPath)
	second := tableNames(t, dbPath)

	for _, name := range []string{"connections", "contacts", "opportunities", "pipelines", "sync_runs", "sync_state"} {
		assert.Contains(t, first, name)
	}
	assert.Equal(t, first, second)
}
