package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB opens an in-memory database closed at test end.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), Config{Path: ":memory:", BusyTimeout: 1})
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})
	return db
}

func TestOpen_File(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "netwatch.db")

	db, err := Open(context.Background(), Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck // Test cleanup

	assert.Equal(t, dbPath, db.Path())

	// Force the file into existence and check the directory was created
	_, err = db.ExecContext(context.Background(), "CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)
	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.HealthCheck(context.Background()))
}

func TestClose_Twice(t *testing.T) {
	db, err := Open(context.Background(), Config{Path: ":memory:"})
	require.NoError(t, err)

	require.NoError(t, db.Close())
	// database/sql tolerates closing a closed pool
	assert.NoError(t, db.Close())
}

func TestIsUniqueViolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE TABLE hosts (ip TEXT NOT NULL UNIQUE)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO hosts (ip) VALUES ('10.0.0.1')")
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, "INSERT INTO hosts (ip) VALUES ('10.0.0.1')")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	_, err = db.ExecContext(ctx, "INSERT INTO missing_table (ip) VALUES ('x')")
	require.Error(t, err)
	assert.False(t, IsUniqueViolation(err))

	assert.False(t, IsUniqueViolation(nil))
}
