package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := openDatabase(context.Background(), writerDSN(filepath.Join(t.TempDir(), "test.db")), 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = ?", name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestApplyMigrationsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, db, IndexMigrations))
	require.NoError(t, ApplyMigrations(ctx, db, IndexMigrations))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count))
	assert.Equal(t, len(IndexMigrations), count)

	for _, table := range []string{"documents", "documents_fts"} {
		assert.True(t, tableExists(t, db, table), table)
	}
}

func TestChangeMigrations(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, ApplyMigrations(context.Background(), db, ChangeMigrations))

	v, err := schemaVersion(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, CurrentChangeSchemaVersion, v.String())
	assert.True(t, tableExists(t, db, "change_records"))
	assert.False(t, tableExists(t, db, "documents"))
}

// Versions must compare semantically, so 1.10.0 sorts after 1.2.0
func TestMigrationVersionOrdering(t *testing.T) {
	tests := []struct {
		name      string
		applied   string
		candidate string
		runs      bool
	}{
		{"major", "1.9.9", "2.0.0", true},
		{"minor not lexicographic", "1.2.0", "1.10.0", true},
		{"patch not lexicographic", "1.0.2", "1.0.10", true},
		{"equal", "1.0.0", "1.0.0", false},
		{"older", "1.3.0", "1.2.9", false},
		{"pre-release below release", "1.0.0", "1.0.0-alpha", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTestDB(t)
			ctx := context.Background()

			_, err := db.ExecContext(ctx, schemaVersionTable)
			require.NoError(t, err)
			_, err = db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", tt.applied)
			require.NoError(t, err)

			migrations := []Migration{{
				Version: tt.candidate,
				Up:      "CREATE TABLE marker (id INTEGER)",
				Down:    "DROP TABLE marker",
			}}
			require.NoError(t, ApplyMigrations(ctx, db, migrations))
			assert.Equal(t, tt.runs, tableExists(t, db, "marker"))
		})
	}
}

func TestFailedMigrationLeavesNoTrace(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	migrations := []Migration{
		{Version: "1.0.0", Up: "CREATE TABLE first (id INTEGER)", Down: "DROP TABLE first"},
		{Version: "1.1.0", Up: "CREATE TABLE second (id INTEGER); THIS IS NOT SQL", Down: "DROP TABLE second"},
	}
	err := ApplyMigrations(ctx, db, migrations)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1.1.0")

	v, err := schemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())
	assert.True(t, tableExists(t, db, "first"))
	assert.False(t, tableExists(t, db, "second"))
}

func TestInvalidMigrationVersion(t *testing.T) {
	db := openTestDB(t)
	err := ApplyMigrations(context.Background(), db, []Migration{{Version: "one", Up: "SELECT 1"}})
	assert.Error(t, err)
}

func TestRollbackMigration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, db, ChangeMigrations))
	require.NoError(t, RollbackMigration(ctx, db, ChangeMigrations))
	assert.False(t, tableExists(t, db, "change_records"))

	v, err := schemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", v.String())

	assert.Error(t, RollbackMigration(ctx, db, ChangeMigrations), "nothing left to roll back")
}
