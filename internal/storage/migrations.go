package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the index database schema version
	CurrentSchemaVersion = "1.0.0"

	// CurrentChangeSchemaVersion tracks the change record database schema version
	CurrentChangeSchemaVersion = "1.0.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// IndexMigrations contains the document index migrations in order
var IndexMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      indexV1Up,
		Down:    indexV1Down,
	},
}

// ChangeMigrations contains the change record store migrations in order
var ChangeMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      changeV1Up,
		Down:    changeV1Down,
	},
}

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

const indexV1Up = `
-- Documents table, one row per indexed file
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    body TEXT NOT NULL,
    ext TEXT NOT NULL DEFAULT '',
    mod_time_ns INTEGER NOT NULL,
    size_bytes INTEGER NOT NULL DEFAULT 0,
    indexed_at_ns INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_ext ON documents(ext);
CREATE INDEX IF NOT EXISTS idx_documents_mod_time ON documents(mod_time_ns);

-- Full-text search over documents
CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
    title, body, path,
    content='documents',
    content_rowid='id',
    tokenize='unicode61'
);

-- Triggers to keep FTS in sync. External content tables need the
-- 'delete' command with the old values before a row changes.
CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
    INSERT INTO documents_fts(rowid, title, body, path)
    VALUES (new.id, new.title, new.body, new.path);
END;

CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, title, body, path)
    VALUES ('delete', old.id, old.title, old.body, old.path);
END;

CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
    INSERT INTO documents_fts(documents_fts, rowid, title, body, path)
    VALUES ('delete', old.id, old.title, old.body, old.path);
    INSERT INTO documents_fts(rowid, title, body, path)
    VALUES (new.id, new.title, new.body, new.path);
END;
`

const indexV1Down = `
DROP TRIGGER IF EXISTS documents_au;
DROP TRIGGER IF EXISTS documents_ad;
DROP TRIGGER IF EXISTS documents_ai;
DROP TABLE IF EXISTS documents_fts;
DROP TABLE IF EXISTS documents;
`

const changeV1Up = `
CREATE TABLE IF NOT EXISTS change_records (
    path TEXT PRIMARY KEY,
    mod_time_ns INTEGER NOT NULL
) WITHOUT ROWID;
`

const changeV1Down = `
DROP TABLE IF EXISTS change_records;
`

// ApplyMigrations runs all pending migrations from the given set
func ApplyMigrations(ctx context.Context, db *sql.DB, migrations []Migration) error {
	if _, err := db.ExecContext(ctx, schemaVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	currentVersion, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		if err := applyMigration(ctx, db, migration); err != nil {
			return err
		}
		currentVersion = migrationVersion
	}

	return nil
}

// applyMigration executes one migration and records it in a single transaction
func applyMigration(ctx context.Context, db *sql.DB, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %s: %w", migration.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
		return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
	}
	return tx.Commit()
}

// schemaVersion returns the highest applied version, 0.0.0 when none
func schemaVersion(ctx context.Context, q querier) (*semver.Version, error) {
	rows, err := q.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	current := semver.MustParse("0.0.0")
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(s)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %s: %w", s, err)
		}
		if v.GreaterThan(current) {
			current = v
		}
	}
	return current, rows.Err()
}

// RollbackMigration rolls back the most recent migration of the given set
func RollbackMigration(ctx context.Context, db *sql.DB, migrations []Migration) error {
	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current.Equal(semver.MustParse("0.0.0")) {
		return errors.New("no migrations to rollback")
	}

	var migration *Migration
	for i := range migrations {
		v, err := semver.NewVersion(migrations[i].Version)
		if err == nil && v.Equal(current) {
			migration = &migrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %s not found", current)
	}

	if _, err := db.ExecContext(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", migration.Version); err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", migration.Version, err)
	}
	return nil
}
