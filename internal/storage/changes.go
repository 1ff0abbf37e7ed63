package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/sids/internal/changecache"
)

// ChangeStore persists change cache records in their own SQLite file so the
// cache can be missing or damaged without touching the index.
// It implements changecache.Source and changecache.Sink.
type ChangeStore struct {
	path string
}

// OpenChangeStore returns a store backed by the file at path. Nothing is
// created on disk until the first save.
func OpenChangeStore(path string) *ChangeStore {
	return &ChangeStore{path: path}
}

// Name identifies the store in errors and logs
func (s *ChangeStore) Name() string {
	return s.path
}

// LoadChangeRecords reads every stored record. A missing file yields no
// records and no error.
func (s *ChangeStore) LoadChangeRecords(ctx context.Context) ([]changecache.Record, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	db, err := openDatabase(ctx, readerDSN(s.path), 1)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	var name string
	err = db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='change_records'").Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT path, mod_time_ns FROM change_records ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []changecache.Record
	for rows.Next() {
		var (
			rec   changecache.Record
			nanos int64
		)
		if err := rows.Scan(&rec.Path, &nanos); err != nil {
			return nil, fmt.Errorf("failed to scan change record: %w", err)
		}
		rec.ModTime = time.Unix(0, nanos)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveChangeRecords replaces the stored records with records in one transaction
func (s *ChangeStore) SaveChangeRecords(ctx context.Context, records []changecache.Record) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	db, err := openDatabase(ctx, writerDSN(s.path), 1)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := ApplyMigrations(ctx, db, ChangeMigrations); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM change_records"); err != nil {
		return fmt.Errorf("failed to clear change records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO change_records (path, mod_time_ns) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Path, rec.ModTime.UnixNano()); err != nil {
			return fmt.Errorf("failed to write change record %s: %w", rec.Path, err)
		}
	}

	return tx.Commit()
}
