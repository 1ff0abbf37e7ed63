package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dshills/sids/pkg/types"
)

// openDatabase opens a SQLite database with appropriate settings.
// maxConns bounds the pool; the writer uses 1 so SQLite sees a single writer.
func openDatabase(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(0)

	// Connection pragmas are applied on connect, so a file that is not a
	// database fails here rather than on first use.
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Index is the single writer handle of a document index
type Index struct {
	db      *sql.DB
	path    string
	release func()

	closeOnce sync.Once
	closeErr  error
}

// OpenIndex opens or creates the index at path and applies migrations.
// Only one Index may be open per path in a process.
func OpenIndex(path string) (*Index, error) {
	release, ok := acquireWriter(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrWriterLocked)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		release()
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	ctx := context.Background()
	db, err := openDatabase(ctx, writerDSN(path), 1)
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		_ = db.Close()
		release()
		return nil, fmt.Errorf("failed to read journal mode: %w", err)
	}
	if mode != "wal" {
		_ = db.Close()
		release()
		return nil, fmt.Errorf("failed to enable WAL mode: journal_mode is %s", mode)
	}

	if err := ApplyMigrations(ctx, db, IndexMigrations); err != nil {
		_ = db.Close()
		release()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &Index{db: db, path: path, release: release}, nil
}

// Path returns the database file backing the index
func (ix *Index) Path() string {
	return ix.path
}

// Close closes the writer and frees the writer slot for the path
func (ix *Index) Close() error {
	ix.closeOnce.Do(func() {
		ix.closeErr = ix.db.Close()
		ix.release()
	})
	return ix.closeErr
}

// BeginBatch opens a write transaction. Documents put into the batch become
// visible to new snapshots only once Commit returns.
func (ix *Index) BeginBatch(ctx context.Context) (*Batch, error) {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	stmt, err := tx.PrepareContext(ctx, upsertDocumentSQL)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	return &Batch{tx: tx, stmt: stmt, now: time.Now}, nil
}

// CheckpointResult reports one WAL checkpoint. Checkpointed stays below
// Frames while a reader pins an older snapshot.
type CheckpointResult struct {
	Busy         bool
	Frames       int
	Checkpointed int
}

// Complete reports whether every WAL frame reached the database file
func (r CheckpointResult) Complete() bool {
	return !r.Busy && r.Checkpointed == r.Frames
}

// Checkpoint copies committed WAL frames into the database file without
// waiting on readers
func (ix *Index) Checkpoint(ctx context.Context) (CheckpointResult, error) {
	var busy, frames, done int
	if err := ix.db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &done); err != nil {
		return CheckpointResult{}, fmt.Errorf("failed to checkpoint: %w", err)
	}
	return CheckpointResult{Busy: busy != 0, Frames: frames, Checkpointed: done}, nil
}

// Stats reports the committed document count and database size.
// It waits for an open batch because the writer pool has one connection.
func (ix *Index) Stats(ctx context.Context) (*IndexStats, error) {
	stats, err := readStats(ctx, ix.db)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(ix.path); err == nil {
		stats.DatabaseBytes = info.Size()
	}
	return stats, nil
}

func readStats(ctx context.Context, q querier) (*IndexStats, error) {
	var (
		stats     IndexStats
		lastNanos sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(LENGTH(CAST(body AS BLOB))), 0), MAX(indexed_at_ns)
		FROM documents
	`).Scan(&stats.DocumentCount, &stats.TotalBodyBytes, &lastNanos)
	if err != nil {
		return nil, fmt.Errorf("failed to read index stats: %w", err)
	}
	if lastNanos.Valid {
		stats.LastIndexedAt = time.Unix(0, lastNanos.Int64)
	}

	version, err := schemaVersion(ctx, q)
	if err != nil {
		return nil, err
	}
	stats.SchemaVersion = version.String()
	return &stats, nil
}

const upsertDocumentSQL = `
	INSERT INTO documents (path, title, body, ext, mod_time_ns, size_bytes, indexed_at_ns)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		title = excluded.title,
		body = excluded.body,
		ext = excluded.ext,
		mod_time_ns = excluded.mod_time_ns,
		size_bytes = excluded.size_bytes,
		indexed_at_ns = excluded.indexed_at_ns
`

// Batch is an open write transaction on the index. It is not safe for
// concurrent use; the indexer's writer goroutine owns it.
type Batch struct {
	tx    *sql.Tx
	stmt  *sql.Stmt
	count int
	done  bool
	now   func() time.Time
}

// Put adds or replaces the document keyed by its path
func (b *Batch) Put(ctx context.Context, doc *types.Document) error {
	if b.done {
		return ErrBatchDone
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	_, err := b.stmt.ExecContext(ctx,
		doc.Path, doc.Title, doc.Body, doc.Ext,
		doc.ModTime.UnixNano(), doc.Size, b.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.Path, err)
	}
	b.count++
	return nil
}

// Len returns the number of documents put into the batch
func (b *Batch) Len() int {
	return b.count
}

// Commit makes every document in the batch durable and visible
func (b *Batch) Commit() error {
	if b.done {
		return ErrBatchDone
	}
	b.done = true
	_ = b.stmt.Close()
	return b.tx.Commit()
}

// Rollback discards the batch. It is a no-op after Commit.
func (b *Batch) Rollback() error {
	if b.done {
		return nil
	}
	b.done = true
	_ = b.stmt.Close()
	return b.tx.Rollback()
}
