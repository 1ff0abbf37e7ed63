package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"
)

// DefaultReaderConns bounds the read pool; each open snapshot holds one
const DefaultReaderConns = 8

// Reader is a read-only handle on an index, independent of the writer
type Reader struct {
	db   *sql.DB
	path string
}

// OpenReader opens a query-only pool on an existing index.
// The index must have been created by OpenIndex first.
func OpenReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open reader: %w", err)
	}
	db, err := openDatabase(context.Background(), readerDSN(path), DefaultReaderConns)
	if err != nil {
		return nil, fmt.Errorf("failed to open reader: %w", err)
	}
	return &Reader{db: db, path: path}, nil
}

// Close closes the read pool. Open snapshots must be closed first.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Snapshot pins the most recently committed state of the index.
// Commits that land afterwards are invisible to it until a new
// snapshot is taken.
func (r *Reader) Snapshot(ctx context.Context) (*Snapshot, error) {
	// The transaction outlives ctx; database/sql rolls back a transaction
	// when its context is cancelled.
	tx, err := r.db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot: %w", err)
	}

	// A WAL read transaction picks its snapshot at the first read
	var count int64
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to pin snapshot: %w", err)
	}

	return &Snapshot{tx: tx, path: r.path, count: count, takenAt: time.Now()}, nil
}

// Snapshot is a consistent, read-only view of the index. Methods are
// serialized internally so a snapshot may be shared between goroutines.
type Snapshot struct {
	mu      sync.Mutex
	tx      *sql.Tx
	path    string
	count   int64
	takenAt time.Time
	closed  bool
}

// DocumentCount returns the number of documents visible in the snapshot
func (s *Snapshot) DocumentCount() int64 {
	return s.count
}

// TakenAt returns when the snapshot was pinned
func (s *Snapshot) TakenAt() time.Time {
	return s.takenAt
}

// Count re-counts the documents visible in the snapshot
func (s *Snapshot) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSnapshotClosed
	}
	var n int64
	if err := s.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Stats reports index statistics as seen by the snapshot
func (s *Snapshot) Stats(ctx context.Context) (*IndexStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSnapshotClosed
	}
	stats, err := readStats(ctx, s.tx)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(s.path); err == nil {
		stats.DatabaseBytes = info.Size()
	}
	return stats, nil
}

// Search runs an FTS5 query and returns up to limit hits, best first
func (s *Snapshot) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSnapshotClosed
	}
	return searchDocuments(ctx, s.tx, query, limit)
}

// Close releases the snapshot's connection back to the pool
func (s *Snapshot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.tx.Rollback()
}
