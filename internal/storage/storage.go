package storage

import (
	"errors"
	"time"
)

var (
	// ErrWriterLocked is returned when a second writer is opened on the same index
	ErrWriterLocked = errors.New("index writer already open")
	// ErrBatchDone is returned when a committed or rolled back batch is reused
	ErrBatchDone = errors.New("batch already committed or rolled back")
	// ErrSnapshotClosed is returned when a closed snapshot is queried
	ErrSnapshotClosed = errors.New("snapshot is closed")
)

// busyTimeoutMs is how long a connection waits on a locked database
const busyTimeoutMs = "5000"

// Hit is one full-text match read from a snapshot
type Hit struct {
	Path    string
	Title   string
	Ext     string
	ModTime time.Time
	Size    int64
	Snippet string
	BM25    float64 // Raw FTS5 bm25 value, lower is better
}

// IndexStats summarizes the committed state of an index
type IndexStats struct {
	DocumentCount  int64
	TotalBodyBytes int64
	LastIndexedAt  time.Time
	DatabaseBytes  int64
	SchemaVersion  string
}
