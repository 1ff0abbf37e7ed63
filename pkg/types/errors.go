package types

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// Search result errors
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be in [0, 1]")

	// Pipeline errors
	ErrIndexerClosed     = errors.New("indexer is closed")
	ErrCollectorConsumed = errors.New("collector has already been consumed")
	ErrEmptyQuery        = errors.New("query cannot be empty")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// LoadError reports a change cache store that exists but cannot be read
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load change cache from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PersistError reports a change cache that could not be written back
type PersistError struct {
	Sink string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist change cache to %s: %v", e.Sink, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// CollectorError is a discovery fault for a single path. It never aborts a walk.
type CollectorError struct {
	Path string
	Err  error
}

func (e *CollectorError) Error() string {
	return fmt.Sprintf("collect %s: %v", e.Path, e.Err)
}

func (e *CollectorError) Unwrap() error { return e.Err }

// ExtractionError is a content extraction fault for a single file.
// The request is dropped and no document is produced.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// WriterError is a fatal index storage failure during add or commit
type WriterError struct {
	Op  string // "begin", "put", "commit"
	Err error
}

func (e *WriterError) Error() string {
	return fmt.Sprintf("index writer %s: %v", e.Op, e.Err)
}

func (e *WriterError) Unwrap() error { return e.Err }

// QueryError reports a malformed or unsupported query
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
