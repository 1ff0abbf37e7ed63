package types

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// FileDescriptor describes a file the collector decided needs (re)indexing
type FileDescriptor struct {
	Path    string    // Absolute, cleaned path; the file's identity
	ModTime time.Time // Modification time observed at discovery
	Size    int64     // Size in bytes at discovery
	Ext     string    // Lower-cased extension including the dot, may be empty
}

// NewFileDescriptor builds a descriptor from a path and its observed metadata
func NewFileDescriptor(path string, modTime time.Time, size int64) FileDescriptor {
	return FileDescriptor{
		Path:    filepath.Clean(path),
		ModTime: modTime,
		Size:    size,
		Ext:     strings.ToLower(filepath.Ext(path)),
	}
}

// IndexRequest is one unit of indexing work. It produces at most one document.
type IndexRequest struct {
	File FileDescriptor
}

// Document is the schema-conformant record handed to the index writer
type Document struct {
	// Identification
	Path string

	// Searchable fields
	Title string
	Body  string

	// Metadata
	Ext     string
	ModTime time.Time
	Size    int64
}

// Validate checks that the document can be written to the index
func (d *Document) Validate() error {
	if d.Path == "" {
		return ErrMissingPath
	}
	if d.ModTime.IsZero() {
		return ErrMissingModTime
	}
	return nil
}

var (
	// ErrMissingPath is returned when a document has no path
	ErrMissingPath = errors.New("document path is required")
	// ErrMissingModTime is returned when a document has no modification time
	ErrMissingModTime = errors.New("document modification time is required")
)
