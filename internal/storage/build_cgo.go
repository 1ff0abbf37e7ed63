//go:build sqlite_cgo

package storage

// This file is compiled when building with CGO and the sqlite_cgo tag.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "sqlite_cgo,sqlite_fts5" ./...
//
// The sqlite_fts5 tag is required: mattn/go-sqlite3 leaves FTS5 out of the
// amalgamation unless it is set.
//
// Driver used: github.com/mattn/go-sqlite3

import (
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)

// writerDSN returns the connection string for a read-write handle
func writerDSN(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", busyTimeoutMs)
	q.Set("_foreign_keys", "on")
	q.Set("_synchronous", "NORMAL")
	return "file:" + path + "?" + q.Encode()
}

// readerDSN returns the connection string for a query-only handle
func readerDSN(path string) string {
	q := url.Values{}
	q.Set("_busy_timeout", busyTimeoutMs)
	q.Set("_query_only", "true")
	return "file:" + path + "?" + q.Encode()
}
