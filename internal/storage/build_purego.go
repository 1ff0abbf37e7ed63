//go:build !sqlite_cgo

package storage

// This file is compiled by default. It uses a pure Go SQLite implementation
// that ships with FTS5 enabled.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	"net/url"

	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)

// writerDSN returns the connection string for a read-write handle
func writerDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout("+busyTimeoutMs+")")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return "file:" + path + "?" + q.Encode()
}

// readerDSN returns the connection string for a query-only handle
func readerDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout("+busyTimeoutMs+")")
	q.Add("_pragma", "query_only(1)")
	return "file:" + path + "?" + q.Encode()
}
