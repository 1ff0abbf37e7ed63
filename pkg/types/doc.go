// Package types provides the value types and errors shared by the sids
// pipeline.
//
// # Core Types
//
// FileDescriptor identifies a file the collector decided needs indexing.
// Its absolute path is the file's identity everywhere: in the change
// cache, in the index and in search results.
//
//	fd := types.NewFileDescriptor("/home/me/notes/todo.md", info.ModTime(), info.Size())
//
// IndexRequest wraps one descriptor as a unit of indexing work. A request
// produces at most one Document:
//
//	doc := &types.Document{
//	    Path:    fd.Path,
//	    Title:   "todo.md",
//	    Body:    extractedText,
//	    ModTime: fd.ModTime,
//	}
//
// SearchResult is one ranked match. Ranks start at 1 and Score is the
// normalized BM25 relevance in [0, 1].
//
// # Errors
//
// Each pipeline stage reports failures with its own error type so callers
// can tell a skipped file from a dead index:
//
//	LoadError        change cache store exists but cannot be read (startup aborts)
//	PersistError     change cache could not be written back (logged only)
//	CollectorError   one path could not be examined (walk continues)
//	ExtractionError  one file could not be turned into a document (dropped)
//	WriterError      the index writer failed (indexing stops)
//	QueryError       a query could not be parsed (that search only)
//
// All of them unwrap to their cause:
//
//	var qerr *types.QueryError
//	if errors.As(err, &qerr) {
//	    fmt.Println("bad query:", qerr.Query)
//	}
package types
