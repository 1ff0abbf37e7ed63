// Package storage provides SQLite-based persistence for the document index
// and the change cache.
//
// # Database Files
//
// Two independent files live in the data directory:
//   - index.db: documents and their FTS5 full-text index
//   - cache.db: change records (path → last modification time)
//
// Keeping them apart lets the change cache be missing or damaged without
// affecting the index.
//
// # Index Schema
//
// Tables:
//   - documents: one row per file, keyed by path (title, body, ext, mod time, size)
//   - documents_fts: FTS5 external-content table over title, body and path,
//     kept in sync by triggers
//   - schema_version: applied migrations
//
// # Writer and Readers
//
// OpenIndex returns the single writer for a path. A second OpenIndex on the
// same path in the same process fails with ErrWriterLocked. Writes are
// grouped into batches; a batch is one SQL transaction, so documents become
// searchable atomically when Commit returns.
//
//	ix, err := storage.OpenIndex(filepath.Join(dataDir, "index.db"))
//	if err != nil {
//	    return err
//	}
//	defer ix.Close()
//
//	batch, err := ix.BeginBatch(ctx)
//	if err != nil {
//	    return err
//	}
//	if err := batch.Put(ctx, &doc); err != nil {
//	    _ = batch.Rollback()
//	    return err
//	}
//	err = batch.Commit()
//
// OpenReader returns a query-only pool. Each Snapshot pins a WAL read
// transaction: it sees exactly the commits that finished before it was taken.
//
//	r, err := storage.OpenReader(path)
//	snap, err := r.Snapshot(ctx)
//	defer snap.Close()
//	hits, err := snap.Search(ctx, "apple", 10)
//
// # Queries
//
// Search takes FTS5 query syntax. Parse failures are returned as
// *types.QueryError. QuoteTerms converts free text into a literal query.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Building with
// -tags "sqlite_cgo,sqlite_fts5" and CGO_ENABLED=1 switches to
// github.com/mattn/go-sqlite3.
package storage
