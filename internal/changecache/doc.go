// Package changecache tracks the last modification time recorded for every
// file the collector has handed to the indexer.
//
// The cache is the only authority on whether a file changed since the last
// run: a file whose on-disk time is not newer than its recorded time is
// skipped. Recorded times never move backwards.
//
// # Persistence
//
// The cache is loaded from a Source at startup and written to a Sink once
// indexing finishes. storage.ChangeStore implements both on a SQLite file.
//
//	store := storage.OpenChangeStore(filepath.Join(dataDir, "cache.db"))
//	cache, err := changecache.Load(ctx, store)
//	if err != nil {
//	    return err // *types.LoadError
//	}
//	...
//	if err := cache.Persist(ctx, store); err != nil {
//	    logger.Warn("cache not saved", "error", err) // *types.PersistError
//	}
//
// Persistence happens at the end of a run, so an interrupted run re-indexes
// files whose records were never saved. Re-indexing is an idempotent upsert.
package changecache
