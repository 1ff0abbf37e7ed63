// Package indexer turns index requests into committed documents.
//
// An Indexer owns a bounded job queue, a fixed pool of extraction workers
// and one writer goroutine:
//
//	AddJob -> jobs (bounded) -> workers (Extract) -> docs -> writer (Put/Commit)
//
// AddJob blocks while the queue is full. The writer holds the single open
// batch and commits it every CommitInterval, when it reaches MaxBatchDocs,
// and once more when Close drains the pipeline. Documents become searchable
// only when the batch holding them commits.
//
// # Usage
//
//	idx := indexer.New(indexer.Config{}, indexer.StorageWriter(ix), registry, logger)
//	if err := idx.SpawnWorkers(); err != nil {
//	    return err
//	}
//	for _, req := range requests {
//	    if err := idx.AddJob(ctx, req); err != nil {
//	        break // *types.WriterError or ErrIndexerClosed
//	    }
//	}
//	err := idx.Close()
//
// # Failures
//
// A file that cannot be extracted is logged, counted and dropped. A failure
// to begin, write or commit a batch is fatal: the error is recorded, blocked
// and later AddJob calls return it, the remaining queue is drained without
// writing, and Close returns it. After Close the counters satisfy
// Enqueued == Committed + ExtractionFailed + Dropped.
package indexer
