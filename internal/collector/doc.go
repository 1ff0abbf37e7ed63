// Package collector discovers files that need (re)indexing.
//
// A Collector walks its roots lazily through an iter.Seq2. For each regular
// file that passes the include and exclude rules it compares the on-disk
// modification time with the change cache: files whose recorded time is equal
// or newer are skipped. Otherwise the new time is recorded in the cache and
// the file is yielded.
//
//	c, err := collector.New(opts, cache, running, logger)
//	if err != nil {
//	    return err
//	}
//	for file, err := range c.All() {
//	    if err != nil {
//	        logger.Warn("collect", "error", err) // *types.CollectorError
//	        continue
//	    }
//	    ...
//	}
//
// I/O faults on one path (stat, open, unreadable directory, missing root)
// are yielded as errors and never end the walk, except that a missing root
// ends it when Options.StrictRoots is set. The Running view is polled before
// every entry; once it reports false the sequence ends.
package collector
