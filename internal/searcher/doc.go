// Package searcher serves queries against the index while indexing runs.
//
// A Searcher holds one storage snapshot and answers every query from it,
// so results reflect the commits made up to its last refresh and never a
// half-written batch. Refresh moves it to the latest commit; with
// Options.Generation set it refreshes on its own whenever the indexer has
// committed since.
//
//	s, err := searcher.New(ctx, reader, searcher.Options{Generation: idx.Generation})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{Query: "apple", Limit: 10})
//	var qerr *types.QueryError
//	if errors.As(err, &qerr) {
//	    // malformed query; the searcher is still usable
//	}
//
// Queries use FTS5 syntax (phrases, prefix*, AND/OR/NOT, column:term).
// Set SearchRequest.Literal to match plain words instead.
//
// Responses are cached in an LRU keyed by query and limit. The cache is
// purged on every refresh, so a cached answer never outlives its snapshot.
package searcher
