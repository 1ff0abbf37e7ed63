package types

import "time"

// SearchResult represents a single search match with relevance information
type SearchResult struct {
	// Identification
	Path string
	Rank int // Position in result set (1-based)

	// Scoring
	Score float64 // Normalized BM25 relevance in [0, 1], higher is better

	// Metadata
	Title   string
	Snippet string // Highlighted excerpt of the body
	Ext     string
	ModTime time.Time
	Size    int64
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.Path == "" {
		return ErrMissingPath
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.Score < 0 || sr.Score > 1 {
		return ErrInvalidRelevanceScore
	}

	return nil
}
