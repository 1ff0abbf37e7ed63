package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dshills/sids/pkg/types"
)

// Column weights for bm25: title, body, path
const searchDocumentsSQL = `
	SELECT
		d.path, d.title, d.ext, d.mod_time_ns, d.size_bytes,
		snippet(documents_fts, 1, '[', ']', '...', 16),
		bm25(documents_fts, 5.0, 1.0, 2.0) AS score
	FROM documents_fts
	INNER JOIN documents d ON d.id = documents_fts.rowid
	WHERE documents_fts MATCH ?
	ORDER BY score
	LIMIT ?
`

// searchDocuments executes a ranked full-text query
func searchDocuments(ctx context.Context, q querier, query string, limit int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &types.QueryError{Query: query, Err: types.ErrEmptyQuery}
	}
	if limit <= 0 {
		return []Hit{}, nil
	}

	rows, err := q.QueryContext(ctx, searchDocumentsSQL, query, limit)
	if err != nil {
		return nil, classifyQueryError(query, err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]Hit, 0, limit)
	for rows.Next() {
		var (
			hit     Hit
			modTime int64
		)
		if err := rows.Scan(&hit.Path, &hit.Title, &hit.Ext, &modTime, &hit.Size, &hit.Snippet, &hit.BM25); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		hit.ModTime = time.Unix(0, modTime)
		hits = append(hits, hit)
	}
	// FTS5 reports some parse errors only once the statement steps
	if err := rows.Err(); err != nil {
		return nil, classifyQueryError(query, err)
	}
	return hits, nil
}

// ftsErrorMarkers are substrings of SQLite errors caused by the MATCH expression
var ftsErrorMarkers = []string{
	"fts5:",
	"syntax error",
	"no such column",
	"unterminated string",
	"unknown special query",
	"malformed match",
}

// classifyQueryError turns query parse failures into *types.QueryError and
// passes any other failure through
func classifyQueryError(query string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range ftsErrorMarkers {
		if strings.Contains(msg, marker) {
			return &types.QueryError{Query: query, Err: err}
		}
	}
	return fmt.Errorf("failed to execute FTS search: %w", err)
}

// NormalizeBM25 maps an FTS5 bm25 value (more negative is better) onto
// [0, 1) where higher is better
func NormalizeBM25(bm25 float64) float64 {
	a := math.Abs(bm25)
	return a / (1 + a)
}

// QuoteTerms turns free text into an FTS5 query that matches every word
// literally, so operators and punctuation in user input cannot fail to parse
func QuoteTerms(text string) string {
	fields := strings.Fields(text)
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		quoted = append(quoted, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}
