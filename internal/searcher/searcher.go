package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/sids/internal/metrics"
	"github.com/dshills/sids/internal/storage"
	"github.com/dshills/sids/pkg/types"
)

const (
	// DefaultCacheSize is the number of responses kept per searcher
	DefaultCacheSize = 256
	// DefaultLimit applies when a request does not set one
	DefaultLimit = 10
	// MaxLimit caps every request
	MaxLimit = 100
)

// ErrClosed is returned by a closed searcher
var ErrClosed = errors.New("searcher is closed")

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query   string
	Limit   int
	Literal bool // treat Query as plain words rather than FTS5 syntax
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results       []types.SearchResult
	TotalResults  int
	DocumentCount int64 // documents visible to the snapshot that answered
	SnapshotTaken time.Time
	Duration      time.Duration
	CacheHit      bool
}

// Options configures a Searcher
type Options struct {
	// Generation reports the writer's commit count. When it advances the
	// searcher takes a fresh snapshot before the next search. Nil means
	// snapshots only change on Refresh.
	Generation func() uint64
	// CacheSize is the LRU capacity; negative disables caching
	CacheSize    int
	DefaultLimit int
	MaxLimit     int
	Logger       *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.CacheSize == 0 {
		o.CacheSize = DefaultCacheSize
	}
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = DefaultLimit
	}
	if o.MaxLimit <= 0 {
		o.MaxLimit = MaxLimit
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Searcher answers queries from a snapshot of the index. It sees commits
// up to its last refresh and nothing in flight. Safe for concurrent use;
// searches on one Searcher run one at a time, so use Clone for parallel
// readers.
type Searcher struct {
	reader *storage.Reader
	opts   Options
	logger *slog.Logger
	cache  *lru.Cache[[32]byte, *SearchResponse]

	mu      sync.Mutex
	snap    *storage.Snapshot
	snapGen uint64
	closed  bool
}

// New creates a searcher with a snapshot of the latest commit
func New(ctx context.Context, reader *storage.Reader, opts Options) (*Searcher, error) {
	opts = opts.withDefaults()

	s := &Searcher{
		reader: reader,
		opts:   opts,
		logger: opts.Logger.With("component", "searcher"),
	}

	if opts.CacheSize > 0 {
		cache, err := lru.New[[32]byte, *SearchResponse](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create LRU cache: %w", err)
		}
		s.cache = cache
	}

	if err := s.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Clone returns an independent searcher on the same reader with its own
// snapshot and cache
func (s *Searcher) Clone(ctx context.Context) (*Searcher, error) {
	return New(ctx, s.reader, s.opts)
}

// Close releases the snapshot
func (s *Searcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.snap != nil {
		return s.snap.Close()
	}
	return nil
}

// Refresh moves the searcher to the latest commit
func (s *Searcher) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.refreshLocked(ctx)
}

func (s *Searcher) refreshLocked(ctx context.Context) error {
	// Read the generation first so the snapshot covers at least that commit
	var gen uint64
	if s.opts.Generation != nil {
		gen = s.opts.Generation()
	}

	snap, err := s.reader.Snapshot(ctx)
	if err != nil {
		return err
	}
	if s.snap != nil {
		_ = s.snap.Close()
	}
	s.snap = snap
	s.snapGen = gen
	if s.cache != nil {
		s.cache.Purge()
	}
	metrics.SearchRefreshesTotal.Inc()
	s.logger.Debug("snapshot refreshed", "generation", gen, "documents", snap.DocumentCount())
	return nil
}

// Release drops the snapshot once the writer has committed past it; an
// open snapshot blocks WAL checkpoints. The next call takes a fresh
// snapshot. Without a generation function Release does nothing.
func (s *Searcher) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.snap == nil || s.opts.Generation == nil {
		return
	}
	if s.opts.Generation() == s.snapGen {
		return
	}
	_ = s.snap.Close()
	s.snap = nil
	s.logger.Debug("stale snapshot released", "generation", s.snapGen)
}

// maybeRefreshLocked refreshes when the writer committed since the last
// snapshot or the snapshot was released
func (s *Searcher) maybeRefreshLocked(ctx context.Context) error {
	if s.snap == nil {
		return s.refreshLocked(ctx)
	}
	if s.opts.Generation == nil {
		return nil
	}
	if s.opts.Generation() == s.snapGen {
		return nil
	}
	return s.refreshLocked(ctx)
}

// Search performs a ranked full-text search. Malformed queries fail with
// *types.QueryError and leave the searcher usable.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := s.validateRequest(&req); err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("query_error").Inc()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if err := s.maybeRefreshLocked(ctx); err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to refresh snapshot: %w", err)
	}

	key := computeQueryHash(req)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			response := copySearchResponse(cached)
			response.CacheHit = true
			response.Duration = time.Since(startTime)
			metrics.SearchRequestsTotal.WithLabelValues("cache_hit").Inc()
			return response, nil
		}
	}

	query := req.Query
	if req.Literal {
		query = storage.QuoteTerms(query)
	}

	hits, err := s.snap.Search(ctx, query, req.Limit)
	if err != nil {
		var queryErr *types.QueryError
		if errors.As(err, &queryErr) {
			queryErr.Query = req.Query
			metrics.SearchRequestsTotal.WithLabelValues("query_error").Inc()
			return nil, queryErr
		}
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	response := &SearchResponse{
		Results:       toResults(hits),
		DocumentCount: s.snap.DocumentCount(),
		SnapshotTaken: s.snap.TakenAt(),
	}
	response.TotalResults = len(response.Results)
	response.Duration = time.Since(startTime)

	if s.cache != nil {
		s.cache.Add(key, copySearchResponse(response))
	}

	metrics.SearchRequestsTotal.WithLabelValues("success").Inc()
	metrics.SearchDuration.Observe(response.Duration.Seconds())
	return response, nil
}

// DocumentCount returns the number of documents visible to the searcher
func (s *Searcher) DocumentCount(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if err := s.maybeRefreshLocked(ctx); err != nil {
		return 0, err
	}
	return s.snap.DocumentCount(), nil
}

// Stats reports index statistics as seen by the current snapshot
func (s *Searcher) Stats(ctx context.Context) (*storage.IndexStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if err := s.maybeRefreshLocked(ctx); err != nil {
		return nil, err
	}
	return s.snap.Stats(ctx)
}

func (s *Searcher) validateRequest(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return &types.QueryError{Query: req.Query, Err: types.ErrEmptyQuery}
	}

	if req.Limit <= 0 {
		req.Limit = s.opts.DefaultLimit
	}
	if req.Limit > s.opts.MaxLimit {
		req.Limit = s.opts.MaxLimit
	}
	return nil
}

func toResults(hits []storage.Hit) []types.SearchResult {
	results := make([]types.SearchResult, 0, len(hits))
	for i, hit := range hits {
		results = append(results, types.SearchResult{
			Path:    hit.Path,
			Rank:    i + 1,
			Score:   storage.NormalizeBM25(hit.BM25),
			Title:   hit.Title,
			Snippet: hit.Snippet,
			Ext:     hit.Ext,
			ModTime: hit.ModTime,
			Size:    hit.Size,
		})
	}
	return results
}

// copySearchResponse creates a copy that shares nothing mutable with src
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Results = append([]types.SearchResult(nil), src.Results...)
	return &dst
}

// computeQueryHash computes a cache key for a normalized request
func computeQueryHash(req SearchRequest) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	fmt.Fprintf(&data, "%d|%t", req.Limit, req.Literal)
	return sha256.Sum256([]byte(data.String()))
}
