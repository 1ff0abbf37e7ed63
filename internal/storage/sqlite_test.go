package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/sids/pkg/types"
)

func setupTestIndex(t *testing.T) (*Index, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	ix, err := OpenIndex(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix, path
}

func setupTestReader(t *testing.T, path string) *Reader {
	t.Helper()
	r, err := OpenReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func testDocument(path, body string) *types.Document {
	return &types.Document{
		Path:    path,
		Title:   filepath.Base(path),
		Body:    body,
		Ext:     filepath.Ext(path),
		ModTime: time.Unix(1700000000, 0),
		Size:    int64(len(body)),
	}
}

func putAndCommit(t *testing.T, ix *Index, docs ...*types.Document) {
	t.Helper()
	ctx := context.Background()
	batch, err := ix.BeginBatch(ctx)
	require.NoError(t, err)
	for _, doc := range docs {
		require.NoError(t, batch.Put(ctx, doc))
	}
	require.NoError(t, batch.Commit())
}

func TestOpenIndexAppliesMigrations(t *testing.T) {
	ix, path := setupTestIndex(t)

	stats, err := ix.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.DocumentCount)
	assert.Equal(t, CurrentSchemaVersion, stats.SchemaVersion)
	assert.Greater(t, stats.DatabaseBytes, int64(0))

	// Reopening an existing index must not re-run migrations
	require.NoError(t, ix.Close())
	again, err := OpenIndex(path)
	require.NoError(t, err)
	defer again.Close()
	stats, err = again.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, stats.SchemaVersion)
}

func TestOpenIndexSingleWriter(t *testing.T) {
	ix, path := setupTestIndex(t)

	_, err := OpenIndex(path)
	assert.ErrorIs(t, err, ErrWriterLocked)

	require.NoError(t, ix.Close())
	second, err := OpenIndex(path)
	require.NoError(t, err)
	assert.NoError(t, second.Close())
}

func TestCommitVisibilityBoundary(t *testing.T) {
	ctx := context.Background()
	ix, path := setupTestIndex(t)
	r := setupTestReader(t, path)

	before, err := r.Snapshot(ctx)
	require.NoError(t, err)
	defer before.Close()

	batch, err := ix.BeginBatch(ctx)
	require.NoError(t, err)
	require.NoError(t, batch.Put(ctx, testDocument("/d/A.txt", "apple")))
	assert.Equal(t, 1, batch.Len())

	// Uncommitted writes are invisible to new snapshots
	pending, err := r.Snapshot(ctx)
	require.NoError(t, err)
	hits, err := pending.Search(ctx, "apple", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
	require.NoError(t, pending.Close())

	require.NoError(t, batch.Commit())

	// A snapshot taken before the commit keeps its view
	hits, err = before.Search(ctx, "apple", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, int64(0), before.DocumentCount())

	after, err := r.Snapshot(ctx)
	require.NoError(t, err)
	defer after.Close()
	hits, err = after.Search(ctx, "apple", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "/d/A.txt", hits[0].Path)
	assert.Equal(t, "A.txt", hits[0].Title)
	assert.Contains(t, hits[0].Snippet, "[apple]")
	assert.Equal(t, int64(1), after.DocumentCount())
}

func TestCheckpointBlockedByPinnedSnapshot(t *testing.T) {
	ctx := context.Background()
	ix, path := setupTestIndex(t)
	r := setupTestReader(t, path)

	putAndCommit(t, ix, testDocument("/d/A.txt", "apple"))
	pinned, err := r.Snapshot(ctx)
	require.NoError(t, err)
	putAndCommit(t, ix, testDocument("/d/B.txt", "banana"))

	res, err := ix.Checkpoint(ctx)
	require.NoError(t, err)
	assert.False(t, res.Complete(), "frames after the pinned snapshot stay in the WAL")
	assert.Less(t, res.Checkpointed, res.Frames)

	require.NoError(t, pinned.Close())
	res, err = ix.Checkpoint(ctx)
	require.NoError(t, err)
	assert.True(t, res.Complete(), "got %+v", res)
}

func TestRollbackDiscardsBatch(t *testing.T) {
	ctx := context.Background()
	ix, path := setupTestIndex(t)

	batch, err := ix.BeginBatch(ctx)
	require.NoError(t, err)
	require.NoError(t, batch.Put(ctx, testDocument("/d/A.txt", "apple")))
	require.NoError(t, batch.Rollback())
	assert.NoError(t, batch.Rollback(), "second rollback is a no-op")
	assert.ErrorIs(t, batch.Put(ctx, testDocument("/d/B.txt", "x")), ErrBatchDone)
	assert.ErrorIs(t, batch.Commit(), ErrBatchDone)

	snap, err := setupTestReader(t, path).Snapshot(ctx)
	require.NoError(t, err)
	defer snap.Close()
	n, err := snap.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestPutRejectsInvalidDocument(t *testing.T) {
	ctx := context.Background()
	ix, _ := setupTestIndex(t)

	batch, err := ix.BeginBatch(ctx)
	require.NoError(t, err)
	defer batch.Rollback()

	assert.ErrorIs(t, batch.Put(ctx, &types.Document{ModTime: time.Now()}), types.ErrMissingPath)
	assert.ErrorIs(t, batch.Put(ctx, &types.Document{Path: "/x"}), types.ErrMissingModTime)
}

func TestPutReplacesByPath(t *testing.T) {
	ctx := context.Background()
	ix, path := setupTestIndex(t)
	r := setupTestReader(t, path)

	putAndCommit(t, ix, testDocument("/d/A.txt", "apple orchard"))
	putAndCommit(t, ix, testDocument("/d/A.txt", "cherry orchard"))

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	defer snap.Close()

	hits, err := snap.Search(ctx, "apple", 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "replaced body must leave the full-text index")

	hits, err = snap.Search(ctx, "cherry", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(1), snap.DocumentCount())
}

func TestSearchOrderingAndLimit(t *testing.T) {
	ctx := context.Background()
	ix, path := setupTestIndex(t)
	r := setupTestReader(t, path)

	putAndCommit(t, ix,
		testDocument("/d/one.txt", "kiwi"),
		testDocument("/d/two.txt", "kiwi kiwi kiwi and some other words here"),
		testDocument("/d/three.txt", "mango"),
	)

	snap, err := r.Snapshot(ctx)
	require.NoError(t, err)
	defer snap.Close()

	hits, err := snap.Search(ctx, "kiwi", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.LessOrEqual(t, hits[0].BM25, hits[1].BM25, "best match first")

	hits, err = snap.Search(ctx, "kiwi", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = snap.Search(ctx, "kiwi", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchQueryErrors(t *testing.T) {
	ctx := context.Background()
	ix, path := setupTestIndex(t)
	putAndCommit(t, ix, testDocument("/d/A.txt", "apple"))

	snap, err := setupTestReader(t, path).Snapshot(ctx)
	require.NoError(t, err)
	defer snap.Close()

	tests := []struct {
		name  string
		query string
	}{
		{"empty", "   "},
		{"unterminated quote", `"apple`},
		{"dangling operator", "apple AND"},
		{"unknown column", "nosuchcolumn:apple"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := snap.Search(ctx, tt.query, 10)
			var qerr *types.QueryError
			require.ErrorAs(t, err, &qerr)
			assert.Equal(t, tt.query, qerr.Query)
		})
	}

	// The snapshot stays usable after a failed query
	hits, err := snap.Search(ctx, "apple", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestQuoteTerms(t *testing.T) {
	assert.Equal(t, `"apple"`, QuoteTerms("apple"))
	assert.Equal(t, `"apple" "AND"`, QuoteTerms(" apple  AND "))
	assert.Equal(t, `"say" """hi"""`, QuoteTerms(`say "hi"`))
	assert.Equal(t, "", QuoteTerms("   "))
}

func TestQuotedQueryNeverFailsToParse(t *testing.T) {
	ctx := context.Background()
	ix, path := setupTestIndex(t)
	putAndCommit(t, ix, testDocument("/d/A.txt", "apple"))

	snap, err := setupTestReader(t, path).Snapshot(ctx)
	require.NoError(t, err)
	defer snap.Close()

	hits, err := snap.Search(ctx, QuoteTerms(`apple AND "(`), 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestClosedSnapshot(t *testing.T) {
	ctx := context.Background()
	_, path := setupTestIndex(t)

	snap, err := setupTestReader(t, path).Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, snap.Close())
	assert.NoError(t, snap.Close())

	_, err = snap.Search(ctx, "apple", 10)
	assert.ErrorIs(t, err, ErrSnapshotClosed)
	_, err = snap.Count(ctx)
	assert.ErrorIs(t, err, ErrSnapshotClosed)
}

func TestSnapshotSurvivesCancelledContext(t *testing.T) {
	ix, path := setupTestIndex(t)
	putAndCommit(t, ix, testDocument("/d/A.txt", "apple"))

	ctx, cancel := context.WithCancel(context.Background())
	snap, err := setupTestReader(t, path).Snapshot(ctx)
	require.NoError(t, err)
	defer snap.Close()
	cancel()

	hits, err := snap.Search(context.Background(), "apple", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestOpenReaderMissingIndex(t *testing.T) {
	_, err := OpenReader(filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}

func TestNormalizeBM25(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeBM25(0))
	a := NormalizeBM25(-1.5)
	b := NormalizeBM25(-3.0)
	assert.Greater(t, a, 0.0)
	assert.Less(t, b, 1.0)
	assert.Greater(t, b, a, "stronger bm25 scores higher")
}

func TestIndexStats(t *testing.T) {
	ix, _ := setupTestIndex(t)
	putAndCommit(t, ix, testDocument("/d/A.txt", "apple"), testDocument("/d/B.txt", "banana"))

	stats, err := ix.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.DocumentCount)
	assert.Equal(t, int64(len("apple")+len("banana")), stats.TotalBodyBytes)
	assert.False(t, stats.LastIndexedAt.IsZero())
}
