package changecache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/sids/pkg/types"
)

// memoryStore is an in-memory Source and Sink
type memoryStore struct {
	mu      sync.Mutex
	records []Record
	loadErr error
	saveErr error
	saves   int
}

func (m *memoryStore) LoadChangeRecords(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]Record(nil), m.records...), nil
}

func (m *memoryStore) SaveChangeRecords(ctx context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.records = append([]Record(nil), records...)
	return nil
}

func (m *memoryStore) Name() string { return "memory" }

func TestRecordIsMonotonic(t *testing.T) {
	c := New()
	t1 := time.Unix(1000, 0)
	t2 := time.Unix(2000, 0)

	assert.True(t, c.Record("/a", t1))
	assert.True(t, c.Record("/a", t2))
	assert.False(t, c.Record("/a", t1), "older time must not regress the entry")
	assert.False(t, c.Record("/a", t2), "equal time is not a change")

	got, ok := c.Lookup("/a")
	require.True(t, ok)
	assert.True(t, got.Equal(t2))
}

func TestLookupMissing(t *testing.T) {
	c := New()
	_, ok := c.Lookup("/nope")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestSnapshotSorted(t *testing.T) {
	c := New()
	c.Record("/c", time.Unix(3, 0))
	c.Record("/a", time.Unix(1, 0))
	c.Record("/b", time.Unix(2, 0))

	snap := c.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "/a", snap[0].Path)
	assert.Equal(t, "/b", snap[1].Path)
	assert.Equal(t, "/c", snap[2].Path)
}

func TestPersistLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{}

	c := New()
	c.Record("/docs/a.txt", time.Unix(1700000000, 123456789))
	c.Record("/docs/b.txt", time.Unix(1700000001, 1))
	require.NoError(t, c.Persist(ctx, store))
	assert.Equal(t, 1, store.saves)

	loaded, err := Load(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, c.Len(), loaded.Len())
	for _, rec := range c.Snapshot() {
		got, ok := loaded.Lookup(rec.Path)
		require.True(t, ok, rec.Path)
		assert.True(t, got.Equal(rec.ModTime), rec.Path)
	}
}

func TestLoadEmptySource(t *testing.T) {
	c, err := Load(context.Background(), &memoryStore{})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestLoadErrorIsTyped(t *testing.T) {
	cause := errors.New("file is not a database")
	_, err := Load(context.Background(), &memoryStore{loadErr: cause})
	require.Error(t, err)

	var loadErr *types.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "memory", loadErr.Source)
	assert.ErrorIs(t, err, cause)
}

func TestPersistErrorIsTyped(t *testing.T) {
	cause := errors.New("disk full")
	c := New()
	c.Record("/a", time.Unix(1, 0))

	err := c.Persist(context.Background(), &memoryStore{saveErr: cause})
	var persistErr *types.PersistError
	require.ErrorAs(t, err, &persistErr)
	assert.ErrorIs(t, err, cause)
}

func TestConcurrentRecord(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Record("/shared", time.Unix(int64(i*100+j), 0))
				_ = c.Len()
			}
		}(i)
	}
	wg.Wait()

	got, ok := c.Lookup("/shared")
	require.True(t, ok)
	assert.True(t, got.Equal(time.Unix(799, 0)), "the newest time wins regardless of order")
}
