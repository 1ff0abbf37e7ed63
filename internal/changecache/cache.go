package changecache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dshills/sids/pkg/types"
)

// Record is the persisted form of one cache entry
type Record struct {
	Path    string
	ModTime time.Time
}

// Source supplies previously persisted records
type Source interface {
	LoadChangeRecords(ctx context.Context) ([]Record, error)
}

// Sink stores a full set of records, replacing what was there
type Sink interface {
	SaveChangeRecords(ctx context.Context, records []Record) error
}

// namer is implemented by stores that can identify themselves in errors
type namer interface {
	Name() string
}

// Cache maps file paths to the newest modification time seen for them.
// Entries only move forward in time. It is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// New returns an empty cache
func New() *Cache {
	return &Cache{entries: make(map[string]time.Time)}
}

// Load builds a cache from src. A source with nothing stored yields an
// empty cache; a source that cannot be read yields *types.LoadError.
func Load(ctx context.Context, src Source) (*Cache, error) {
	records, err := src.LoadChangeRecords(ctx)
	if err != nil {
		return nil, &types.LoadError{Source: nameOf(src), Err: err}
	}

	c := New()
	for _, rec := range records {
		c.Record(rec.Path, rec.ModTime)
	}
	return c, nil
}

// Lookup returns the recorded time for path
func (c *Cache) Lookup(path string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.entries[path]
	return t, ok
}

// Record stores t for path unless an equal or newer time is already
// recorded. It reports whether the stored value changed.
func (c *Cache) Record(path string, t time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.entries[path]; ok && !t.After(prev) {
		return false
	}
	c.entries[path] = t
	return true
}

// Len returns the number of tracked paths
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Snapshot returns every entry sorted by path
func (c *Cache) Snapshot() []Record {
	c.mu.RLock()
	records := make([]Record, 0, len(c.entries))
	for path, t := range c.entries {
		records = append(records, Record{Path: path, ModTime: t})
	}
	c.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].Path < records[j].Path
	})
	return records
}

// Persist writes the full cache to sink. Failures are *types.PersistError.
func (c *Cache) Persist(ctx context.Context, sink Sink) error {
	if err := sink.SaveChangeRecords(ctx, c.Snapshot()); err != nil {
		return &types.PersistError{Sink: nameOf(sink), Err: err}
	}
	return nil
}

func nameOf(v any) string {
	if n, ok := v.(namer); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", v)
}
