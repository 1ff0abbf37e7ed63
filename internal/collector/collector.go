package collector

import (
	"errors"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/dshills/sids/internal/changecache"
	"github.com/dshills/sids/internal/metrics"
	"github.com/dshills/sids/pkg/types"
)

// Running reports whether the caller still wants more items
type Running interface {
	Running() bool
}

// Options configures a walk
type Options struct {
	Roots          []string
	Include        []string // glob or "*.ext" patterns; empty means every file
	Exclude        []string // gitignore syntax
	SkipHidden     bool     // skip dot files and dot directories below a root
	FollowSymlinks bool     // index files reached through symlinks; directory links are never followed
	MaxFileSize    int64    // 0 means unlimited
	StrictRoots    bool     // stop the whole walk after a missing root
}

// Stats counts what a walk has seen so far
type Stats struct {
	Discovered uint64 // yielded for indexing
	Unchanged  uint64 // skipped by the change cache
	Filtered   uint64 // skipped by include, exclude, hidden, size or type rules
	Errors     uint64 // per-path faults yielded
}

// Collector lazily walks its roots and yields files that changed since the
// change cache last recorded them. It is single pass.
type Collector struct {
	opts    Options
	filter  *Filter
	cache   *changecache.Cache
	running Running
	logger  *slog.Logger

	consumed atomic.Bool

	discovered atomic.Uint64
	unchanged  atomic.Uint64
	filtered   atomic.Uint64
	errors     atomic.Uint64
}

// New validates the options and returns a collector. A bad include pattern
// is reported as *types.CollectorError before any walking starts.
func New(opts Options, cache *changecache.Cache, running Running, logger *slog.Logger) (*Collector, error) {
	filter, err := NewFilter(opts.Include, opts.Exclude)
	if err != nil {
		return nil, &types.CollectorError{Path: "include", Err: err}
	}
	if cache == nil {
		cache = changecache.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		opts:    opts,
		filter:  filter,
		cache:   cache,
		running: running,
		logger:  logger,
	}, nil
}

// Stats returns the counters of the walk so far
func (c *Collector) Stats() Stats {
	return Stats{
		Discovered: c.discovered.Load(),
		Unchanged:  c.unchanged.Load(),
		Filtered:   c.filtered.Load(),
		Errors:     c.errors.Load(),
	}
}

// All returns the sequence of changed files. Per-path faults are yielded as
// *types.CollectorError and the walk continues. The cache is updated for a
// file before it is yielded. Iterating a second time yields a single
// ErrCollectorConsumed.
func (c *Collector) All() iter.Seq2[types.FileDescriptor, error] {
	return func(yield func(types.FileDescriptor, error) bool) {
		if !c.consumed.CompareAndSwap(false, true) {
			yield(types.FileDescriptor{}, types.ErrCollectorConsumed)
			return
		}

		for _, root := range c.opts.Roots {
			if !c.isRunning() {
				return
			}
			if !c.walkRoot(root, yield) {
				return
			}
		}
	}
}

func (c *Collector) isRunning() bool {
	return c.running == nil || c.running.Running()
}

// walkRoot walks one root and reports whether the walk should go on
func (c *Collector) walkRoot(root string, yield func(types.FileDescriptor, error) bool) bool {
	abs, err := filepath.Abs(root)
	if err != nil {
		return c.rootFault(root, err, yield)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return c.rootFault(abs, err, yield)
	}

	if !info.IsDir() {
		return c.visitFile(abs, filepath.Base(abs), yield)
	}

	// WalkDir does not descend through a symlinked root
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	keepGoing := true
	stop := func() error {
		keepGoing = false
		return filepath.SkipAll
	}

	_ = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if !c.isRunning() {
			return stop()
		}

		if walkErr != nil {
			if !c.fault(path, "dir", walkErr, yield) {
				return stop()
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(abs, path)
		if err != nil {
			rel = path
		}

		if d.IsDir() {
			if path != abs && c.skipDir(rel, d.Name()) {
				c.logger.Debug("skipping directory", "path", path)
				return filepath.SkipDir
			}
			return nil
		}

		if c.opts.SkipHidden && isHidden(d.Name()) {
			c.filtered.Add(1)
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 && !c.opts.FollowSymlinks {
			c.filtered.Add(1)
			return nil
		}

		if !c.visitFile(path, rel, yield) {
			return stop()
		}
		return nil
	})

	return keepGoing
}

func (c *Collector) skipDir(rel, name string) bool {
	if c.opts.SkipHidden && isHidden(name) {
		return true
	}
	return c.filter.ShouldExclude(rel, true)
}

// visitFile decides whether one file is yielded and reports whether the
// consumer wants more
func (c *Collector) visitFile(path, rel string, yield func(types.FileDescriptor, error) bool) bool {
	if c.filter.ShouldExclude(rel, false) || !c.filter.ShouldInclude(rel) {
		c.filtered.Add(1)
		return true
	}

	info, err := os.Stat(path)
	if err != nil {
		return c.fault(path, "stat", err, yield)
	}
	if !info.Mode().IsRegular() {
		c.filtered.Add(1)
		return true
	}
	if c.opts.MaxFileSize > 0 && info.Size() > c.opts.MaxFileSize {
		c.logger.Debug("skipping large file", "path", path, "size", info.Size())
		c.filtered.Add(1)
		return true
	}

	file := types.NewFileDescriptor(path, info.ModTime(), info.Size())
	if cached, ok := c.cache.Lookup(file.Path); ok && !cached.Before(file.ModTime) {
		c.unchanged.Add(1)
		metrics.CollectorFilesUnchanged.Inc()
		return true
	}

	f, err := os.Open(path)
	if err != nil {
		return c.fault(path, "open", err, yield)
	}
	_ = f.Close()

	c.cache.Record(file.Path, file.ModTime)
	c.discovered.Add(1)
	metrics.CollectorFilesDiscovered.Inc()
	return yield(file, nil)
}

// rootFault reports a root that cannot be walked
func (c *Collector) rootFault(root string, err error, yield func(types.FileDescriptor, error) bool) bool {
	if !c.fault(root, "root", err, yield) {
		return false
	}
	if c.opts.StrictRoots {
		c.logger.Warn("aborting walk after missing root", "root", root)
		return false
	}
	return true
}

func (c *Collector) fault(path, kind string, err error, yield func(types.FileDescriptor, error) bool) bool {
	c.errors.Add(1)
	metrics.CollectorErrors.WithLabelValues(kind).Inc()

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		err = pathErr.Err
	}
	return yield(types.FileDescriptor{}, &types.CollectorError{Path: path, Err: err})
}

func isHidden(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".")
}
