package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dshills/sids/internal/changecache"
	"github.com/dshills/sids/internal/collector"
	"github.com/dshills/sids/internal/extractor"
	"github.com/dshills/sids/internal/indexer"
	"github.com/dshills/sids/internal/metrics"
	"github.com/dshills/sids/internal/searcher"
	"github.com/dshills/sids/internal/storage"
	"github.com/dshills/sids/pkg/types"
)

// Options wires a full run
type Options struct {
	IndexPath string
	CachePath string

	Collector collector.Options
	Indexer   indexer.Config
	Extractor extractor.Options
	Searcher  searcher.Options

	// MetricsInterval enables the gauge collector when positive
	MetricsInterval time.Duration
	// Running is stopped when the front end returns; a fresh flag is used when nil
	Running *RunningFlag
	Logger  *slog.Logger
}

// Env is what the front end gets while indexing runs in the background
type Env struct {
	Searcher *searcher.Searcher
	Progress *Progress
	Running  *RunningFlag
	Indexer  *indexer.Indexer
	// Done is closed once indexing has finished and the final commit is visible
	Done <-chan struct{}
}

// FrontEnd serves queries until it returns. Returning stops indexing.
type FrontEnd func(ctx context.Context, env *Env) error

// Summary reports a completed run
type Summary struct {
	Result       Result
	Indexer      indexer.Statistics
	Collector    collector.Stats
	FilesIndexed uint64
	CacheEntries int
	// Checkpoint is the WAL checkpoint taken after the final commit
	Checkpoint storage.CheckpointResult
}

// Run loads the change cache, indexes changed files in the background and
// hands a searcher to front. When front is nil Run indexes to completion.
// A corrupt cache store aborts before anything is indexed. A cache that
// cannot be written back is logged and the run still succeeds.
func Run(ctx context.Context, opts Options, front FrontEnd) (*Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	running := opts.Running
	if running == nil {
		running = NewRunningFlag()
	}
	stopOnCancel := context.AfterFunc(ctx, func() { running.Stop() })
	defer stopOnCancel()

	store := storage.OpenChangeStore(opts.CachePath)
	cache, err := changecache.Load(ctx, store)
	if err != nil {
		return nil, err
	}
	logger.Info("change cache loaded", "entries", cache.Len(), "path", opts.CachePath)

	col, err := collector.New(opts.Collector, cache, running, logger.With("component", "collector"))
	if err != nil {
		return nil, err
	}

	ix, err := storage.OpenIndex(opts.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer func() { _ = ix.Close() }()

	idx := indexer.New(opts.Indexer, indexer.StorageWriter(ix), extractor.NewRegistry(opts.Extractor), logger)

	reader, err := storage.OpenReader(opts.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open index reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	searchOpts := opts.Searcher
	searchOpts.Generation = idx.Generation
	if searchOpts.Logger == nil {
		searchOpts.Logger = logger
	}
	srch, err := searcher.New(ctx, reader, searchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open searcher: %w", err)
	}
	defer func() { _ = srch.Close() }()

	// An idle front end must not pin a pre-commit snapshot for the whole run
	commits := make(chan struct{}, 1)
	idx.OnCommit(func(indexer.CommitInfo) {
		select {
		case commits <- struct{}{}:
		default:
		}
	})

	if err := idx.SpawnWorkers(); err != nil {
		return nil, fmt.Errorf("failed to spawn workers: %w", err)
	}
	// Joins the workers on early returns; a no-op once the loop closed it
	defer func() { _ = idx.Close() }()

	stopRelease := releaseOnCommit(srch, commits)
	defer stopRelease()

	progress := NewProgress(uint64(cache.Len()))

	if opts.MetricsInterval > 0 {
		mc := metrics.NewCollector(&statsProvider{
			progress: progress,
			running:  running,
			indexer:  idx,
			searcher: srch,
		}, opts.MetricsInterval, logger)
		mc.Start()
		defer mc.Stop()
	}

	p := &Pipeline{
		Source:   col.All(),
		Indexer:  idx,
		Progress: progress,
		Running:  running,
		Logger:   logger,
	}
	handle := p.Deploy(ctx)

	var frontErr error
	if front != nil {
		frontErr = front(ctx, &Env{
			Searcher: srch,
			Progress: progress,
			Running:  running,
			Indexer:  idx,
			Done:     handle.Done(),
		})
		if running.Stop() {
			logger.Debug("front end returned, stopping indexer")
		}
	}

	result, runErr := handle.Wait()

	summary := &Summary{
		Result:       result,
		Indexer:      idx.Stats(),
		Collector:    col.Stats(),
		FilesIndexed: progress.Load(),
		CacheEntries: cache.Len(),
	}

	if runErr != nil {
		// Records for files that never reached a commit must not be saved
		return summary, runErr
	}

	srch.Release()
	if cp, err := ix.Checkpoint(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("wal checkpoint failed", "error", err)
	} else {
		summary.Checkpoint = cp
		logger.Debug("wal checkpointed", "frames", cp.Frames, "checkpointed", cp.Checkpointed, "busy", cp.Busy)
	}

	if err := cache.Persist(context.WithoutCancel(ctx), store); err != nil {
		var persistErr *types.PersistError
		if !errors.As(err, &persistErr) {
			return summary, err
		}
		logger.Warn("change cache not saved", "error", err)
	}

	if frontErr != nil {
		return summary, frontErr
	}
	return summary, nil
}

// releaseOnCommit drops the searcher's stale snapshot after each commit.
// The returned function stops the loop and waits for it.
func releaseOnCommit(srch *searcher.Searcher, commits <-chan struct{}) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-commits:
				srch.Release()
			case <-stop:
				return
			}
		}
	}()
	return func() {
		close(stop)
		<-done
	}
}

// statsProvider feeds the metrics collector
type statsProvider struct {
	progress *Progress
	running  *RunningFlag
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
}

func (s *statsProvider) MetricStats(ctx context.Context) (metrics.Stats, error) {
	stats := metrics.Stats{
		FilesIndexed: s.progress.Load(),
		Running:      s.running.Running(),
		QueueDepth:   s.indexer.Stats().QueueDepth,
	}
	indexStats, err := s.searcher.Stats(ctx)
	if err != nil {
		return stats, err
	}
	stats.IndexDocuments = indexStats.DocumentCount
	stats.IndexSizeBytes = indexStats.DatabaseBytes
	return stats, nil
}
