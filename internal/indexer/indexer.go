package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/sids/internal/metrics"
	"github.com/dshills/sids/internal/storage"
	"github.com/dshills/sids/pkg/types"
)

const (
	// DefaultQueueCapacity bounds the job queue
	DefaultQueueCapacity = 1024
	// DefaultCommitInterval is how often pending documents are committed
	DefaultCommitInterval = 5 * time.Second
	// DefaultMaxBatchDocs forces an early commit once a batch is this large
	DefaultMaxBatchDocs = 1000
)

// ErrAlreadySpawned is returned by a second SpawnWorkers call
var ErrAlreadySpawned = errors.New("workers already spawned")

// Extractor turns a file into a document
type Extractor interface {
	Extract(ctx context.Context, file types.FileDescriptor) (*types.Document, error)
}

// Batch is an open group of writes that becomes visible on Commit
type Batch interface {
	Put(ctx context.Context, doc *types.Document) error
	Len() int
	Commit() error
	Rollback() error
}

// DocumentWriter opens write batches on the index
type DocumentWriter interface {
	BeginBatch(ctx context.Context) (Batch, error)
}

// StorageWriter adapts a storage index to DocumentWriter
func StorageWriter(ix *storage.Index) DocumentWriter {
	return storageWriter{ix: ix}
}

type storageWriter struct {
	ix *storage.Index
}

func (w storageWriter) BeginBatch(ctx context.Context) (Batch, error) {
	b, err := w.ix.BeginBatch(ctx)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Config contains configuration for the indexer
type Config struct {
	Workers        int           // Number of extraction workers (default: runtime.NumCPU())
	QueueCapacity  int           // Jobs buffered before AddJob blocks (default: 1024)
	CommitInterval time.Duration // Time between commits (default: 5s)
	MaxBatchDocs   int           // Commit early once a batch holds this many documents (default: 1000)
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.CommitInterval <= 0 {
		c.CommitInterval = DefaultCommitInterval
	}
	if c.MaxBatchDocs <= 0 {
		c.MaxBatchDocs = DefaultMaxBatchDocs
	}
	return c
}

// CommitInfo describes one successful commit
type CommitInfo struct {
	Documents  int
	Generation uint64
	Duration   time.Duration
	Reason     string // "interval", "batch_full", "close"
}

// Statistics contains counters about the indexer.
// After Close: Enqueued == Committed + ExtractionFailed + Dropped.
type Statistics struct {
	Enqueued         uint64
	Extracted        uint64
	ExtractionFailed uint64
	Committed        uint64
	Dropped          uint64 // lost to a writer failure
	Commits          uint64
	Pending          int // documents in the open batch
	QueueDepth       int
	LastCommit       time.Time
}

// Indexer owns the job queue, the extraction workers and the single
// writer goroutine that batches and commits documents.
type Indexer struct {
	cfg       Config
	writer    DocumentWriter
	extractor Extractor
	logger    *slog.Logger

	jobs    chan types.IndexRequest
	docs    chan *types.Document
	closing chan struct{}
	failed  chan struct{}

	// mu orders AddJob against Close so jobs is never sent on after close
	mu       sync.RWMutex
	closed   bool
	spawned  bool
	onCommit func(CommitInfo)

	failOnce sync.Once
	errMu    sync.Mutex
	fatalErr error

	closeOnce  sync.Once
	closeErr   error
	writerDone chan struct{}

	generation       atomic.Uint64
	enqueued         atomic.Uint64
	extracted        atomic.Uint64
	extractionFailed atomic.Uint64
	committed        atomic.Uint64
	dropped          atomic.Uint64
	commits          atomic.Uint64
	pending          atomic.Int64
	lastCommit       atomic.Int64
}

// New creates an indexer. Workers are not started until SpawnWorkers.
func New(cfg Config, writer DocumentWriter, extractor Extractor, logger *slog.Logger) *Indexer {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		cfg:        cfg,
		writer:     writer,
		extractor:  extractor,
		logger:     logger.With("component", "indexer"),
		jobs:       make(chan types.IndexRequest, cfg.QueueCapacity),
		docs:       make(chan *types.Document, cfg.Workers),
		closing:    make(chan struct{}),
		failed:     make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

// OnCommit registers fn to run on the writer goroutine after every
// successful commit. It must be called before SpawnWorkers.
func (idx *Indexer) OnCommit(fn func(CommitInfo)) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.onCommit = fn
}

// SpawnWorkers starts the extraction workers and the writer goroutine
func (idx *Indexer) SpawnWorkers() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return types.ErrIndexerClosed
	}
	if idx.spawned {
		return ErrAlreadySpawned
	}
	idx.spawned = true

	var g errgroup.Group
	for i := 0; i < idx.cfg.Workers; i++ {
		g.Go(func() error {
			metrics.IndexerWorkersActive.Inc()
			defer metrics.IndexerWorkersActive.Dec()
			idx.work()
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(idx.docs)
	}()
	go idx.writeLoop(idx.onCommit)

	idx.logger.Debug("workers spawned",
		"workers", idx.cfg.Workers,
		"queue_capacity", idx.cfg.QueueCapacity,
		"commit_interval", idx.cfg.CommitInterval)
	return nil
}

// AddJob enqueues a request. It blocks while the queue is full, and
// returns the writer error once the indexer has failed, or
// ErrIndexerClosed once Close has started.
func (idx *Indexer) AddJob(ctx context.Context, req types.IndexRequest) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return types.ErrIndexerClosed
	}
	if err := idx.Err(); err != nil {
		return err
	}

	select {
	case idx.jobs <- req:
		idx.enqueued.Add(1)
		metrics.IndexerJobsEnqueued.Inc()
		return nil
	case <-idx.failed:
		return idx.Err()
	case <-idx.closing:
		return types.ErrIndexerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs, waits for queued jobs to be extracted and
// written, and performs a final commit. It returns the writer error, if
// any. Close is idempotent.
func (idx *Indexer) Close() error {
	idx.closeOnce.Do(func() {
		close(idx.closing)

		idx.mu.Lock()
		idx.closed = true
		spawned := idx.spawned
		close(idx.jobs)
		idx.mu.Unlock()

		if !spawned {
			for range idx.jobs {
				idx.dropped.Add(1)
			}
			idx.closeErr = idx.Err()
			return
		}

		<-idx.writerDone
		idx.closeErr = idx.Err()

		stats := idx.Stats()
		idx.logger.Info("indexer closed",
			"enqueued", stats.Enqueued,
			"committed", stats.Committed,
			"extraction_failed", stats.ExtractionFailed,
			"dropped", stats.Dropped,
			"commits", stats.Commits)
	})
	return idx.closeErr
}

// Err returns the fatal writer error, if one occurred
func (idx *Indexer) Err() error {
	idx.errMu.Lock()
	defer idx.errMu.Unlock()
	return idx.fatalErr
}

// Generation increases by one after every successful commit
func (idx *Indexer) Generation() uint64 {
	return idx.generation.Load()
}

// Stats returns a snapshot of the indexer counters
func (idx *Indexer) Stats() Statistics {
	s := Statistics{
		Enqueued:         idx.enqueued.Load(),
		Extracted:        idx.extracted.Load(),
		ExtractionFailed: idx.extractionFailed.Load(),
		Committed:        idx.committed.Load(),
		Dropped:          idx.dropped.Load(),
		Commits:          idx.commits.Load(),
		Pending:          int(idx.pending.Load()),
		QueueDepth:       len(idx.jobs),
	}
	if ns := idx.lastCommit.Load(); ns > 0 {
		s.LastCommit = time.Unix(0, ns)
	}
	return s
}

// work extracts queued jobs until the queue is closed
func (idx *Indexer) work() {
	ctx := context.Background()
	for req := range idx.jobs {
		metrics.IndexerQueueDepth.Set(float64(len(idx.jobs)))

		select {
		case <-idx.failed:
			idx.dropped.Add(1)
			continue
		default:
		}

		doc, err := idx.extractor.Extract(ctx, req.File)
		if err == nil {
			err = doc.Validate()
		}
		if err != nil {
			idx.extractionFailed.Add(1)
			metrics.IndexerExtractionFailures.Inc()
			idx.logger.Warn("extraction failed", "path", req.File.Path, "error", err)
			continue
		}

		idx.extracted.Add(1)
		idx.docs <- doc
	}
}

// writeLoop is the only goroutine that touches the open batch
func (idx *Indexer) writeLoop(onCommit func(CommitInfo)) {
	defer close(idx.writerDone)

	ctx := context.Background()
	ticker := time.NewTicker(idx.cfg.CommitInterval)
	defer ticker.Stop()

	var batch Batch
	pending := 0

	setPending := func(n int) {
		pending = n
		idx.pending.Store(int64(n))
	}

	abandon := func(err error) {
		if batch != nil {
			_ = batch.Rollback()
			batch = nil
		}
		idx.dropped.Add(uint64(pending))
		setPending(0)
		idx.fail(err)
	}

	commit := func(reason string) {
		if batch == nil {
			return
		}
		start := time.Now()
		if err := batch.Commit(); err != nil {
			metrics.IndexerCommitsTotal.WithLabelValues("error").Inc()
			batch = nil
			idx.dropped.Add(uint64(pending))
			setPending(0)
			idx.fail(&types.WriterError{Op: "commit", Err: err})
			return
		}
		elapsed := time.Since(start)
		batch = nil

		n := pending
		setPending(0)
		idx.committed.Add(uint64(n))
		idx.commits.Add(1)
		idx.lastCommit.Store(time.Now().UnixNano())
		gen := idx.generation.Add(1)

		metrics.IndexerCommitsTotal.WithLabelValues("success").Inc()
		metrics.IndexerCommitDuration.Observe(elapsed.Seconds())
		idx.logger.Debug("committed batch", "documents", n, "generation", gen, "reason", reason, "duration", elapsed)

		if onCommit != nil {
			onCommit(CommitInfo{Documents: n, Generation: gen, Duration: elapsed, Reason: reason})
		}
	}

	for {
		select {
		case doc, ok := <-idx.docs:
			if !ok {
				commit("close")
				return
			}
			if idx.Err() != nil {
				idx.dropped.Add(1)
				continue
			}

			if batch == nil {
				b, err := idx.writer.BeginBatch(ctx)
				if err != nil {
					idx.dropped.Add(1)
					abandon(&types.WriterError{Op: "begin", Err: err})
					continue
				}
				batch = b
			}

			if err := batch.Put(ctx, doc); err != nil {
				idx.dropped.Add(1)
				abandon(&types.WriterError{Op: "put", Err: fmt.Errorf("%s: %w", doc.Path, err)})
				continue
			}
			setPending(pending + 1)
			metrics.IndexerDocumentsWritten.Inc()

			if pending >= idx.cfg.MaxBatchDocs {
				commit("batch_full")
			}

		case <-ticker.C:
			if pending > 0 {
				commit("interval")
			}
		}
	}
}

// fail records the first fatal error and releases blocked producers
func (idx *Indexer) fail(err error) {
	idx.failOnce.Do(func() {
		idx.errMu.Lock()
		idx.fatalErr = err
		idx.errMu.Unlock()
		close(idx.failed)
		idx.logger.Error("index writer failed", "error", err)
	})
}
