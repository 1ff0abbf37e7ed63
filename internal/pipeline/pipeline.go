package pipeline

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/dshills/sids/pkg/types"
)

// JobQueue is the indexer surface the loop drives
type JobQueue interface {
	AddJob(ctx context.Context, req types.IndexRequest) error
	Close() error
}

// Pipeline moves collected files into the indexer until the source is
// exhausted, the running flag is cleared or ctx is done. Both stop
// conditions are checked between files only.
type Pipeline struct {
	Source   iter.Seq2[types.FileDescriptor, error]
	Indexer  JobQueue
	Progress *Progress
	Running  *RunningFlag
	Logger   *slog.Logger
}

// Result summarises one run of the loop
type Result struct {
	Enqueued        uint64
	CollectorErrors uint64
	Stopped         bool // the loop ended because the flag was cleared
	Duration        time.Duration
}

// Handle joins a deployed pipeline
type Handle struct {
	done   chan struct{}
	result Result
	err    error
}

// Deploy starts the loop on its own goroutine
func (p *Pipeline) Deploy(ctx context.Context) *Handle {
	h := &Handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.result, h.err = p.run(ctx)
	}()
	return h
}

// Done is closed once the loop has finished and the indexer is closed
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the loop has finished and the indexer is closed. The
// error is the indexer's fatal writer error, if any.
func (h *Handle) Wait() (Result, error) {
	<-h.done
	return h.result, h.err
}

func (p *Pipeline) run(ctx context.Context) (Result, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	progress := p.Progress
	if progress == nil {
		progress = NewProgress(0)
	}
	running := p.Running
	if running == nil {
		running = NewRunningFlag()
	}

	start := time.Now()
	var result Result
	var loopErr error

	// A yielded file is already recorded in the change cache, so it must
	// reach the queue. Stopping happens between files, never inside AddJob.
	addCtx := context.WithoutCancel(ctx)

	for file, err := range p.Source {
		if err != nil {
			result.CollectorErrors++
			logger.Warn("skipping file", "error", err)
		} else {
			if addErr := p.Indexer.AddJob(addCtx, types.IndexRequest{File: file}); addErr != nil {
				loopErr = addErr
				break
			}
			result.Enqueued++
			progress.Add()
		}

		if !running.Running() || ctx.Err() != nil {
			result.Stopped = true
			break
		}
	}

	closeErr := p.Indexer.Close()
	result.Duration = time.Since(start)

	if loopErr == nil {
		loopErr = closeErr
	}
	if loopErr != nil {
		return result, fmt.Errorf("indexing stopped: %w", loopErr)
	}

	logger.Info("indexing loop finished",
		"enqueued", result.Enqueued,
		"collector_errors", result.CollectorErrors,
		"stopped", result.Stopped,
		"duration", result.Duration)
	return result, nil
}
