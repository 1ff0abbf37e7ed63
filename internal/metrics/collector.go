package metrics

import (
	"context"
	"log/slog"
	"time"
)

// StatsProvider supplies point-in-time gauges
type StatsProvider interface {
	MetricStats(ctx context.Context) (Stats, error)
}

// Stats holds the gauge values refreshed by the collector
type Stats struct {
	FilesIndexed   uint64
	Running        bool
	IndexDocuments int64
	IndexSizeBytes int64
	QueueDepth     int
}

// Collector periodically copies stats into gauges
type Collector struct {
	provider StatsProvider
	interval time.Duration
	logger   *slog.Logger
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		provider: provider,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the loop and waits for it to exit
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.doneChan
}

func (c *Collector) collectLoop() {
	defer close(c.doneChan)

	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.provider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.interval)
	defer cancel()

	stats, err := c.provider.MetricStats(ctx)
	if err != nil {
		c.logger.Debug("metrics stats unavailable", "error", err)
		return
	}

	PipelineFilesIndexed.Set(float64(stats.FilesIndexed))
	if stats.Running {
		PipelineRunning.Set(1)
	} else {
		PipelineRunning.Set(0)
	}
	IndexDocuments.Set(float64(stats.IndexDocuments))
	IndexSizeBytes.Set(float64(stats.IndexSizeBytes))
	IndexerQueueDepth.Set(float64(stats.QueueDepth))
}
