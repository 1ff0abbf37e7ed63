package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/sids/internal/indexer"
)

// isolate runs the test from an empty directory so no stray .env is read
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, runtime.NumCPU(), cfg.Indexer.Workers)
	assert.Equal(t, indexer.DefaultQueueCapacity, cfg.Indexer.QueueCapacity)
	assert.Equal(t, indexer.DefaultCommitInterval, cfg.Indexer.CommitInterval)
	assert.True(t, cfg.Collector.SkipHidden)
	assert.True(t, cfg.Collector.FollowSymlinks)
	assert.Empty(t, cfg.Roots)
	assert.NoError(t, cfg.Validate())
	assert.ErrorIs(t, cfg.RequireRoots(), ErrNoRoots)
}

func TestLoadWithoutFile(t *testing.T) {
	isolate(t)
	t.Setenv("HOME", "/home/tester")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/tester", ".sids"), cfg.DataDir)
	assert.Equal(t, filepath.Join("/home/tester", ".sids", "index.db"), cfg.IndexPath())
	assert.Equal(t, filepath.Join("/home/tester", ".sids", "cache.db"), cfg.CachePath())
}

func TestLoadYAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "sids.yaml")
	writeFile(t, path, `
roots:
  - /srv/docs
  - /srv/notes
data_dir: /var/lib/sids
collector:
  include: ["*.md", "*.pdf"]
  skip_hidden: false
  max_file_size: 1048576
indexer:
  workers: 3
  commit_interval: 2s
search:
  default_limit: 5
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/srv/docs", "/srv/notes"}, cfg.Roots)
	assert.Equal(t, "/var/lib/sids", cfg.DataDir)
	assert.Equal(t, []string{"*.md", "*.pdf"}, cfg.Collector.Include)
	assert.False(t, cfg.Collector.SkipHidden)
	assert.True(t, cfg.Collector.FollowSymlinks, "unset keys keep their defaults")
	assert.Equal(t, int64(1048576), cfg.Collector.MaxFileSize)
	assert.Equal(t, 3, cfg.Indexer.Workers)
	assert.Equal(t, 2*time.Second, cfg.Indexer.CommitInterval)
	assert.Equal(t, indexer.DefaultMaxBatchDocs, cfg.Indexer.MaxBatchDocs)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NoError(t, cfg.RequireRoots())
}

func TestLoadMissingFile(t *testing.T) {
	dir := isolate(t)
	_, err := Load(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "bad.yaml")
	writeFile(t, path, "roots: [unterminated\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("SIDS_ROOTS", "/a, /b,,")
	t.Setenv("SIDS_DATA_DIR", "/tmp/sids-data")
	t.Setenv("SIDS_WORKERS", "7")
	t.Setenv("SIDS_COMMIT_INTERVAL", "250ms")
	t.Setenv("SIDS_SKIP_HIDDEN", "false")
	t.Setenv("SIDS_MAX_FILE_SIZE", "42")
	t.Setenv("SIDS_METRICS_ADDR", ":9090")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"/a", "/b"}, cfg.Roots)
	assert.Equal(t, "/tmp/sids-data", cfg.DataDir)
	assert.Equal(t, 7, cfg.Indexer.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Indexer.CommitInterval)
	assert.False(t, cfg.Collector.SkipHidden)
	assert.Equal(t, int64(42), cfg.Collector.MaxFileSize)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "sids.yaml")
	writeFile(t, path, "indexer:\n  workers: 2\n")
	t.Setenv("SIDS_WORKERS", "9")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Indexer.Workers)
}

func TestInvalidEnvValue(t *testing.T) {
	isolate(t)
	t.Setenv("SIDS_WORKERS", "many")
	_, err := Load("")
	assert.ErrorContains(t, err, "SIDS_WORKERS")

	t.Setenv("SIDS_WORKERS", "")
	t.Setenv("SIDS_STRICT_ROOTS", "perhaps")
	_, err = Load("")
	assert.ErrorContains(t, err, "SIDS_STRICT_ROOTS")
}

func TestDotEnvFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, ".env"), "SIDS_LOG_LEVEL=warn\nSIDS_QUEUE_CAPACITY=16\n")
	t.Cleanup(func() {
		_ = os.Unsetenv("SIDS_LOG_LEVEL")
		_ = os.Unsetenv("SIDS_QUEUE_CAPACITY")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 16, cfg.Indexer.QueueCapacity)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no data dir", func(c *Config) { c.DataDir = "" }},
		{"zero workers", func(c *Config) { c.Indexer.Workers = 0 }},
		{"zero queue", func(c *Config) { c.Indexer.QueueCapacity = 0 }},
		{"zero interval", func(c *Config) { c.Indexer.CommitInterval = 0 }},
		{"zero batch", func(c *Config) { c.Indexer.MaxBatchDocs = 0 }},
		{"negative file size", func(c *Config) { c.Collector.MaxFileSize = -1 }},
		{"default over max", func(c *Config) { c.Search.DefaultLimit = c.Search.MaxLimit + 1 }},
		{"metrics without interval", func(c *Config) {
			c.Metrics.Addr = ":9090"
			c.Metrics.Interval = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPipelineOptions(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data"
	cfg.Roots = []string{"/docs"}
	cfg.Collector.Include = []string{"*.txt"}
	cfg.Indexer.Workers = 2

	opts := cfg.PipelineOptions(nil)
	assert.Equal(t, "/data/index.db", opts.IndexPath)
	assert.Equal(t, "/data/cache.db", opts.CachePath)
	assert.Equal(t, []string{"/docs"}, opts.Collector.Roots)
	assert.Equal(t, []string{"*.txt"}, opts.Collector.Include)
	assert.Equal(t, 2, opts.Indexer.Workers)
	assert.Zero(t, opts.MetricsInterval, "metrics stay off without an address")

	cfg.Metrics.Addr = ":9090"
	assert.Equal(t, cfg.Metrics.Interval, cfg.PipelineOptions(nil).MetricsInterval)
}
