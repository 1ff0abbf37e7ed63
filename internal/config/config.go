// Package config loads the read-only settings a run is built from: defaults,
// then an optional YAML file, then .env files, then SIDS_* variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/sids/internal/collector"
	"github.com/dshills/sids/internal/extractor"
	"github.com/dshills/sids/internal/indexer"
	"github.com/dshills/sids/internal/pipeline"
	"github.com/dshills/sids/internal/searcher"
)

const (
	// EnvPrefix prefixes every environment override
	EnvPrefix = "SIDS_"
	// DefaultDataDir holds the index and the change cache
	DefaultDataDir = "~/.sids"

	indexFile = "index.db"
	cacheFile = "cache.db"
)

// ErrNoRoots is returned when indexing is requested without any root
var ErrNoRoots = errors.New("no roots configured")

// Config is the complete run configuration
type Config struct {
	Roots     []string        `yaml:"roots"`
	DataDir   string          `yaml:"data_dir"`
	Collector CollectorConfig `yaml:"collector"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Search    SearchConfig    `yaml:"search"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// CollectorConfig controls discovery
type CollectorConfig struct {
	Include        []string `yaml:"include"`
	Exclude        []string `yaml:"exclude"`
	SkipHidden     bool     `yaml:"skip_hidden"`
	FollowSymlinks bool     `yaml:"follow_symlinks"`
	MaxFileSize    int64    `yaml:"max_file_size"`
	StrictRoots    bool     `yaml:"strict_roots"`
}

// IndexerConfig controls the worker pool and commit policy
type IndexerConfig struct {
	Workers        int           `yaml:"workers"`
	QueueCapacity  int           `yaml:"queue_capacity"`
	CommitInterval time.Duration `yaml:"commit_interval"`
	MaxBatchDocs   int           `yaml:"max_batch_docs"`
}

// ExtractorConfig controls content extraction
type ExtractorConfig struct {
	MaxBodyBytes   int      `yaml:"max_body_bytes"`
	TextExtensions []string `yaml:"text_extensions"`
}

// SearchConfig controls the searcher
type SearchConfig struct {
	CacheSize    int `yaml:"cache_size"`
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// LogConfig controls logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr     string        `yaml:"addr"`
	Interval time.Duration `yaml:"interval"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir,
		Collector: CollectorConfig{
			Exclude:        []string{".git/", "node_modules/", "vendor/"},
			SkipHidden:     true,
			FollowSymlinks: true,
		},
		Indexer: IndexerConfig{
			Workers:        runtime.NumCPU(),
			QueueCapacity:  indexer.DefaultQueueCapacity,
			CommitInterval: indexer.DefaultCommitInterval,
			MaxBatchDocs:   indexer.DefaultMaxBatchDocs,
		},
		Extractor: ExtractorConfig{
			MaxBodyBytes: extractor.DefaultMaxBodyBytes,
		},
		Search: SearchConfig{
			CacheSize:    searcher.DefaultCacheSize,
			DefaultLimit: searcher.DefaultLimit,
			MaxLimit:     searcher.MaxLimit,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Interval: 15 * time.Second,
		},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply; a named file that does not exist is
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := LoadEnvFiles(".env.local", ".env"); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFiles loads variables from the given .env files in order. Missing
// files are skipped and variables already set are kept.
func LoadEnvFiles(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := lookupEnv("ROOTS"); ok {
		c.Roots = splitList(v)
	}
	if v, ok := lookupEnv("DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := lookupEnv("INCLUDE"); ok {
		c.Collector.Include = splitList(v)
	}
	if v, ok := lookupEnv("EXCLUDE"); ok {
		c.Collector.Exclude = splitList(v)
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookupEnv("LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	if v, ok := lookupEnv("LOG_FILE"); ok {
		c.Log.File = v
	}
	if v, ok := lookupEnv("METRICS_ADDR"); ok {
		c.Metrics.Addr = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"WORKERS", &c.Indexer.Workers},
		{"QUEUE_CAPACITY", &c.Indexer.QueueCapacity},
		{"MAX_BATCH_DOCS", &c.Indexer.MaxBatchDocs},
		{"MAX_BODY_BYTES", &c.Extractor.MaxBodyBytes},
		{"CACHE_SIZE", &c.Search.CacheSize},
	}
	for _, e := range ints {
		v, ok := lookupEnv(e.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, e.key, err)
		}
		*e.dst = n
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"SKIP_HIDDEN", &c.Collector.SkipHidden},
		{"FOLLOW_SYMLINKS", &c.Collector.FollowSymlinks},
		{"STRICT_ROOTS", &c.Collector.StrictRoots},
	}
	for _, e := range bools {
		v, ok := lookupEnv(e.key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, e.key, err)
		}
		*e.dst = b
	}

	if v, ok := lookupEnv("MAX_FILE_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sMAX_FILE_SIZE: %w", EnvPrefix, err)
		}
		c.Collector.MaxFileSize = n
	}
	if v, ok := lookupEnv("COMMIT_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sCOMMIT_INTERVAL: %w", EnvPrefix, err)
		}
		c.Indexer.CommitInterval = d
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// splitList splits a comma separated list and drops empty entries
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) expandPaths() error {
	var err error
	if c.DataDir, err = expandHome(c.DataDir); err != nil {
		return err
	}
	if c.Log.File, err = expandHome(c.Log.File); err != nil {
		return err
	}
	for i, root := range c.Roots {
		if c.Roots[i], err = expandHome(root); err != nil {
			return err
		}
	}
	return nil
}

// expandHome replaces a leading ~ with the user's home directory
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Validate checks that every value is usable
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.Indexer.Workers < 1 {
		errs = append(errs, fmt.Errorf("indexer.workers must be >= 1, got %d", c.Indexer.Workers))
	}
	if c.Indexer.QueueCapacity < 1 {
		errs = append(errs, fmt.Errorf("indexer.queue_capacity must be >= 1, got %d", c.Indexer.QueueCapacity))
	}
	if c.Indexer.CommitInterval <= 0 {
		errs = append(errs, fmt.Errorf("indexer.commit_interval must be positive, got %s", c.Indexer.CommitInterval))
	}
	if c.Indexer.MaxBatchDocs < 1 {
		errs = append(errs, fmt.Errorf("indexer.max_batch_docs must be >= 1, got %d", c.Indexer.MaxBatchDocs))
	}
	if c.Extractor.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("extractor.max_body_bytes must be >= 0, got %d", c.Extractor.MaxBodyBytes))
	}
	if c.Collector.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("collector.max_file_size must be >= 0, got %d", c.Collector.MaxFileSize))
	}
	if c.Search.MaxLimit < 1 || c.Search.DefaultLimit < 1 || c.Search.DefaultLimit > c.Search.MaxLimit {
		errs = append(errs, fmt.Errorf("search limits must satisfy 1 <= default_limit (%d) <= max_limit (%d)",
			c.Search.DefaultLimit, c.Search.MaxLimit))
	}
	if c.Metrics.Addr != "" && c.Metrics.Interval <= 0 {
		errs = append(errs, fmt.Errorf("metrics.interval must be positive, got %s", c.Metrics.Interval))
	}
	return errors.Join(errs...)
}

// RequireRoots reports ErrNoRoots when there is nothing to index
func (c *Config) RequireRoots() error {
	if len(c.Roots) == 0 {
		return ErrNoRoots
	}
	return nil
}

// IndexPath is the index database location
func (c *Config) IndexPath() string {
	return filepath.Join(c.DataDir, indexFile)
}

// CachePath is the change cache location
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, cacheFile)
}

// SearcherOptions converts the search section
func (c *Config) SearcherOptions(logger *slog.Logger) searcher.Options {
	return searcher.Options{
		CacheSize:    c.Search.CacheSize,
		DefaultLimit: c.Search.DefaultLimit,
		MaxLimit:     c.Search.MaxLimit,
		Logger:       logger,
	}
}

// PipelineOptions converts the configuration into a run description
func (c *Config) PipelineOptions(logger *slog.Logger) pipeline.Options {
	opts := pipeline.Options{
		IndexPath: c.IndexPath(),
		CachePath: c.CachePath(),
		Collector: collector.Options{
			Roots:          c.Roots,
			Include:        c.Collector.Include,
			Exclude:        c.Collector.Exclude,
			SkipHidden:     c.Collector.SkipHidden,
			FollowSymlinks: c.Collector.FollowSymlinks,
			MaxFileSize:    c.Collector.MaxFileSize,
			StrictRoots:    c.Collector.StrictRoots,
		},
		Indexer: indexer.Config{
			Workers:        c.Indexer.Workers,
			QueueCapacity:  c.Indexer.QueueCapacity,
			CommitInterval: c.Indexer.CommitInterval,
			MaxBatchDocs:   c.Indexer.MaxBatchDocs,
		},
		Extractor: extractor.Options{
			MaxBodyBytes:   c.Extractor.MaxBodyBytes,
			TextExtensions: c.Extractor.TextExtensions,
		},
		Searcher: c.SearcherOptions(logger),
		Logger:   logger,
	}
	if c.Metrics.Addr != "" {
		opts.MetricsInterval = c.Metrics.Interval
	}
	return opts
}
