package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/dshills/sids/internal/changecache"
	"github.com/dshills/sids/internal/config"
	"github.com/dshills/sids/internal/logging"
	"github.com/dshills/sids/internal/mcp"
	"github.com/dshills/sids/internal/metrics"
	"github.com/dshills/sids/internal/pipeline"
	"github.com/dshills/sids/internal/searcher"
	"github.com/dshills/sids/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// CLI defines the command-line interface.
type CLI struct {
	Index   IndexCmd   `cmd:"" help:"Index changed files under the configured roots and exit."`
	Serve   ServeCmd   `cmd:"" help:"Index in the background and serve MCP on stdio."`
	Search  SearchCmd  `cmd:"" help:"Query the last committed index."`
	Status  StatusCmd  `cmd:"" help:"Show index and change cache statistics."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	DataDir   string `help:"Directory holding the index and change cache (overrides config)." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFormat string `help:"Log format (text or json)."`
	LogFile   string `help:"Log file path (empty = stderr)." type:"path"`
}

// app is what every command runs with
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Oops: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("sids"),
		kong.Description("Incremental local document search"),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	if kctx.Command() == "version" {
		return kctx.Run(&app{stdout: stdout})
	}

	a, cleanup, err := newApp(&cli, stdout, stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	kctx.BindTo(ctx, (*context.Context)(nil))
	return kctx.Run(a)
}

// newApp loads configuration and sets up logging. Logs never go to
// stdout, which serve reserves for the protocol.
func newApp(cli *CLI, stdout, stderr io.Writer) (*app, func(), error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, nil, err
	}
	if cli.DataDir != "" {
		cfg.DataDir = cli.DataDir
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Log.Format = cli.LogFormat
	}
	if cli.LogFile != "" {
		cfg.Log.File = cli.LogFile
	}

	out := stderr
	cleanup := func() {}
	if cfg.Log.File != "" {
		file, closeFile, err := logging.OpenLogFile(cfg.Log.File)
		if err != nil {
			return nil, nil, err
		}
		out = file
		cleanup = closeFile
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: out})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	slog.SetDefault(logger)
	logger.Debug("effective configuration", "config", fmt.Sprintf("%+v", *cfg))

	return &app{cfg: cfg, logger: logger, stdout: stdout}, cleanup, nil
}

// startMetrics serves /metrics when an address is configured. The returned
// function stops the server.
func (a *app) startMetrics(ctx context.Context) func() {
	if a.cfg.Metrics.Addr == "" {
		return func() {}
	}
	metrics.InitializeMetrics()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := metrics.Serve(ctx, a.cfg.Metrics.Addr, a.logger); err != nil {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// IndexCmd indexes changed files and exits.
type IndexCmd struct {
	Roots []string `arg:"" optional:"" type:"path" help:"Directories to index (overrides configured roots)."`
}

func (c *IndexCmd) Run(ctx context.Context, a *app) error {
	if len(c.Roots) > 0 {
		a.cfg.Roots = c.Roots
	}
	if err := a.cfg.RequireRoots(); err != nil {
		return err
	}

	flag := pipeline.NewRunningFlag()
	stopSignals := pipeline.WatchSignals(ctx, flag, a.logger)
	defer stopSignals()
	stopMetrics := a.startMetrics(ctx)
	defer stopMetrics()

	opts := a.cfg.PipelineOptions(a.logger)
	opts.Running = flag

	summary, err := pipeline.Run(ctx, opts, nil)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Indexed %d files in %s\n", summary.Result.Enqueued, summary.Result.Duration.Round(time.Millisecond))
	fmt.Fprintf(a.stdout, "  committed:         %d\n", summary.Indexer.Committed)
	fmt.Fprintf(a.stdout, "  extraction failed: %d\n", summary.Indexer.ExtractionFailed)
	fmt.Fprintf(a.stdout, "  unchanged:         %d\n", summary.Collector.Unchanged)
	fmt.Fprintf(a.stdout, "  collector errors:  %d\n", summary.Result.CollectorErrors)
	fmt.Fprintf(a.stdout, "  tracked files:     %d\n", summary.CacheEntries)
	if summary.Result.Stopped {
		fmt.Fprintln(a.stdout, "Stopped early; the next run picks up the remaining files.")
	}
	return nil
}

// ServeCmd indexes in the background while serving MCP on stdio.
type ServeCmd struct{}

func (c *ServeCmd) Run(ctx context.Context, a *app) error {
	if len(a.cfg.Roots) == 0 {
		a.logger.Warn("no roots configured, serving the existing index only")
	}

	// A signal ends the MCP session, which in turn stops the walk
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	stopMetrics := a.startMetrics(ctx)
	defer stopMetrics()

	opts := a.cfg.PipelineOptions(a.logger)
	summary, err := pipeline.Run(ctx, opts, mcp.FrontEnd(os.Stdin, a.stdout, a.logger))
	if err != nil {
		return err
	}

	a.logger.Info("server stopped",
		"enqueued", summary.Result.Enqueued,
		"committed", summary.Indexer.Committed,
		"files_indexed", summary.FilesIndexed)
	return nil
}

// SearchCmd runs one query against the last commit.
type SearchCmd struct {
	Query   string `arg:"" help:"Search query."`
	Limit   int    `short:"n" help:"Maximum number of results." default:"10"`
	Literal bool   `help:"Match the words literally, ignoring query syntax."`
	JSON    bool   `name:"json" help:"Print results as JSON."`
}

func (c *SearchCmd) Run(ctx context.Context, a *app) error {
	reader, err := openReader(a.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	s, err := searcher.New(ctx, reader, a.cfg.SearcherOptions(a.logger))
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	resp, err := s.Search(ctx, searcher.SearchRequest{Query: c.Query, Limit: c.Limit, Literal: c.Literal})
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if len(resp.Results) == 0 {
		fmt.Fprintf(a.stdout, "No matches among %d documents\n", resp.DocumentCount)
		return nil
	}
	for _, r := range resp.Results {
		fmt.Fprintf(a.stdout, "%2d. %s (%.3f)\n", r.Rank, r.Path, r.Score)
		if r.Snippet != "" {
			fmt.Fprintf(a.stdout, "    %s\n", r.Snippet)
		}
	}
	fmt.Fprintf(a.stdout, "%d of %d documents matched in %s\n",
		resp.TotalResults, resp.DocumentCount, resp.Duration.Round(time.Microsecond))
	return nil
}

// StatusCmd prints index and change cache statistics.
type StatusCmd struct{}

func (c *StatusCmd) Run(ctx context.Context, a *app) error {
	reader, err := openReader(a.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	snap, err := reader.Snapshot(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = snap.Close() }()

	stats, err := snap.Stats(ctx)
	if err != nil {
		return err
	}

	cache, err := changecache.Load(ctx, storage.OpenChangeStore(a.cfg.CachePath()))
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Index:          %s\n", a.cfg.IndexPath())
	fmt.Fprintf(a.stdout, "Schema version: %s\n", stats.SchemaVersion)
	fmt.Fprintf(a.stdout, "Documents:      %d\n", stats.DocumentCount)
	fmt.Fprintf(a.stdout, "Text size:      %.2f MB\n", float64(stats.TotalBodyBytes)/(1024*1024))
	fmt.Fprintf(a.stdout, "Database size:  %.2f MB\n", float64(stats.DatabaseBytes)/(1024*1024))
	if !stats.LastIndexedAt.IsZero() {
		fmt.Fprintf(a.stdout, "Last indexed:   %s\n", stats.LastIndexedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(a.stdout, "Tracked files:  %d\n", cache.Len())
	return nil
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(a *app) error {
	fmt.Fprintf(a.stdout, "sids %s\n", version)
	fmt.Fprintf(a.stdout, "Build Time: %s\n", buildTime)
	fmt.Fprintf(a.stdout, "Build Mode: %s\n", storage.BuildMode)
	fmt.Fprintf(a.stdout, "SQLite Driver: %s\n", storage.DriverName)
	return nil
}

func openReader(cfg *config.Config) (*storage.Reader, error) {
	reader, err := storage.OpenReader(cfg.IndexPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no index at %s, run `sids index` first", cfg.IndexPath())
	}
	return reader, err
}
