package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/sids/internal/indexer"
	"github.com/dshills/sids/internal/pipeline"
	"github.com/dshills/sids/internal/searcher"
	"github.com/dshills/sids/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "sids"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"

	// ToolSearchDocuments runs a full-text query
	ToolSearchDocuments = "search_documents"
	// ToolIndexStatus reports progress and index statistics
	ToolIndexStatus = "index_status"
)

// SearchService answers queries
type SearchService interface {
	Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error)
	Stats(ctx context.Context) (*storage.IndexStats, error)
}

// Deps are the collaborators the tools read from. Only Searcher is required.
type Deps struct {
	Searcher SearchService
	Progress interface{ Load() uint64 }
	Running  interface{ Running() bool }
	Indexer  interface{ Stats() indexer.Statistics }
	// Done is closed once background indexing has finished
	Done <-chan struct{}
}

// DepsFromEnv exposes a running pipeline to the tools
func DepsFromEnv(env *pipeline.Env) Deps {
	return Deps{
		Searcher: env.Searcher,
		Progress: env.Progress,
		Running:  env.Running,
		Indexer:  env.Indexer,
		Done:     env.Done,
	}
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp    *server.MCPServer
	deps   Deps
	logger *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Searcher == nil {
		return nil, errors.New("mcp server requires a searcher")
	}
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcp:    mcpServer,
		deps:   deps,
		logger: logger.With("component", "mcp"),
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve speaks MCP over in and out until in is closed or ctx is done.
// stdout must be reserved for the protocol; log elsewhere.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.Info("MCP server ready, listening on stdio")
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// FrontEnd adapts the server to a pipeline run. The run stops indexing
// when the client disconnects.
func FrontEnd(in io.Reader, out io.Writer, logger *slog.Logger) pipeline.FrontEnd {
	return func(ctx context.Context, env *pipeline.Env) error {
		s, err := NewServer(DepsFromEnv(env), logger)
		if err != nil {
			return err
		}
		return s.Serve(ctx, in, out)
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.mcp.AddTool(indexStatusTool(), s.handleIndexStatus)
	return nil
}
