package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/sids/internal/searcher"
	"github.com/dshills/sids/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
	ErrorCodeInvalidQuery  = -32005 // Query could not be parsed
)

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", searcher.DefaultLimit)
	if limit < 1 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	resp, err := s.deps.Searcher.Search(ctx, searcher.SearchRequest{
		Query:   query,
		Limit:   limit,
		Literal: getBoolDefault(args, "literal", false),
	})
	if err != nil {
		var queryErr *types.QueryError
		if errors.As(err, &queryErr) {
			code := ErrorCodeInvalidQuery
			if errors.Is(err, types.ErrEmptyQuery) {
				code = ErrorCodeEmptyQuery
			}
			return nil, newMCPError(code, "invalid query", map[string]interface{}{
				"query": query,
				"error": queryErr.Err.Error(),
			})
		}
		s.logger.Error("search failed", "query", query, "error", err)
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":     r.Rank,
			"path":     r.Path,
			"title":    r.Title,
			"score":    r.Score,
			"snippet":  r.Snippet,
			"ext":      r.Ext,
			"mod_time": r.ModTime.Format(time.RFC3339),
			"size":     r.Size,
		})
	}

	response := map[string]interface{}{
		"query":          query,
		"total_results":  resp.TotalResults,
		"document_count": resp.DocumentCount,
		"snapshot_taken": resp.SnapshotTaken.Format(time.RFC3339),
		"duration_ms":    resp.Duration.Milliseconds(),
		"cache_hit":      resp.CacheHit,
		"results":        results,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexStatus handles the index_status tool invocation
func (s *Server) handleIndexStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.deps.Searcher.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	index := map[string]interface{}{
		"documents":      stats.DocumentCount,
		"body_mb":        fmt.Sprintf("%.2f", float64(stats.TotalBodyBytes)/(1024*1024)),
		"index_size_mb":  fmt.Sprintf("%.2f", float64(stats.DatabaseBytes)/(1024*1024)),
		"schema_version": stats.SchemaVersion,
	}
	if !stats.LastIndexedAt.IsZero() {
		index["last_indexed_at"] = stats.LastIndexedAt.Format(time.RFC3339)
	}

	response := map[string]interface{}{
		"index": index,
	}

	if s.deps.Progress != nil {
		response["files_indexed"] = s.deps.Progress.Load()
	}
	if s.deps.Running != nil {
		response["running"] = s.deps.Running.Running()
	}
	if s.deps.Done != nil {
		select {
		case <-s.deps.Done:
			response["indexing_complete"] = true
		default:
			response["indexing_complete"] = false
		}
	}
	if s.deps.Indexer != nil {
		is := s.deps.Indexer.Stats()
		indexer := map[string]interface{}{
			"enqueued":          is.Enqueued,
			"committed":         is.Committed,
			"extraction_failed": is.ExtractionFailed,
			"dropped":           is.Dropped,
			"commits":           is.Commits,
			"pending":           is.Pending,
			"queue_depth":       is.QueueDepth,
		}
		if !is.LastCommit.IsZero() {
			indexer["last_commit"] = is.LastCommit.Format(time.RFC3339)
		}
		response["indexer"] = indexer
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}
