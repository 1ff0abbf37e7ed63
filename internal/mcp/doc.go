// Package mcp implements the Model Context Protocol (MCP) front end for sids.
//
// The server exposes two tools to MCP clients:
//   - search_documents: ranked full-text search over indexed documents
//   - index_status: indexing progress and index statistics
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// # Basic Usage
//
// The server is started by the serve command, which indexes in the
// background while it answers queries:
//
//	sids serve --config sids.yaml
//
// Closing stdin stops the server, which in turn stops indexing. Files
// already queued are still committed before the process exits.
//
// # Tool: search_documents
//
//	Request:
//	{
//	  "name": "search_documents",
//	  "arguments": {
//	    "query": "quarterly report",
//	    "limit": 5
//	  }
//	}
//
//	Response:
//	{
//	  "query": "quarterly report",
//	  "total_results": 1,
//	  "document_count": 1204,
//	  "results": [
//	    {
//	      "rank": 1,
//	      "path": "/home/me/docs/q3-report.pdf",
//	      "title": "q3-report.pdf",
//	      "score": 0.87,
//	      "snippet": "...the [quarterly] [report] covers..."
//	    }
//	  ]
//	}
//
// Results come from the last commit the searcher has seen. Documents still
// being extracted or sitting in an open batch are not visible yet.
//
// # Tool: index_status
//
//	Response:
//	{
//	  "running": true,
//	  "indexing_complete": false,
//	  "files_indexed": 3120,
//	  "indexer": {"enqueued": 512, "committed": 480, "queue_depth": 12},
//	  "index": {"documents": 3088, "index_size_mb": "41.20"}
//	}
//
// # Error Handling
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, filesystem, etc.)
//   - -32004: Empty query
//   - -32005: Query could not be parsed
//
// # Logging
//
// The server logs to stderr; stdout is reserved for the protocol.
package mcp
