// Package mcp serves document search to MCP clients over stdio.
package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
)

const (
	ServerName    = "docsearch"
	ServerVersion = "1.0.0"
)

// Searcher runs a query against the current index.
type Searcher interface {
	Execute(ctx context.Context, query string, limit int) (*executor.Response, error)
	Limit(requested int) int
}

// StatsSource reports on the current index.
type StatsSource interface {
	Stats() (index.Stats, error)
}

type Server struct {
	mcp      *server.MCPServer
	searcher Searcher
	stats    StatsSource
	timeout  time.Duration
	logger   *slog.Logger
}

// NewServer registers the search tools. timeout bounds each search call;
// zero means unbounded.
func NewServer(searcher Searcher, stats StatsSource, timeout time.Duration) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		searcher: searcher,
		stats:    stats,
		timeout:  timeout,
		logger:   slog.Default().With("component", "mcp"),
	}
	s.mcp.AddTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.mcp.AddTool(indexStatusTool(), s.handleIndexStatus)
	return s
}

// Serve blocks on stdio until the client disconnects.
func (s *Server) Serve() error {
	s.logger.Info("mcp server listening on stdio")
	return server.ServeStdio(s.mcp)
}
