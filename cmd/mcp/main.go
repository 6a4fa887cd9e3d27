// Command mcp indexes a directory and serves the search_documents and
// index_status tools to an MCP client over stdio.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/extract"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/mcp"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	dir := flag.String("dir", "", "document directory (overrides index.dir)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dir != "" {
		cfg.Index.Dir = *dir
	}

	// stdout is reserved for the protocol.
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := indexer.NewEngine(cfg.Index,
		indexer.WithExtractor(extract.NewRegistry(cfg.Index.PassthroughUnknown)),
		indexer.WithTracing(cfg.Tracing.Enabled),
	)
	if _, err := engine.Build(ctx); err != nil {
		slog.Error("index build failed", "dir", cfg.Index.Dir, "error", err)
		os.Exit(1)
	}

	server := mcp.NewServer(executor.New(engine, cfg.Search), engine, cfg.Search.Timeout)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve() }()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			slog.Error("mcp server error", "error", err)
			os.Exit(1)
		}
	}
	slog.Info("mcp server stopped")
}
