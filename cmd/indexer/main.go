// Command indexer builds an index over a directory, prints corpus
// statistics and, when query words follow the flags, the ranked results.
//
// Usage:
//
//	go run ./cmd/indexer -dir ./documents [-json] [-limit N] [query words...]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/extract"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	dir := flag.String("dir", "", "document directory (overrides index.dir)")
	asJSON := flag.Bool("json", false, "print results as JSON")
	limit := flag.Int("limit", 0, "maximum number of results (0 = config default)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dir != "" {
		cfg.Index.Dir = *dir
	}

	// stdout carries the report.
	level := cfg.Logging.Level
	if level == "info" {
		level = "warn"
	}
	logger.SetupWriter(os.Stderr, level, "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := indexer.NewEngine(cfg.Index,
		indexer.WithExtractor(extract.NewRegistry(cfg.Index.PassthroughUnknown)),
		indexer.WithTracing(cfg.Tracing.Enabled),
	)
	ix, err := engine.Build(ctx)
	if err != nil {
		slog.Error("index build failed", "dir", cfg.Index.Dir, "error", err)
		os.Exit(1)
	}

	query := strings.Join(flag.Args(), " ")
	var resp *executor.Response
	if strings.TrimSpace(query) != "" {
		resp, err = executor.New(engine, cfg.Search).Execute(ctx, query, *limit)
		if err != nil {
			slog.Error("search failed", "query", query, "error", err)
			os.Exit(1)
		}
	}

	if *asJSON {
		err = writeJSON(os.Stdout, ix.Stats(), resp)
	} else {
		err = writeText(os.Stdout, ix.Stats(), resp)
	}
	if err != nil {
		slog.Error("writing output failed", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w io.Writer, stats index.Stats, resp *executor.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Stats  index.Stats        `json:"stats"`
		Search *executor.Response `json:"search,omitempty"`
	}{stats, resp})
}

func writeText(w io.Writer, stats index.Stats, resp *executor.Response) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Documents:     %d\n", stats.Documents)
	fmt.Fprintf(&b, "Unique tokens: %d\n", stats.UniqueTokens)
	fmt.Fprintf(&b, "Total tokens:  %d\n", stats.TotalTokens)
	if resp != nil {
		fmt.Fprintf(&b, "\n%d result(s) for %q\n", resp.TotalHits, resp.Query)
		for i, r := range resp.Results {
			fmt.Fprintf(&b, "\n%d. %s (%.4f)\n", i+1, r.Filename, r.Similarity)
			for _, s := range r.Snippets {
				fmt.Fprintf(&b, "   %s\n", s)
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
