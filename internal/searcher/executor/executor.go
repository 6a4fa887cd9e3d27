// Package executor answers queries against the current index snapshot.
package executor

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

// Source yields the index snapshot to search; nil means not built yet.
type Source interface {
	Current() *index.Index
}

// Response is the payload returned to transports.
type Response struct {
	Query      string         `json:"query"`
	TotalHits  int            `json:"total_hits"`
	Results    []SearchResult `json:"results"`
	CacheHit   bool           `json:"cache_hit"`
	LatencyMs  float64        `json:"latency_ms"`
	Tokens     []string       `json:"tokens,omitempty"`
	Generation uint64         `json:"generation"`
}

type Executor struct {
	source Source
	cfg    config.SearchConfig
	logger *slog.Logger
}

func New(source Source, cfg config.SearchConfig) *Executor {
	return &Executor{
		source: source,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Generation returns the current snapshot's generation, or 0 if none.
func (e *Executor) Generation() uint64 {
	if ix := e.source.Current(); ix != nil {
		return ix.Generation
	}
	return 0
}

// Limit resolves a requested result count against the configured default
// and cap. Zero means every result.
func (e *Executor) Limit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if e.cfg.MaxResults > 0 && (limit <= 0 || limit > e.cfg.MaxResults) {
		limit = e.cfg.MaxResults
	}
	return limit
}

// Execute runs query and returns at most limit results. TotalHits counts
// every result before truncation. A blank query matches nothing.
func (e *Executor) Execute(ctx context.Context, query string, limit int) (*Response, error) {
	start := time.Now()
	query = strings.TrimSpace(query)
	ix := e.source.Current()
	if ix == nil {
		return nil, apperrors.ErrIndexNotReady
	}
	if query == "" {
		return &Response{
			Results:    []SearchResult{},
			Generation: ix.Generation,
		}, nil
	}

	tokens := tokenizer.Tokenize(query)
	log := e.logger
	if rid := logger.RequestID(ctx); rid != "" {
		log = log.With("request_id", rid)
	}
	if log.Enabled(ctx, slog.LevelDebug) {
		log.Debug("query weights", "query", query, "weights", ranker.QueryWeights(ix, tokens))
	}

	results := searchTokens(ix, tokens, e.cfg.SnippetContext)
	total := len(results)
	if limit = e.Limit(limit); limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	resp := &Response{
		Query:      query,
		TotalHits:  total,
		Results:    results,
		LatencyMs:  float64(time.Since(start).Microseconds()) / 1000,
		Tokens:     tokens,
		Generation: ix.Generation,
	}
	log.Info("query executed",
		"query", query,
		"tokens", len(tokens),
		"total_hits", total,
		"returned", len(results),
		"generation", ix.Generation,
	)
	return resp, nil
}
