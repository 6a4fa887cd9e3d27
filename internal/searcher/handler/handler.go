// Package handler exposes search, cache and index administration over
// HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

type SearchExecutor interface {
	Execute(ctx context.Context, query string, limit int) (*executor.Response, error)
	Limit(requested int) int
	Generation() uint64
}

// IndexManager reports on and rebuilds the served index.
type IndexManager interface {
	Stats() (index.Stats, error)
	Build(ctx context.Context) (*index.Index, error)
}

type Handler struct {
	executor  SearchExecutor
	indexes   IndexManager
	cache     *cache.QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New wires the handler. queryCache, collector and m are optional.
func New(exec SearchExecutor, indexes IndexManager, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics) *Handler {
	return &Handler{
		executor:  exec,
		indexes:   indexes,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /search", h.Search)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/rebuild", h.Rebuild)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search serves GET ?q=...&limit=N. The legacy route passes the text as
// ?query=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	params := r.URL.Query()
	if !params.Has("q") && !params.Has("query") {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	query := params.Get("q")
	if query == "" {
		query = params.Get("query")
	}
	query = strings.TrimSpace(query)

	requested := 0
	if limitStr := params.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		requested = parsed
	}
	limit := h.executor.Limit(requested)

	var resp *executor.Response
	var err error
	cacheStatus := "disabled"
	if h.cache != nil {
		var hit bool
		resp, hit, err = h.cache.GetOrCompute(ctx, query, limit, h.executor.Generation(), func() (*executor.Response, error) {
			return h.executor.Execute(ctx, query, limit)
		})
		cacheStatus = "miss"
		if hit {
			cacheStatus = "hit"
		}
	} else {
		resp, err = h.executor.Execute(ctx, query, limit)
	}
	if err != nil {
		h.countQuery("error")
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			log.Error("search failed", "query", query, "error", err)
		}
		h.writeError(w, status, errorMessage(err))
		return
	}

	elapsed := time.Since(start)
	resp.LatencyMs = float64(elapsed.Microseconds()) / 1000
	if resp.TotalHits == 0 {
		h.countQuery("zero_result")
	} else {
		h.countQuery("hit")
	}
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
		h.metrics.SearchResultsCount.Observe(float64(len(resp.Results)))
	}

	log.Debug("search completed",
		"query", query,
		"total_hits", resp.TotalHits,
		"returned", len(resp.Results),
		"cache", cacheStatus,
		"latency_ms", resp.LatencyMs,
	)
	if h.collector != nil && query != "" {
		h.collector.Track(analytics.Event{
			Type:      analytics.EventSearch,
			Query:     query,
			Tokens:    resp.Tokens,
			TotalHits: resp.TotalHits,
			Returned:  len(resp.Results),
			LatencyMs: resp.LatencyMs,
			CacheHit:  resp.CacheHit,
			RequestID: logger.RequestID(ctx),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) countQuery(resultType string) {
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.indexes.Stats()
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), errorMessage(err))
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// Rebuild re-reads the document directory and swaps in the new index. The
// build outlives a disconnecting client.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	ix, err := h.indexes.Build(context.WithoutCancel(r.Context()))
	if err != nil {
		log.Warn("index rebuild failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), errorMessage(err))
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context()); err != nil {
			log.Error("cache invalidation after rebuild failed", "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, ix.Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// errorMessage hides internal details behind a generic message.
func errorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if apperrors.HTTPStatusCode(err) >= http.StatusInternalServerError &&
		!errors.Is(err, apperrors.ErrIndexNotReady) {
		return "internal error"
	}
	return err.Error()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
