// Package indexer loads a document directory into an immutable TF-IDF
// index and publishes it to readers. Rebuilds produce a fresh snapshot and
// swap it in atomically, so searches never block on a build.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/extract"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

// Extractor turns one file into plain text.
type Extractor interface {
	Extract(path string) (string, error)
}

// EventType names an indexing event.
type EventType string

const (
	EventDocumentIndexed EventType = "document_indexed"
	EventDocumentSkipped EventType = "document_skipped"
	EventIndexBuilt      EventType = "index_built"
)

// IndexEvent is emitted for every file seen during a build and once when
// the new snapshot is published.
type IndexEvent struct {
	Type       EventType `json:"type"`
	Filename   string    `json:"filename,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Documents  int       `json:"documents,omitempty"`
	Generation uint64    `json:"generation"`
	Timestamp  time.Time `json:"timestamp"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtractor replaces the extension-based extractor registry.
func WithExtractor(x Extractor) Option {
	return func(e *Engine) { e.extractor = x }
}

// WithMetrics records build counters and corpus gauges on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracing logs the span tree of each build at debug level.
func WithTracing(enabled bool) Option {
	return func(e *Engine) { e.tracing = enabled }
}

// OnEvent registers a listener. Listeners run synchronously on the
// building goroutine.
func OnEvent(fn func(IndexEvent)) Option {
	return func(e *Engine) { e.listeners = append(e.listeners, fn) }
}

// Engine owns the current index snapshot.
type Engine struct {
	cfg       config.IndexConfig
	extractor Extractor
	metrics   *metrics.Metrics
	tracing   bool
	listeners []func(IndexEvent)
	logger    *slog.Logger

	current    atomic.Pointer[index.Index]
	generation atomic.Uint64
	building   atomic.Bool
	listenMu   sync.Mutex
}

// NewEngine returns an engine with no index; call Build before serving.
func NewEngine(cfg config.IndexConfig, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		logger: slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.extractor == nil {
		e.extractor = extract.NewRegistry(cfg.PassthroughUnknown)
	}
	return e
}

// Subscribe adds an event listener after construction.
func (e *Engine) Subscribe(fn func(IndexEvent)) {
	e.listenMu.Lock()
	e.listeners = append(e.listeners, fn)
	e.listenMu.Unlock()
}

// Current returns the published snapshot, or nil before the first build.
func (e *Engine) Current() *index.Index {
	return e.current.Load()
}

// Stats reports the published snapshot's totals.
func (e *Engine) Stats() (index.Stats, error) {
	ix := e.Current()
	if ix == nil {
		return index.Stats{}, apperrors.ErrIndexNotReady
	}
	return ix.Stats(), nil
}

// Build reads the configured directory, builds a new index and publishes
// it. On failure the previous snapshot, if any, stays in place. Only one
// build runs at a time; a concurrent call gets ErrRebuildInProgress.
func (e *Engine) Build(ctx context.Context) (*index.Index, error) {
	if !e.building.CompareAndSwap(false, true) {
		return nil, apperrors.ErrRebuildInProgress
	}
	defer e.building.Store(false)

	start := time.Now()
	ctx, root := tracing.Start(ctx, "index.build")
	root.SetAttr("dir", e.cfg.Dir)
	gen := e.generation.Load() + 1

	docs, err := e.loadDocuments(ctx, gen)
	if err != nil {
		root.End()
		return nil, err
	}

	ix, err := index.Build(ctx, docs, e.cfg.Workers)
	root.End()
	if err != nil {
		return nil, fmt.Errorf("building index from %s: %w", e.cfg.Dir, err)
	}
	ix.Generation = gen
	e.generation.Store(gen)
	e.current.Store(ix)

	e.observe(root, ix)
	stats := ix.Stats()
	e.logger.Info("index built",
		"dir", e.cfg.Dir,
		"generation", gen,
		"documents", stats.Documents,
		"unique_tokens", stats.UniqueTokens,
		"total_tokens", stats.TotalTokens,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	e.emit(IndexEvent{Type: EventIndexBuilt, Documents: stats.Documents, Generation: gen})
	return ix, nil
}

// loadDocuments extracts every regular file directly inside the directory,
// in lexical order. Files that fail to extract are logged and skipped.
func (e *Engine) loadDocuments(ctx context.Context, gen uint64) ([]*index.Document, error) {
	_, span := tracing.StartChildSpan(ctx, "index.extract")
	defer span.End()

	info, err := os.Stat(e.cfg.Dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNotDirectory, e.cfg.Dir)
	}
	entries, err := os.ReadDir(e.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", e.cfg.Dir, err)
	}

	docs := make([]*index.Document, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		text, err := e.extractor.Extract(filepath.Join(e.cfg.Dir, name))
		if err != nil {
			reason := skipReason(err)
			e.logger.Warn("skipping file", "file", name, "reason", reason, "error", err)
			if e.metrics != nil {
				e.metrics.DocsSkippedTotal.WithLabelValues(reason).Inc()
			}
			e.emit(IndexEvent{Type: EventDocumentSkipped, Filename: name, Reason: reason, Generation: gen})
			continue
		}
		e.logger.Debug("file extracted", "file", name, "bytes", len(text))
		if e.metrics != nil {
			e.metrics.DocsIndexedTotal.Inc()
		}
		e.emit(IndexEvent{Type: EventDocumentIndexed, Filename: name, Generation: gen})
		docs = append(docs, index.NewDocument(name, text))
	}
	span.SetAttr("documents", len(docs))

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNoDocuments, e.cfg.Dir)
	}
	return docs, nil
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrUnsupportedFormat):
		return "unsupported"
	case errors.Is(err, apperrors.ErrExtractionFailed):
		return "extraction_failed"
	default:
		return "unknown"
	}
}

// observe feeds pass durations from the span tree into metrics and logs the
// tree when tracing is on.
func (e *Engine) observe(root *tracing.Span, ix *index.Index) {
	if e.metrics != nil {
		for _, pass := range root.Children() {
			name := strings.TrimPrefix(pass.Name, "index.")
			e.metrics.BuildPassDuration.WithLabelValues(name).Observe(pass.Duration.Seconds())
		}
		stats := ix.Stats()
		e.metrics.CorpusDocuments.Set(float64(stats.Documents))
		e.metrics.CorpusUniqueTokens.Set(float64(stats.UniqueTokens))
		e.metrics.CorpusTotalTokens.Set(float64(stats.TotalTokens))
	}
	if e.tracing {
		root.Log(e.logger)
	}
}

func (e *Engine) emit(ev IndexEvent) {
	ev.Timestamp = time.Now().UTC()
	e.listenMu.Lock()
	listeners := e.listeners
	e.listenMu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}
