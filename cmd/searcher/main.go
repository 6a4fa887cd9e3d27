// Command searcher builds the document index at startup and serves search
// over HTTP.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml] [-dir ./documents]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics/store"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/extract"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
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

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "dir", cfg.Index.Dir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	shutdownMetrics := metrics.StartServer(cfg.Metrics)

	var collector *analytics.Collector
	var aggregator *analytics.Aggregator
	var history analytics.History
	var pg *postgres.Client
	if cfg.Analytics.Enabled {
		aggregator = analytics.NewAggregator()
		var sink analytics.Sink = aggregator
		if cfg.Kafka.Enabled {
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
			defer producer.Close()
			sink = analytics.KafkaSink{Producer: producer}

			consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, aggregator.HandleMessage)
			go func() {
				if err := consumer.Run(ctx); err != nil {
					slog.Error("analytics consumer error", "error", err)
				}
			}()
			slog.Info("analytics routed through kafka", "topic", cfg.Kafka.Topics.AnalyticsEvents)
		}

		if cfg.Analytics.SnapshotEnabled {
			pg, err = postgres.New(ctx, cfg.Postgres)
			if err != nil {
				slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
			} else {
				defer pg.Close()
				snapshots := setupSnapshots(ctx, pg, aggregator, cfg.Analytics)
				if snapshots != nil {
					history = snapshots
				}
			}
		}

		collector = analytics.NewCollector(sink, cfg.Analytics.BufferSize)
		collector.Start(ctx)
		defer collector.Close()
		slog.Info("analytics collector started", "buffer", cfg.Analytics.BufferSize)
	}

	opts := []indexer.Option{
		indexer.WithExtractor(extract.NewRegistry(cfg.Index.PassthroughUnknown)),
		indexer.WithMetrics(m),
		indexer.WithTracing(cfg.Tracing.Enabled),
	}
	if collector != nil {
		opts = append(opts, indexer.OnEvent(func(ev indexer.IndexEvent) {
			collector.Track(indexEvent(ev))
		}))
	}
	engine := indexer.NewEngine(cfg.Index, opts...)
	if _, err := engine.Build(ctx); err != nil {
		slog.Error("initial index build failed", "dir", cfg.Index.Dir, "error", err)
		os.Exit(1)
	}

	var redisClient *pkgredis.Client
	var queryCache *cache.QueryCache
	if cfg.Cache.Enabled {
		var remote cache.Remote
		if cfg.Cache.RedisLayer {
			redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
			if err != nil {
				slog.Warn("redis unavailable, using in-process cache only", "error", err)
			} else {
				defer redisClient.Close()
				remote = redisClient
			}
		}
		queryCache, err = cache.New(cfg.Cache, remote, m)
		if err != nil {
			slog.Error("failed to create query cache", "error", err)
			os.Exit(1)
		}
		slog.Info("search cache enabled", "local_size", cfg.Cache.LocalSize, "redis", remote != nil)
	}

	checker := health.NewChecker(0)
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		stats, err := engine.Stats()
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", stats.Documents)}
	})
	if cfg.Cache.RedisLayer {
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if redisClient == nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: "not connected"}
			}
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}
	if cfg.Analytics.SnapshotEnabled {
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if pg == nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: "not connected"}
			}
			if err := pg.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	exec := executor.New(engine, cfg.Search)
	h := handler.New(exec, engine, queryCache, collector, m)

	mux := http.NewServeMux()
	h.Register(mux)
	if aggregator != nil {
		analyticsH := analytics.NewHandler(aggregator, history)
		mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
		mux.HandleFunc("GET /api/v1/analytics/history", analyticsH.History)
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Search.Timeout)(chain)
	chain = middleware.AdminKey(cfg.Admin.KeyHashes)(chain)
	if cfg.RateLimit.RequestsPerWindow > 0 {
		limiter := ratelimit.New(ctx, cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.CORS(cfg.CORS)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

// setupSnapshots migrates the schema, restores the latest totals into agg
// and starts periodic saving. It returns nil if the schema cannot be applied.
func setupSnapshots(ctx context.Context, pg *postgres.Client, agg *analytics.Aggregator, cfg config.AnalyticsConfig) *store.Store {
	if err := pg.Migrate(ctx); err != nil {
		slog.Error("analytics schema migration failed", "error", err)
		return nil
	}
	snapshots := store.New(pg.DB)
	latest, err := snapshots.LatestSnapshot(ctx)
	if err != nil {
		slog.Warn("loading latest analytics snapshot failed", "error", err)
	} else if latest != nil {
		agg.Restore(*latest)
		slog.Info("analytics restored from snapshot", "total_searches", latest.TotalSearches)
	}
	go store.RunPeriodic(ctx, snapshots, agg.Stats, cfg.SnapshotInterval)
	return snapshots
}

func indexEvent(ev indexer.IndexEvent) analytics.Event {
	out := analytics.Event{
		Timestamp:  ev.Timestamp,
		Filename:   ev.Filename,
		Reason:     ev.Reason,
		Documents:  ev.Documents,
		Generation: ev.Generation,
	}
	switch ev.Type {
	case indexer.EventDocumentIndexed:
		out.Type = analytics.EventDocumentIndexed
	case indexer.EventDocumentSkipped:
		out.Type = analytics.EventDocumentSkipped
	case indexer.EventIndexBuilt:
		out.Type = analytics.EventIndexBuilt
	}
	return out
}
