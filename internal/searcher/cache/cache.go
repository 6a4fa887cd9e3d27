// Package cache memoises query responses in two layers: an in-process LRU
// and an optional shared Redis layer behind a circuit breaker. Keys carry
// the index generation, so a rebuild never serves stale results.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

const keyPrefix = pkgredis.KeyPrefix + "search:"

// Remote is the shared cache layer.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	HitRate      float64 `json:"hit_rate"`
	LocalEntries int     `json:"local_entries"`
	RemoteState  string  `json:"remote_state,omitempty"`
}

type QueryCache struct {
	local   *lru.Cache[string, *executor.Response]
	remote  Remote
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New builds the cache. remote may be nil; m may be nil.
func New(cfg config.CacheConfig, remote Remote, m *metrics.Metrics) (*QueryCache, error) {
	size := cfg.LocalSize
	if size <= 0 {
		size = 1000
	}
	local, err := lru.New[string, *executor.Response](size)
	if err != nil {
		return nil, fmt.Errorf("creating local cache: %w", err)
	}
	c := &QueryCache{
		local:   local,
		remote:  remote,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
	if remote != nil {
		c.breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.BreakerTrip,
			OnStateChange: func(name string, to resilience.State) {
				if m != nil {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				}
			},
		})
	}
	return c, nil
}

// GetOrCompute returns the cached response for query or runs compute.
// Concurrent misses for the same key share one compute call. The returned
// response is a copy whose CacheHit and Query reflect this call.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	limit int,
	generation uint64,
	compute func() (*executor.Response, error),
) (*executor.Response, bool, error) {
	key := buildKey(query, limit, generation)
	if resp, ok := c.get(ctx, key); ok {
		return hit(resp, query), true, nil
	}

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		resp, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
	resp := *val.(*executor.Response)
	resp.Query = query
	return &resp, false, nil
}

func hit(cached *executor.Response, query string) *executor.Response {
	resp := *cached
	resp.Query = query
	resp.CacheHit = true
	return &resp
}

func (c *QueryCache) get(ctx context.Context, key string) (*executor.Response, bool) {
	if resp, ok := c.local.Get(key); ok {
		c.recordHit("local")
		return resp, true
	}
	if c.remote == nil {
		return nil, false
	}
	var data []byte
	var found bool
	err := c.breaker.Execute(func() error {
		var err error
		data, found, err = c.remote.Get(ctx, key)
		return err
	})
	if err != nil {
		c.logger.Warn("remote cache get failed", "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var resp executor.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	c.local.Add(key, &resp)
	c.recordHit("redis")
	return &resp, true
}

func (c *QueryCache) set(ctx context.Context, key string, resp *executor.Response) {
	c.local.Add(key, resp)
	if c.remote == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.breaker.Execute(func() error { return c.remote.Set(ctx, key, data) }); err != nil {
		c.logger.Warn("remote cache set failed", "error", err)
	}
}

func (c *QueryCache) recordHit(layer string) {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(layer).Inc()
	}
}

// Invalidate drops every entry from both layers.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	local := c.local.Len()
	c.local.Purge()
	var remote int64
	if c.remote != nil {
		err := c.breaker.Execute(func() error {
			var err error
			remote, err = c.remote.FlushByPattern(ctx, keyPrefix+"*")
			return err
		})
		if err != nil {
			return fmt.Errorf("invalidating remote cache: %w", err)
		}
	}
	c.logger.Info("cache invalidated", "local_entries", local, "remote_keys", remote)
	return nil
}

func (c *QueryCache) Stats() Stats {
	s := Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		LocalEntries: c.local.Len(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	if c.breaker != nil {
		s.RemoteState = c.breaker.GetState().String()
	}
	return s
}

// buildKey hashes the query's tokens rather than its raw text: queries that
// tokenize identically rank and snippet identically.
func buildKey(query string, limit int, generation uint64) string {
	tokens := tokenizer.Tokenize(query)
	raw := fmt.Sprintf("%d|%d|%s", generation, limit, strings.Join(tokens, "\x1f"))
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16])
}
