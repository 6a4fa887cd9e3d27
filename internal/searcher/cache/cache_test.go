package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

type fakeRemote struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newFakeRemote() *fakeRemote { return &fakeRemote{data: make(map[string][]byte)} }

func (f *fakeRemote) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeRemote) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.data[key] = value
	return nil
}

func (f *fakeRemote) FlushByPattern(context.Context, string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.data))
	f.data = make(map[string][]byte)
	return n, f.err
}

func response(query string) *executor.Response {
	return &executor.Response{
		Query:     query,
		TotalHits: 1,
		Results:   []executor.SearchResult{{Filename: "cave.txt", Similarity: 0.5, Snippets: []string{"the cave"}}},
	}
}

func TestLocalHitAfterMiss(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c, err := New(config.CacheConfig{LocalSize: 10}, nil, m)
	require.NoError(t, err)

	calls := 0
	compute := func() (*executor.Response, error) {
		calls++
		return response("cave"), nil
	}

	resp, hit, err := c.GetOrCompute(context.Background(), "cave", 10, 1, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, resp.CacheHit)

	// Same tokens, different spelling.
	resp, hit, err = c.GetOrCompute(context.Background(), "  CAVE ", 10, 1, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.True(t, resp.CacheHit)
	assert.Equal(t, "  CAVE ", resp.Query)
	assert.Equal(t, 1, calls)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
	assert.Empty(t, stats.RemoteState)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("local")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))
}

func TestKeyIncludesGenerationAndLimit(t *testing.T) {
	assert.NotEqual(t, buildKey("cave", 10, 1), buildKey("cave", 10, 2))
	assert.NotEqual(t, buildKey("cave", 10, 1), buildKey("cave", 5, 1))
	assert.NotEqual(t, buildKey("cave fire", 10, 1), buildKey("cavefire", 10, 1))
	assert.Equal(t, buildKey("Cave,", 10, 1), buildKey("cave ,", 10, 1))
}

func TestRemoteLayerSharedBetweenInstances(t *testing.T) {
	remote := newFakeRemote()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	first, err := New(config.CacheConfig{LocalSize: 10}, remote, nil)
	require.NoError(t, err)
	second, err := New(config.CacheConfig{LocalSize: 10}, remote, m)
	require.NoError(t, err)

	_, _, err = first.GetOrCompute(context.Background(), "cave", 0, 3, func() (*executor.Response, error) {
		return response("cave"), nil
	})
	require.NoError(t, err)

	resp, hit, err := second.GetOrCompute(context.Background(), "cave", 0, 3, func() (*executor.Response, error) {
		t.Fatal("compute must not run on a remote hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "cave.txt", resp.Results[0].Filename)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("redis")))
	assert.Equal(t, 1, second.Stats().LocalEntries)
}

func TestRemoteFailuresTripBreaker(t *testing.T) {
	remote := newFakeRemote()
	remote.err = errors.New("connection refused")
	c, err := New(config.CacheConfig{LocalSize: 10, BreakerTrip: 2}, remote, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		resp, hit, err := c.GetOrCompute(context.Background(), "q"+string(rune('a'+i)), 0, 1, func() (*executor.Response, error) {
			return response("q"), nil
		})
		require.NoError(t, err, "remote failures never fail the query")
		assert.False(t, hit)
		assert.NotNil(t, resp)
	}
	assert.Equal(t, "open", c.Stats().RemoteState)
}

func TestComputeErrorNotCached(t *testing.T) {
	c, err := New(config.CacheConfig{}, nil, nil)
	require.NoError(t, err)
	boom := errors.New("boom")

	_, _, err = c.GetOrCompute(context.Background(), "cave", 0, 1, func() (*executor.Response, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Stats().LocalEntries)
}

func TestConcurrentMissesCoalesce(t *testing.T) {
	c, err := New(config.CacheConfig{LocalSize: 10}, nil, nil)
	require.NoError(t, err)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (*executor.Response, error) {
		calls.Add(1)
		<-release
		return response("cave"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), "cave", 0, 1, compute)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvalidate(t *testing.T) {
	remote := newFakeRemote()
	c, err := New(config.CacheConfig{LocalSize: 10}, remote, nil)
	require.NoError(t, err)

	_, _, err = c.GetOrCompute(context.Background(), "cave", 0, 1, func() (*executor.Response, error) {
		return response("cave"), nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, c.Stats().LocalEntries)

	require.NoError(t, c.Invalidate(context.Background()))
	assert.Zero(t, c.Stats().LocalEntries)
	_, found, _ := remote.Get(context.Background(), buildKey("cave", 0, 1))
	assert.False(t, found)
}
