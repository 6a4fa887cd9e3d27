package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

type fixture struct {
	mux     *http.ServeMux
	engine  *indexer.Engine
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, build, withCache bool) *fixture {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"a.txt": "the cave and the fire",
		"b.txt": "the sun outside the cave",
		"c.txt": "the sun again and the sun",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	engine := indexer.NewEngine(config.IndexConfig{Dir: dir, Workers: 2})
	if build {
		_, err := engine.Build(context.Background())
		require.NoError(t, err)
	}
	exec := executor.New(engine, config.SearchConfig{SnippetContext: 20, MaxResults: 100})

	var qc *cache.QueryCache
	if withCache {
		var err error
		qc, err = cache.New(config.CacheConfig{Enabled: true, LocalSize: 16}, nil, m)
		require.NoError(t, err)
	}

	mux := http.NewServeMux()
	New(exec, engine, qc, nil, m).Register(mux)
	return &fixture{mux: mux, engine: engine, metrics: m}
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestSearchReturnsRankedResults(t *testing.T) {
	f := newFixture(t, true, false)

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=sun")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[executor.Response](t, rec)
	assert.Equal(t, "sun", resp.Query)
	assert.Equal(t, 2, resp.TotalHits)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "c.txt", resp.Results[0].Filename)
	assert.Equal(t, "b.txt", resp.Results[1].Filename)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues("hit")))
}

func TestSearchLimitAndLegacyRoute(t *testing.T) {
	f := newFixture(t, true, false)

	rec := f.do(t, http.MethodGet, "/search?query=sun&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[executor.Response](t, rec)
	assert.Equal(t, 2, resp.TotalHits)
	assert.Len(t, resp.Results, 1)
}

func TestSearchZeroResults(t *testing.T) {
	f := newFixture(t, true, false)

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=zebra")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[executor.Response](t, rec)
	assert.Zero(t, resp.TotalHits)
	assert.Empty(t, resp.Results)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues("zero_result")))
}

func TestSearchRejectsBadInput(t *testing.T) {
	f := newFixture(t, true, false)

	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=sun&limit=0",
		"/api/v1/search?q=sun&limit=abc",
	} {
		rec := f.do(t, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.NotEmpty(t, decode[map[string]string](t, rec)["error"], target)
	}
}

func TestSearchBlankQueryReturnsEmpty(t *testing.T) {
	f := newFixture(t, true, false)

	for _, target := range []string{"/api/v1/search?q=%20%20", "/api/v1/search?q="} {
		rec := f.do(t, http.MethodGet, target)
		require.Equal(t, http.StatusOK, rec.Code, target)
		resp := decode[executor.Response](t, rec)
		assert.Zero(t, resp.TotalHits, target)
		assert.NotNil(t, resp.Results, target)
		assert.Empty(t, resp.Results, target)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues("zero_result")))
}

func TestSearchBeforeBuild(t *testing.T) {
	f := newFixture(t, false, false)

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=sun")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues("error")))

	rec = f.do(t, http.MethodGet, "/api/v1/index/stats")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearchServesRepeatFromCache(t *testing.T) {
	f := newFixture(t, true, true)

	first := decode[executor.Response](t, f.do(t, http.MethodGet, "/api/v1/search?q=cave"))
	second := decode[executor.Response](t, f.do(t, http.MethodGet, "/api/v1/search?q=cave"))
	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)

	stats := decode[cache.Stats](t, f.do(t, http.MethodGet, "/api/v1/cache/stats"))
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	rec := f.do(t, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusOK, rec.Code)
	third := decode[executor.Response](t, f.do(t, http.MethodGet, "/api/v1/search?q=cave"))
	assert.False(t, third.CacheHit)
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	f := newFixture(t, true, false)

	rec := f.do(t, http.MethodGet, "/api/v1/cache/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disabled", decode[map[string]string](t, rec)["status"])

	rec = f.do(t, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIndexStatsAndRebuild(t *testing.T) {
	f := newFixture(t, true, true)

	rec := f.do(t, http.MethodGet, "/api/v1/index/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[index.Stats](t, rec)
	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, uint64(1), stats.Generation)

	rec = f.do(t, http.MethodPost, "/api/v1/index/rebuild")
	require.Equal(t, http.StatusOK, rec.Code)
	stats = decode[index.Stats](t, rec)
	assert.Equal(t, uint64(2), stats.Generation)

	rec = f.do(t, http.MethodGet, "/api/v1/index/rebuild")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRebuildOfEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	engine := indexer.NewEngine(config.IndexConfig{Dir: dir})
	mux := http.NewServeMux()
	New(executor.New(engine, config.SearchConfig{}), engine, nil, nil, nil).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/index/rebuild", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
