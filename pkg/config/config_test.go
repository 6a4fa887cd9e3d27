package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7878, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Search.SnippetContext)
	assert.Equal(t, "./documents", cfg.Index.Dir)
	assert.True(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Analytics.Enabled)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowOrigins)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9000
index:
  dir: /srv/books
  workers: 4
search:
  snippetContext: 5
redis:
  cacheTTL: 2m
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("DOCSEARCH_SERVER_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port, "env must win over file")
	assert.Equal(t, "/srv/books", cfg.Index.Dir)
	assert.Equal(t, 4, cfg.Index.Workers)
	assert.Equal(t, 5, cfg.Search.SnippetContext)
	assert.Equal(t, 2*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, 100, cfg.Search.MaxResults, "unset keys keep defaults")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoadRejectsNegativeSnippetContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  snippetContext: -1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=disable", p.DSN())
}

func TestValidateRejectsMalformedAdminHash(t *testing.T) {
	cfg := Default()
	cfg.Admin.KeyHashes = []string{"not-a-digest"}
	assert.Error(t, cfg.Validate())
}
