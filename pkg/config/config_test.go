package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "file:papyrus.db?cache=shared&mode=rwc", cfg.Database.DSN)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.UpdateInterval)
	assert.Equal(t, 5*time.Minute, cfg.Schedule.FeedTTL)
	assert.Equal(t, 5, cfg.Schedule.MaxWorkers)
	assert.Equal(t, 500, cfg.Ranking.MaxArticles)
	assert.Equal(t, 5*time.Minute, cfg.Ranking.CacheTTL)
	assert.Equal(t, 25, cfg.Model.MinCorpusSize)
	assert.Equal(t, 100, cfg.Model.MaxComponents)
	assert.Equal(t, "pca_plot.png", cfg.Model.PlotFile)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: ":9090"
  timeout: 15s
database:
  dsn: "file:test.db"
schedule:
  update_interval: 1h
  feed_ttl: 10m
  max_workers: 3
ranking:
  max_articles: 200
model:
  min_corpus_size: 10
  visualize: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, 15*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "file:test.db", cfg.Database.DSN)
	assert.Equal(t, time.Hour, cfg.Schedule.UpdateInterval)
	assert.Equal(t, 10*time.Minute, cfg.Schedule.FeedTTL)
	assert.Equal(t, 3, cfg.Schedule.MaxWorkers)
	assert.Equal(t, 200, cfg.Ranking.MaxArticles)
	assert.Equal(t, 10, cfg.Model.MinCorpusSize)
	assert.True(t, cfg.Model.Visualize)

	// unset sections fall back to defaults
	assert.Equal(t, 30*time.Second, cfg.Schedule.FetchTimeout)
	assert.Equal(t, 100, cfg.Model.MaxComponents)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("PAPYRUS_TEST_DSN", "file:env.db")
	path := writeConfig(t, `
database:
  dsn: "${PAPYRUS_TEST_DSN}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file:env.db", cfg.Database.DSN)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_ValidationErrors(t *testing.T) {
	tbl := []struct {
		name    string
		content string
	}{
		{"short timeout", "server:\n  timeout: 100ms\n"},
		{"negative workers", "schedule:\n  max_workers: -1\n"},
		{"short fetch timeout", "schedule:\n  fetch_timeout: 10ms\n"},
		{"negative max articles", "ranking:\n  max_articles: -5\n"},
		{"tiny corpus", "model:\n  min_corpus_size: 1\n"},
		{"tiny components", "model:\n  max_components: 1\n"},
	}
	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validate config")
		})
	}
}

func TestGetServerConfig(t *testing.T) {
	cfg := Default()
	listen, timeout := cfg.GetServerConfig()
	assert.Equal(t, ":8080", listen)
	assert.Equal(t, 30*time.Second, timeout)
}
