package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sh3rwan/erbil-api/internal/scrape"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "erbil-api.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.HTTPAddr)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "/api/v1/flights", cfg.BasePath)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 10*time.Minute, cfg.RefreshInterval)
	assert.NotEmpty(t, cfg.SourceURL)
	assert.NotEmpty(t, cfg.Profile.Columns)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
port: 9090
basePath: /flights
sourceUrl: https://example.test/board
cacheTtl: 5m
fetchTimeout: 3s
refreshInterval: 1m
profile:
  rowSelector: "table.fids tbody tr"
  arrivalClass: arr
  departureClass: dep
  columns: [flight, time, city, airline, status]
  timeLayouts: ["15:04"]
  timezone: UTC
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "/flights", cfg.BasePath)
	assert.Equal(t, "https://example.test/board", cfg.SourceURL)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
	assert.Equal(t, time.Minute, cfg.RefreshInterval)

	assert.Equal(t, "table.fids tbody tr", cfg.Profile.RowSelector)
	assert.Equal(t,
		[]scrape.Field{scrape.FieldFlight, scrape.FieldTime, scrape.FieldCity, scrape.FieldAirline, scrape.FieldStatus},
		cfg.Profile.Columns)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "port: 9090\ncacheTtl: 5m\n")

	t.Setenv("HTTP_PORT", "7070")
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("SOURCE_URL", "https://env.test/board")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.HTTPPort)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "https://env.test/board", cfg.SourceURL)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "cacheTtl: quarter-hour\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cacheTtl")
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadNormalizesBasePath(t *testing.T) {
	path := writeConfig(t, "basePath: flights/\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/flights", cfg.BasePath)
}

func TestLoadRejectsEmptyColumnMap(t *testing.T) {
	path := writeConfig(t, `
profile:
  rowSelector: "tr"
  columns: []
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "columns")
}
