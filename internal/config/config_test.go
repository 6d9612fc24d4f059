package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"VZ_CONFIG_PATH", "PORT", "DATA_BASE_URL", "DATA_DIR", "INCIDENTS_RESOURCE", "INCIDENTS_SOURCE",
		"DATABASE_URL", "SQLITE_PATH", "REDIS_URL", "CACHE_TTL", "MAP_WIDTH", "MAP_HEIGHT", "MAP_FIT",
		"STATS_POLICY", "FETCH_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "./public", cfg.Data.Dir)
	require.Equal(t, SourceDir, cfg.Data.IncidentsSource)
	require.Equal(t, 960, cfg.Map.Width)
	require.Equal(t, 600, cfg.Map.Height)
	require.Equal(t, "reset", cfg.StatsPolicy)
	require.Equal(t, 10*time.Minute, cfg.Cache.TTL)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
data:
  base_url: https://dashboard.example
  fetch_timeout: 3s
map:
  width: 800
stats_policy: accumulate
`), 0o600))
	t.Setenv("VZ_CONFIG_PATH", path)
	t.Setenv("MAP_HEIGHT", "500")
	t.Setenv("PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9100", cfg.Port)
	require.Equal(t, "https://dashboard.example", cfg.Data.BaseURL)
	require.Equal(t, SourceHTTP, cfg.Data.IncidentsSource)
	require.Equal(t, 3*time.Second, cfg.Data.FetchTimeout)
	require.Equal(t, 800, cfg.Map.Width)
	require.Equal(t, 500, cfg.Map.Height)
	require.Equal(t, "accumulate", cfg.StatsPolicy)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAP_WIDTH", "wide")
	_, err := Load()
	require.Error(t, err)

	clearEnv(t)
	t.Setenv("CACHE_TTL", "soon")
	_, err = Load()
	require.Error(t, err)

	clearEnv(t)
	t.Setenv("INCIDENTS_SOURCE", "http")
	_, err = Load()
	require.ErrorContains(t, err, "DATA_BASE_URL")

	clearEnv(t)
	t.Setenv("VZ_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	require.Error(t, err)
}
