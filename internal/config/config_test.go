package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SQL_BALL_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "~/.config/sql-ball/sqlball.db", cfg.Database.Path)
	assert.Equal(t, 10, cfg.Database.MaxConnections)
	assert.Equal(t, "5s", cfg.Database.QueryTimeout)
	assert.Equal(t, 10000, cfg.Database.MaxRows)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, 15, cfg.Cache.TTLMinutes)
}

func TestLoadConfigFromFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.json")
	t.Setenv("SQL_BALL_CONFIG", configPath)

	testConfig := map[string]interface{}{
		"database": map[string]interface{}{
			"path":          "/custom/path/db.db",
			"query_timeout": "10s",
			"max_rows":      500,
		},
		"logging": map[string]interface{}{
			"level":  "debug",
			"format": "json",
		},
		"pipeline": map[string]interface{}{
			"max_attempts": 5,
		},
	}

	data, err := json.MarshalIndent(testConfig, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configPath, data, 0600))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/custom/path/db.db", cfg.Database.Path)
	assert.Equal(t, "10s", cfg.Database.QueryTimeout)
	assert.Equal(t, 500, cfg.Database.MaxRows)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5, cfg.Pipeline.MaxAttempts)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("SQL_BALL_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("SQL_BALL_DB_MAX_ROWS", "250")
	t.Setenv("SQL_BALL_LLM_PROVIDER", "ollama")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Database.MaxRows)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	t.Setenv("SQL_BALL_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := LoadConfigWithOverrides(map[string]interface{}{
		"db-path":      "/tmp/flag.db",
		"log-level":    "warn",
		"max-attempts": 2,
	})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/flag.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 2, cfg.Pipeline.MaxAttempts)
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad provider", func(c *Config) { c.LLM.Provider = "skynet" }},
		{"bad timeout", func(c *Config) { c.Database.QueryTimeout = "soon" }},
		{"zero attempts", func(c *Config) { c.Pipeline.MaxAttempts = 0 }},
		{"zero max rows", func(c *Config) { c.Database.MaxRows = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SQL_BALL_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

			cfg, err := LoadConfig()
			require.NoError(t, err)

			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	t.Setenv("SQL_BALL_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeoutDuration())
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL())
}

func TestLoadConfigEnvBeatsFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("SQL_BALL_CONFIG", configPath)
	t.Setenv("SQL_BALL_DB_MAX_ROWS", "250")

	testConfig := map[string]interface{}{
		"database": map[string]interface{}{
			"path":     "/custom/path/db.db",
			"max_rows": 500,
		},
	}

	data, err := json.Marshal(testConfig)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configPath, data, 0600))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Database.MaxRows, "explicit env var outranks the file")
	assert.Equal(t, "/custom/path/db.db", cfg.Database.Path, "file outranks the default")
}

func TestLoadConfigFileCanDisableSweep(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("SQL_BALL_CONFIG", configPath)

	testConfig := map[string]interface{}{
		"cache": map[string]interface{}{
			"sweep_enabled": false,
		},
	}

	data, err := json.Marshal(testConfig)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configPath, data, 0600))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, cfg.Cache.SweepEnable)
	assert.Equal(t, 15, cfg.Cache.TTLMinutes, "fields absent from the file keep their defaults")
}

func TestExpandAllPaths(t *testing.T) {
	t.Setenv("SQL_BALL_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	cfg.ExpandAllPaths()

	assert.NotContains(t, cfg.Database.Path, "~")
	assert.True(t, filepath.IsAbs(cfg.Database.Path))
	assert.NotContains(t, cfg.Logging.File, "~")
}
