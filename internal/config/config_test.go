package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, 24*time.Hour, cfg.Radar.Window.Duration)
	assert.Equal(t, 5*time.Minute, cfg.Radar.ScanInterval.Duration)
	assert.Empty(t, cfg.S3.Bucket, "archival is off by default")
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Mode = "turbo" },
			wantErr: `unknown mode "turbo"`,
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.LogLevel = "trace" },
			wantErr: `unknown log_level "trace"`,
		},
		{
			name:    "scan interval not shorter than window",
			mutate:  func(c *Config) { c.Radar.ScanInterval = duration{48 * time.Hour} },
			wantErr: "scan_interval must be shorter than window",
		},
		{
			name: "inverted alert price bounds",
			mutate: func(c *Config) {
				c.Alerts.MinEntryPrice = 0.9
				c.Alerts.MaxEntryPrice = 0.5
			},
			wantErr: "0 <= min < max <= 1",
		},
		{
			name:    "alert tier out of range",
			mutate:  func(c *Config) { c.Alerts.MaxTier = 4 },
			wantErr: "max_tier must be 1-3",
		},
		{
			name: "s3 bucket without endpoint",
			mutate: func(c *Config) {
				c.S3.Bucket = "snapshots"
				c.S3.Endpoint = ""
			},
			wantErr: "endpoint must not be empty when bucket is set",
		},
		{
			name: "pool min above max",
			mutate: func(c *Config) {
				c.Supabase.PoolMinConns = 20
			},
			wantErr: "pool_min_conns must not exceed pool_max_conns",
		},
		{
			name:    "rate window required with rate limit",
			mutate:  func(c *Config) { c.Server.RateLimit = 10; c.Server.RateWindow = duration{} },
			wantErr: "rate_window must be > 0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "nope"
	cfg.Redis.Addr = ""
	cfg.Watchlist.MinClosedTrades = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, `unknown mode "nope"`)
	assert.ErrorContains(t, err, "redis: addr must not be empty")
	assert.ErrorContains(t, err, "min_closed_trades must be >= 1")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "scan"

[radar]
scan_interval = "90s"

[alerts]
excluded_categories = ["SPORTS"]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "scan", cfg.Mode)
	assert.Equal(t, 90*time.Second, cfg.Radar.ScanInterval.Duration)
	assert.Equal(t, []string{"SPORTS"}, cfg.Alerts.ExcludedCategories)
	// Untouched sections keep their defaults.
	assert.Equal(t, 24*time.Hour, cfg.Radar.Window.Duration)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[radar]
scan_interval = "five minutes"
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("POLYRADAR_SUPABASE_PASSWORD", "hunter2")
	t.Setenv("POLYRADAR_RADAR_SCAN_INTERVAL", "2m")
	t.Setenv("POLYRADAR_SERVER_ENABLED", "false")
	t.Setenv("POLYRADAR_ALERTS_EXCLUDED_CATEGORIES", "CRYPTO, SPORTS")
	t.Setenv("POLYRADAR_POLYMARKET_DATA_RPS", "2.5")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "hunter2", cfg.Supabase.Password)
	assert.Equal(t, 2*time.Minute, cfg.Radar.ScanInterval.Duration)
	assert.False(t, cfg.Server.Enabled)
	assert.Equal(t, []string{"CRYPTO", "SPORTS"}, cfg.Alerts.ExcludedCategories)
	assert.Equal(t, 2.5, cfg.Polymarket.DataRPS)
}

func TestEnvOverridesIgnoreUnsetAndMalformed(t *testing.T) {
	t.Setenv("POLYRADAR_SUPABASE_PORT", "not-a-number")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, 5432, cfg.Supabase.Port)
	assert.Equal(t, "full", cfg.Mode)
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Supabase.Password = "pg-secret"
	cfg.Redis.Password = "redis-secret"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Server.APIKey = "api-secret"
	cfg.Notify.TelegramToken = "tg-secret"

	red := RedactedConfig(&cfg)

	assert.NotContains(t, red.Supabase.Password, "pg-secret")
	assert.NotContains(t, red.Redis.Password, "redis-secret")
	assert.NotContains(t, red.S3.SecretKey, "s3-secret")
	assert.NotContains(t, red.Server.APIKey, "api-secret")
	assert.NotContains(t, red.Notify.TelegramToken, "tg-secret")
	// Non-secret fields survive untouched.
	assert.Equal(t, cfg.Redis.Addr, red.Redis.Addr)
	assert.Equal(t, cfg.Mode, red.Mode)
}
