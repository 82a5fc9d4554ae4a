// Package config defines the top-level configuration for the radar and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYRADAR_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Supabase   SupabaseConfig   `toml:"supabase"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Radar      RadarConfig      `toml:"radar"`
	Watchlist  WatchlistConfig  `toml:"watchlist"`
	Alerts     AlertsConfig     `toml:"alerts"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds upstream API endpoints and rate limits.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	DataHost  string `toml:"data_host"`
	// DataRPS caps requests per second against the data API. Zero disables
	// client-side rate limiting.
	DataRPS float64 `toml:"data_rps"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for snapshot
// archival. An empty bucket disables archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// RadarConfig holds the detection engine parameters.
type RadarConfig struct {
	// Window is the trailing evidence window for convergence detection.
	Window duration `toml:"window"`
	// ScanInterval is the cadence of the scan → detect → lifecycle → alert
	// cycle.
	ScanInterval duration `toml:"scan_interval"`
	// ResolutionInterval is the cadence of the resolution reconciler.
	ResolutionInterval duration `toml:"resolution_interval"`
	// ScanConcurrency bounds parallel position fetches during a scan.
	ScanConcurrency int `toml:"scan_concurrency"`
	// RetentionDays is how long snapshots stay in the primary store before
	// being archived to S3.
	RetentionDays int    `toml:"retention_days"`
	ArchiveCron   string `toml:"archive_cron"`
}

// WatchlistConfig holds the watchlist builder parameters.
type WatchlistConfig struct {
	// RebuildInterval is the cadence of the full watchlist rebuild.
	RebuildInterval duration `toml:"rebuild_interval"`
	// Concurrency bounds parallel candidate scoring.
	Concurrency int `toml:"concurrency"`
	// MinClosedTrades excludes candidates with too little history to score.
	MinClosedTrades int `toml:"min_closed_trades"`
}

// AlertsConfig holds the alert strategy filter.
type AlertsConfig struct {
	MaxTier            int      `toml:"max_tier"`
	MinEntryPrice      float64  `toml:"min_entry_price"`
	MaxEntryPrice      float64  `toml:"max_entry_price"`
	ExcludedCategories []string `toml:"excluded_categories"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey protects the API; empty disables authentication.
	APIKey string `toml:"api_key"`
	// RateLimit is the per-client request budget per RateWindow. Zero
	// disables rate limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			DataHost:  "https://data-api.polymarket.com",
			DataRPS:   5,
		},
		Supabase: SupabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Radar: RadarConfig{
			Window:             duration{24 * time.Hour},
			ScanInterval:       duration{5 * time.Minute},
			ResolutionInterval: duration{30 * time.Minute},
			ScanConcurrency:    10,
			RetentionDays:      30,
			ArchiveCron:        "0 3 * * *",
		},
		Watchlist: WatchlistConfig{
			RebuildInterval: duration{168 * time.Hour},
			Concurrency:     5,
			MinClosedTrades: 10,
		},
		Alerts: AlertsConfig{
			MaxTier:            2,
			MinEntryPrice:      0.10,
			MaxEntryPrice:      0.85,
			ExcludedCategories: []string{"CRYPTO", "CULTURE", "FINANCE"},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   0,
			RateWindow:  duration{time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"signal.new", "signal.resolved", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":      true,
	"scan":      true,
	"watchlist": true,
	"server":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, scan, watchlist, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Polymarket endpoints
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.DataHost == "" {
		errs = append(errs, "polymarket: data_host must not be empty")
	}
	if c.Polymarket.DataRPS < 0 {
		errs = append(errs, "polymarket: data_rps must be >= 0")
	}

	// Supabase
	if strings.TrimSpace(c.Supabase.DSN) == "" {
		if c.Supabase.Host == "" {
			errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
		}
		if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
			errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
		}
		if c.Supabase.Database == "" {
			errs = append(errs, "supabase: database must not be empty")
		}
	}
	if c.Supabase.PoolMaxConns < 1 {
		errs = append(errs, "supabase: pool_max_conns must be >= 1")
	}
	if c.Supabase.PoolMinConns < 0 {
		errs = append(errs, "supabase: pool_min_conns must be >= 0")
	}
	if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
		errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — only checked when archival is enabled.
	if c.S3.Bucket != "" && c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty when bucket is set")
	}

	// Radar
	if c.Radar.Window.Duration <= 0 {
		errs = append(errs, "radar: window must be > 0")
	}
	if c.Radar.ScanInterval.Duration <= 0 {
		errs = append(errs, "radar: scan_interval must be > 0")
	}
	if c.Radar.ScanInterval.Duration >= c.Radar.Window.Duration {
		errs = append(errs, "radar: scan_interval must be shorter than window")
	}
	if c.Radar.ResolutionInterval.Duration <= 0 {
		errs = append(errs, "radar: resolution_interval must be > 0")
	}
	if c.Radar.ScanConcurrency < 1 {
		errs = append(errs, "radar: scan_concurrency must be >= 1")
	}
	if c.Radar.RetentionDays < 1 {
		errs = append(errs, "radar: retention_days must be >= 1")
	}

	// Watchlist
	if c.Watchlist.RebuildInterval.Duration <= 0 {
		errs = append(errs, "watchlist: rebuild_interval must be > 0")
	}
	if c.Watchlist.Concurrency < 1 {
		errs = append(errs, "watchlist: concurrency must be >= 1")
	}
	if c.Watchlist.MinClosedTrades < 1 {
		errs = append(errs, "watchlist: min_closed_trades must be >= 1")
	}

	// Alerts
	if c.Alerts.MaxTier < 1 || c.Alerts.MaxTier > 3 {
		errs = append(errs, fmt.Sprintf("alerts: max_tier must be 1-3, got %d", c.Alerts.MaxTier))
	}
	if c.Alerts.MinEntryPrice < 0 || c.Alerts.MaxEntryPrice > 1 ||
		c.Alerts.MinEntryPrice >= c.Alerts.MaxEntryPrice {
		errs = append(errs, "alerts: entry price bounds must satisfy 0 <= min < max <= 1")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
