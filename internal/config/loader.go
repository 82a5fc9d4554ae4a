package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYRADAR_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYRADAR_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "POLYRADAR_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.DataHost, "POLYRADAR_POLYMARKET_DATA_HOST")
	setFloat64(&cfg.Polymarket.DataRPS, "POLYRADAR_POLYMARKET_DATA_RPS")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "POLYRADAR_SUPABASE_DSN")
	setStr(&cfg.Supabase.Host, "POLYRADAR_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "POLYRADAR_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "POLYRADAR_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "POLYRADAR_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "POLYRADAR_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "POLYRADAR_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "POLYRADAR_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "POLYRADAR_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "POLYRADAR_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYRADAR_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYRADAR_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYRADAR_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYRADAR_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYRADAR_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYRADAR_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "POLYRADAR_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYRADAR_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYRADAR_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYRADAR_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYRADAR_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYRADAR_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYRADAR_S3_FORCE_PATH_STYLE")

	// ── Radar ──
	setDuration(&cfg.Radar.Window, "POLYRADAR_RADAR_WINDOW")
	setDuration(&cfg.Radar.ScanInterval, "POLYRADAR_RADAR_SCAN_INTERVAL")
	setDuration(&cfg.Radar.ResolutionInterval, "POLYRADAR_RADAR_RESOLUTION_INTERVAL")
	setInt(&cfg.Radar.ScanConcurrency, "POLYRADAR_RADAR_SCAN_CONCURRENCY")
	setInt(&cfg.Radar.RetentionDays, "POLYRADAR_RADAR_RETENTION_DAYS")
	setStr(&cfg.Radar.ArchiveCron, "POLYRADAR_RADAR_ARCHIVE_CRON")

	// ── Watchlist ──
	setDuration(&cfg.Watchlist.RebuildInterval, "POLYRADAR_WATCHLIST_REBUILD_INTERVAL")
	setInt(&cfg.Watchlist.Concurrency, "POLYRADAR_WATCHLIST_CONCURRENCY")
	setInt(&cfg.Watchlist.MinClosedTrades, "POLYRADAR_WATCHLIST_MIN_CLOSED_TRADES")

	// ── Alerts ──
	setInt(&cfg.Alerts.MaxTier, "POLYRADAR_ALERTS_MAX_TIER")
	setFloat64(&cfg.Alerts.MinEntryPrice, "POLYRADAR_ALERTS_MIN_ENTRY_PRICE")
	setFloat64(&cfg.Alerts.MaxEntryPrice, "POLYRADAR_ALERTS_MAX_ENTRY_PRICE")
	setStringSlice(&cfg.Alerts.ExcludedCategories, "POLYRADAR_ALERTS_EXCLUDED_CATEGORIES")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POLYRADAR_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POLYRADAR_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYRADAR_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "POLYRADAR_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "POLYRADAR_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "POLYRADAR_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYRADAR_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYRADAR_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYRADAR_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYRADAR_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYRADAR_MODE")
	setStr(&cfg.LogLevel, "POLYRADAR_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
