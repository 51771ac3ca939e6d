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
// built-in defaults, applies ORDERDESK_* environment variable overrides, and
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

// applyEnvOverrides reads well-known ORDERDESK_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "ORDERDESK_DATABASE_DSN")
	setStr(&cfg.Database.Host, "ORDERDESK_DATABASE_HOST")
	setInt(&cfg.Database.Port, "ORDERDESK_DATABASE_PORT")
	setStr(&cfg.Database.Database, "ORDERDESK_DATABASE_NAME")
	setStr(&cfg.Database.User, "ORDERDESK_DATABASE_USER")
	setStr(&cfg.Database.Password, "ORDERDESK_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "ORDERDESK_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "ORDERDESK_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "ORDERDESK_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "ORDERDESK_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ORDERDESK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ORDERDESK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ORDERDESK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ORDERDESK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ORDERDESK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ORDERDESK_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ORDERDESK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ORDERDESK_S3_REGION")
	setStr(&cfg.S3.Bucket, "ORDERDESK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ORDERDESK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ORDERDESK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ORDERDESK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ORDERDESK_S3_FORCE_PATH_STYLE")

	// ── Venue ──
	setStr(&cfg.Venue.BaseURL, "ORDERDESK_VENUE_BASE_URL")
	setStr(&cfg.Venue.APIKey, "ORDERDESK_VENUE_API_KEY")
	setDuration(&cfg.Venue.Timeout, "ORDERDESK_VENUE_TIMEOUT")

	// ── Feed ──
	setStr(&cfg.Feed.WsURL, "ORDERDESK_FEED_WS_URL")
	setStringSlice(&cfg.Feed.Symbols, "ORDERDESK_FEED_SYMBOLS")
	setDuration(&cfg.Feed.SnapshotTTL, "ORDERDESK_FEED_SNAPSHOT_TTL")
	setDuration(&cfg.Feed.ReconnectMin, "ORDERDESK_FEED_RECONNECT_MIN")

	// ── Fees ──
	setStr(&cfg.Fees.MakerRate, "ORDERDESK_FEES_MAKER_RATE")
	setStr(&cfg.Fees.TakerRate, "ORDERDESK_FEES_TAKER_RATE")

	// ── Catalog ──
	setStr(&cfg.Catalog.Prefix, "ORDERDESK_CATALOG_PREFIX")
	setStr(&cfg.Catalog.ArchivePrefix, "ORDERDESK_CATALOG_ARCHIVE_PREFIX")
	setDuration(&cfg.Catalog.ImportInterval, "ORDERDESK_CATALOG_IMPORT_INTERVAL")
	setBool(&cfg.Catalog.ArchiveImported, "ORDERDESK_CATALOG_ARCHIVE_IMPORTED")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ORDERDESK_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ORDERDESK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ORDERDESK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ORDERDESK_SERVER_API_KEY")
	setInt(&cfg.Server.SubmitRatePerSec, "ORDERDESK_SERVER_SUBMIT_RATE_PER_SEC")
	setInt(&cfg.Server.RateLimitPerMin, "ORDERDESK_SERVER_RATE_LIMIT_PER_MIN")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ORDERDESK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ORDERDESK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ORDERDESK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ORDERDESK_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ORDERDESK_MODE")
	setStr(&cfg.LogLevel, "ORDERDESK_LOG_LEVEL")
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
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
