// Package config defines the top-level configuration for the order desk
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ORDERDESK_* environment variables.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Venue    VenueConfig    `toml:"venue"`
	Feed     FeedConfig     `toml:"feed"`
	Fees     FeesConfig     `toml:"fees"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
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

// S3Config holds S3-compatible object storage parameters for the instrument
// catalog bucket.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// VenueConfig holds the external execution venue API parameters.
type VenueConfig struct {
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
}

// FeedConfig holds the market-data feed parameters.
type FeedConfig struct {
	WsURL        string   `toml:"ws_url"`
	Symbols      []string `toml:"symbols"`
	SnapshotTTL  duration `toml:"snapshot_ttl"`
	ReconnectMin duration `toml:"reconnect_min"`
}

// FeesConfig holds the default maker/taker fee rates as decimal strings
// (fractions, e.g. "0.001" for 0.1%).
type FeesConfig struct {
	MakerRate string `toml:"maker_rate"`
	TakerRate string `toml:"taker_rate"`
}

// CatalogConfig holds instrument catalog import parameters.
type CatalogConfig struct {
	Prefix          string   `toml:"prefix"`
	ArchivePrefix   string   `toml:"archive_prefix"`
	ImportInterval  duration `toml:"import_interval"`
	ArchiveImported bool     `toml:"archive_imported"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// SubmitRatePerSec limits order submissions per account.
	SubmitRatePerSec int `toml:"submit_rate_per_sec"`
	// RateLimitPerMin limits API requests per client IP per minute. Zero
	// disables the middleware.
	RateLimitPerMin int `toml:"rate_limit_per_min"`
}

// NotifyConfig holds operator alert channels. A sender is enabled only when
// its credentials are set. Events limits which event types are forwarded;
// empty means all.
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

var validModes = map[string]bool{
	"serve":  true,
	"feed":   true,
	"import": true,
	"full":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "orderdesk",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "orderdesk-catalog",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Venue: VenueConfig{
			BaseURL: "https://venue.example.com/api/v1",
			Timeout: duration{10 * time.Second},
		},
		Feed: FeedConfig{
			WsURL:        "wss://stream.example.com/ws",
			Symbols:      []string{"BTC/BRL"},
			SnapshotTTL:  duration{30 * time.Second},
			ReconnectMin: duration{2 * time.Second},
		},
		Fees: FeesConfig{
			MakerRate: "0.001",
			TakerRate: "0.0015",
		},
		Catalog: CatalogConfig{
			Prefix:          "instruments/",
			ArchivePrefix:   "processed/",
			ImportInterval:  duration{1 * time.Hour},
			ArchiveImported: true,
		},
		Server: ServerConfig{
			Enabled:          true,
			Port:             8080,
			CORSOrigins:      []string{"*"},
			SubmitRatePerSec: 10,
			RateLimitPerMin:  600,
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// Validate checks the configuration for consistency. It collects every
// problem it finds and reports them in a single error.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, feed, import, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database name must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 || c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must be between 0 and pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	// Fees
	if err := parseRate(c.Fees.MakerRate); err != nil {
		errs = append(errs, fmt.Sprintf("fees: maker_rate: %v", err))
	}
	if err := parseRate(c.Fees.TakerRate); err != nil {
		errs = append(errs, fmt.Sprintf("fees: taker_rate: %v", err))
	}

	// Venue — required whenever orders can be submitted.
	mode := strings.ToLower(c.Mode)
	if mode == "serve" || mode == "full" {
		if c.Venue.BaseURL == "" {
			errs = append(errs, "venue: base_url must not be empty for mode "+c.Mode)
		}
		if c.Venue.Timeout.Duration <= 0 {
			errs = append(errs, "venue: timeout must be positive")
		}
	}

	// Feed
	if mode == "feed" || mode == "full" {
		if c.Feed.WsURL == "" {
			errs = append(errs, "feed: ws_url must not be empty for mode "+c.Mode)
		}
		if len(c.Feed.Symbols) == 0 {
			errs = append(errs, "feed: at least one symbol is required for mode "+c.Mode)
		}
	}

	// Catalog — import modes need the bucket.
	if mode == "import" || mode == "full" {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty for mode "+c.Mode)
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty for mode "+c.Mode)
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.SubmitRatePerSec < 1 {
			errs = append(errs, "server: submit_rate_per_sec must be >= 1")
		}
		if c.Server.RateLimitPerMin < 0 {
			errs = append(errs, "server: rate_limit_per_min must not be negative")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Rates parses the configured maker/taker rates into decimals. Call Validate
// first; this still re-checks so a skipped validation cannot smuggle a bad
// rate into fee math.
func (f FeesConfig) Rates() (maker, taker decimal.Decimal, err error) {
	maker, err = decimal.NewFromString(f.MakerRate)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("config: maker_rate %q: %w", f.MakerRate, err)
	}
	taker, err = decimal.NewFromString(f.TakerRate)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("config: taker_rate %q: %w", f.TakerRate, err)
	}
	return maker, taker, nil
}

// parseRate checks that a fee-rate string is a decimal fraction in [0, 1).
func parseRate(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("not a decimal: %q", s)
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("rate %s outside [0,1)", d)
	}
	return nil
}
