package config

import (
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults() should validate cleanly: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "turbo" }},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"bad database port", func(c *Config) { c.Database.Port = 0 }},
		{"empty redis addr", func(c *Config) { c.Redis.Addr = "" }},
		{"maker rate not a decimal", func(c *Config) { c.Fees.MakerRate = "one percent" }},
		{"taker rate out of range", func(c *Config) { c.Fees.TakerRate = "1.5" }},
		{"empty venue url in serve mode", func(c *Config) { c.Venue.BaseURL = "" }},
		{"feed mode without symbols", func(c *Config) { c.Mode = "feed"; c.Feed.Symbols = nil }},
		{"import mode without bucket", func(c *Config) { c.Mode = "import"; c.S3.Bucket = "" }},
		{"zero submit rate", func(c *Config) { c.Server.SubmitRatePerSec = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() accepted an invalid config")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ORDERDESK_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("ORDERDESK_SERVER_PORT", "9999")
	t.Setenv("ORDERDESK_FEED_SYMBOLS", "BTC/BRL, ETH/BRL")
	t.Setenv("ORDERDESK_VENUE_TIMEOUT", "5s")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Errorf("redis addr = %q, want env override", cfg.Redis.Addr)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server port = %d, want 9999", cfg.Server.Port)
	}
	if len(cfg.Feed.Symbols) != 2 || cfg.Feed.Symbols[1] != "ETH/BRL" {
		t.Errorf("feed symbols = %v, want [BTC/BRL ETH/BRL]", cfg.Feed.Symbols)
	}
	if cfg.Venue.Timeout.Duration.String() != "5s" {
		t.Errorf("venue timeout = %s, want 5s", cfg.Venue.Timeout.Duration)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Password = "hunter2"
	cfg.Venue.APIKey = "key"

	red := RedactedConfig(&cfg)
	if red.Database.Password != "***" || red.Venue.APIKey != "***" {
		t.Error("secrets were not redacted")
	}
	if cfg.Database.Password != "hunter2" {
		t.Error("RedactedConfig mutated the original")
	}
}

func TestFeesRates(t *testing.T) {
	cfg := Defaults()
	maker, taker, err := cfg.Fees.Rates()
	if err != nil {
		t.Fatalf("Rates: %v", err)
	}
	if maker.String() != "0.001" || taker.String() != "0.0015" {
		t.Errorf("rates = %s/%s, want 0.001/0.0015", maker, taker)
	}
}
