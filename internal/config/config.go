// Package config defines the top-level configuration for the proxy and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by PMPROXY_* environment
// variables.
type Config struct {
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	Subscriber SubscriberConfig `toml:"subscriber"`
	Arbitrage  ArbitrageConfig  `toml:"arbitrage"`
	LogLevel   string           `toml:"log_level"`
}

// KalshiConfig holds the Kalshi websocket endpoint and API credentials.
type KalshiConfig struct {
	WSURL             string `toml:"ws_url"`
	ApiKeyID          string `toml:"api_key_id"`
	RsaPrivateKeyPath string `toml:"rsa_private_key_path"`
}

// PolymarketConfig holds the Polymarket CLOB websocket endpoint.
type PolymarketConfig struct {
	WSURL string `toml:"ws_url"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the matching
// pipeline's database.
type DatabaseConfig struct {
	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Database     string `toml:"database"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// RedisConfig holds Redis connection parameters for signal publishing.
// Disabled means opportunities are logged but not published.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// SubscriberConfig controls the matched-pair refresh loop.
type SubscriberConfig struct {
	RefreshInterval duration `toml:"refresh_interval"`
	PairLimit       int      `toml:"pair_limit"`
}

// ArbitrageConfig controls the opportunity scanner.
type ArbitrageConfig struct {
	SpreadThreshold float64  `toml:"spread_threshold"`
	ScanInterval    duration `toml:"scan_interval"`
}

// duration wraps time.Duration for TOML round-tripping in "5m" form.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Kalshi: KalshiConfig{
			WSURL: "wss://api.elections.kalshi.com/trade-api/ws/v2",
		},
		Polymarket: PolymarketConfig{
			WSURL: "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "prediction_markets",
			User:         "postgres",
			SSLMode:      "disable",
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Subscriber: SubscriberConfig{
			RefreshInterval: duration{5 * time.Minute},
			PairLimit:       250,
		},
		Arbitrage: ArbitrageConfig{
			SpreadThreshold: 0.001,
			ScanInterval:    duration{2 * time.Second},
		},
		LogLevel: "info",
	}
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

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Kalshi.WSURL == "" {
		errs = append(errs, "kalshi: ws_url must not be empty")
	}
	if c.Kalshi.ApiKeyID == "" {
		errs = append(errs, "kalshi: api_key_id is required")
	}
	if c.Kalshi.RsaPrivateKeyPath == "" {
		errs = append(errs, "kalshi: rsa_private_key_path is required")
	}

	if c.Polymarket.WSURL == "" {
		errs = append(errs, "polymarket: ws_url must not be empty")
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}

	if c.Subscriber.RefreshInterval.Duration <= 0 {
		errs = append(errs, "subscriber: refresh_interval must be positive")
	}
	if c.Subscriber.PairLimit < 1 {
		errs = append(errs, "subscriber: pair_limit must be >= 1")
	}

	if c.Arbitrage.SpreadThreshold < 0 {
		errs = append(errs, "arbitrage: spread_threshold must not be negative")
	}
	if c.Arbitrage.ScanInterval.Duration <= 0 {
		errs = append(errs, "arbitrage: scan_interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
