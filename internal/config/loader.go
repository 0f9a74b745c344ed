package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PMPROXY_* environment variable overrides, and
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

// applyEnvOverrides reads well-known PMPROXY_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Kalshi ──
	setStr(&cfg.Kalshi.WSURL, "PMPROXY_KALSHI_WS_URL")
	setStr(&cfg.Kalshi.ApiKeyID, "PMPROXY_KALSHI_API_KEY_ID")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "PMPROXY_KALSHI_RSA_PRIVATE_KEY_PATH")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.WSURL, "PMPROXY_POLYMARKET_WS_URL")

	// ── Database ──
	setStr(&cfg.Database.DSN, "PMPROXY_DATABASE_DSN")
	setStr(&cfg.Database.Host, "PMPROXY_DATABASE_HOST")
	setInt(&cfg.Database.Port, "PMPROXY_DATABASE_PORT")
	setStr(&cfg.Database.Database, "PMPROXY_DATABASE_NAME")
	setStr(&cfg.Database.User, "PMPROXY_DATABASE_USER")
	setStr(&cfg.Database.Password, "PMPROXY_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "PMPROXY_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "PMPROXY_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "PMPROXY_DATABASE_POOL_MIN_CONNS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "PMPROXY_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "PMPROXY_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PMPROXY_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PMPROXY_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PMPROXY_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PMPROXY_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PMPROXY_REDIS_TLS_ENABLED")

	// ── Subscriber ──
	setDuration(&cfg.Subscriber.RefreshInterval, "PMPROXY_SUBSCRIBER_REFRESH_INTERVAL")
	setInt(&cfg.Subscriber.PairLimit, "PMPROXY_SUBSCRIBER_PAIR_LIMIT")

	// ── Arbitrage ──
	setFloat64(&cfg.Arbitrage.SpreadThreshold, "PMPROXY_ARBITRAGE_SPREAD_THRESHOLD")
	setDuration(&cfg.Arbitrage.ScanInterval, "PMPROXY_ARBITRAGE_SCAN_INTERVAL")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "PMPROXY_LOG_LEVEL")
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
