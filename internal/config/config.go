// Package config holds the runtime settings of bookingledgerd.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultListenAddr      = ":8080"
	defaultDatabaseURL     = "sqlite:///tmp/bookingledger.db"
	defaultAllowedOrigin   = "http://localhost:3000"
	defaultJWTIssuer       = "bookingledger"
	defaultCartTTL         = 14 * 24 * time.Hour
	defaultCountCacheTTL   = time.Minute
	defaultRequestTimeout  = 5 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// ErrInvalidConfig reports a configuration that cannot start the server.
var ErrInvalidConfig = errors.New("invalid config")

// Config aggregates runtime settings for the booking ledger service.
type Config struct {
	ListenAddr      string
	DatabaseURL     string
	RedisURL        string
	AllowedOrigins  []string
	JWTSigningKey   string
	JWTIssuer       string
	Currency        string
	CartTTL         time.Duration
	CountCacheTTL   time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Validate fills defaults and ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	cfg.JWTIssuer = defaultIfEmpty(cfg.JWTIssuer, defaultJWTIssuer)
	cfg.Currency = strings.ToUpper(defaultIfEmpty(cfg.Currency, "ZAR"))
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	if cfg.CartTTL == 0 {
		cfg.CartTTL = defaultCartTTL
	}
	if cfg.CountCacheTTL == 0 {
		cfg.CountCacheTTL = defaultCountCacheTTL
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if len(cfg.JWTSigningKey) == 0 {
		return fmt.Errorf("%w: jwt signing key is required", ErrInvalidConfig)
	}
	if len(cfg.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a three letter code", ErrInvalidConfig)
	}
	if cfg.CartTTL < 0 {
		return fmt.Errorf("%w: cart ttl must be positive", ErrInvalidConfig)
	}
	if cfg.CountCacheTTL < 0 {
		return fmt.Errorf("%w: count cache ttl must be positive", ErrInvalidConfig)
	}
	if cfg.RequestTimeout < 0 || cfg.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	return nil
}

// CacheEnabled reports whether a Redis URL was configured.
func (cfg Config) CacheEnabled() bool {
	return cfg.RedisURL != ""
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
