package config

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestConfigValidateAppliesDefaults(test *testing.T) {
	test.Parallel()
	cfg := Config{JWTSigningKey: "secret"}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("validate: %v", err)
	}
	if cfg.ListenAddr != defaultListenAddr {
		test.Fatalf("expected listen addr %q, got %q", defaultListenAddr, cfg.ListenAddr)
	}
	if cfg.CartTTL != 336*time.Hour {
		test.Fatalf("expected 336h cart ttl, got %s", cfg.CartTTL)
	}
	if cfg.Currency != "ZAR" {
		test.Fatalf("expected ZAR, got %s", cfg.Currency)
	}
	if cfg.CacheEnabled() {
		test.Fatalf("expected cache disabled without redis url")
	}
}

func TestConfigValidateRejects(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name string
		cfg  Config
	}{
		{name: "missing signing key", cfg: Config{}},
		{name: "bad currency", cfg: Config{JWTSigningKey: "secret", Currency: "rand"}},
		{name: "negative cart ttl", cfg: Config{JWTSigningKey: "secret", CartTTL: -time.Hour}},
		{name: "negative cache ttl", cfg: Config{JWTSigningKey: "secret", CountCacheTTL: -time.Second}},
		{name: "negative timeout", cfg: Config{JWTSigningKey: "secret", RequestTimeout: -time.Second}},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			if err := testCase.cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				test.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestParseAllowedOrigins(test *testing.T) {
	test.Parallel()
	got := ParseAllowedOrigins(" https://a.example , ,https://b.example")
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(got, want) {
		test.Fatalf("expected %v, got %v", want, got)
	}
	if len(ParseAllowedOrigins("  ")) != 0 {
		test.Fatalf("expected no origins for blank input")
	}
}
