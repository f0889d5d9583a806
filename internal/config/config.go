// Package config loads the server's environment-driven configuration,
// mirroring the os.Getenv/strconv idiom the teacher's internal/app package
// uses rather than pulling in a config-file library.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every environment-driven knob spec.md §6 names, plus the
// auth/webhook knobs §4.1/§4.2 imply but don't tabulate.
type Config struct {
	Port int

	ServiceID          string
	JWKSURL            string
	ExpectedIssuer     string
	AudiencePrefix     string
	JWKSCacheMaxAge    time.Duration
	JWKSCacheCooldown  time.Duration
	JWKSRequestTimeout time.Duration

	APIURL         string
	SigningKeyID   string
	SigningSecret  string
	WebhookTimeout time.Duration

	SimTickHz                    int
	NetworkHz                    int
	FullSnapshotIntervalNetTicks int
}

// Load reads the process environment into a Config, applying spec.md
// defaults for anything unset.
func Load() Config {
	cfg := Config{
		Port:               envInt("PORT", 3000),
		ServiceID:          os.Getenv("SERVICE_ID"),
		JWKSURL:            os.Getenv("JWKS_URL"),
		ExpectedIssuer:     envOr("TOKEN_ISSUER", "usion-matchmaking"),
		AudiencePrefix:     envOr("TOKEN_AUDIENCE_PREFIX", "usion-game-service:"),
		JWKSCacheMaxAge:    envDuration("JWKS_CACHE_MAX_AGE_MS", 5*time.Minute),
		JWKSCacheCooldown:  envDuration("JWKS_CACHE_COOLDOWN_MS", 1*time.Second),
		JWKSRequestTimeout: envDuration("JWKS_REQUEST_TIMEOUT_MS", 15*time.Second),

		APIURL:         os.Getenv("API_URL"),
		SigningKeyID:   os.Getenv("SIGNING_KEY_ID"),
		SigningSecret:  os.Getenv("SIGNING_SECRET"),
		WebhookTimeout: envDuration("WEBHOOK_TIMEOUT_MS", 10*time.Second),

		SimTickHz: envInt("SIM_TICK_HZ", 60),
		NetworkHz: envInt("NETWORK_HZ", 60),
	}
	cfg.FullSnapshotIntervalNetTicks = envInt("FULL_SNAPSHOT_INTERVAL_NET_TICKS", cfg.NetworkHz)
	if cfg.JWKSURL == "" && cfg.APIURL != "" {
		cfg.JWKSURL = cfg.APIURL + "/.well-known/jwks.json"
	}
	return cfg
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	ms, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
