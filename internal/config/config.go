// Package config loads feedcast's environment-variable configuration,
// following the teacher's pkg/config loader style (GetEnvString et al.)
// generalized to spec.md §6's environment inputs.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every environment-tunable setting of the feed service,
// per spec.md §6 ("Environment inputs").
type Config struct {
	// Port the HTTP server listens on. Default: 8080.
	Port int

	// BaseURL is loaded from BASE_URL (e.g. "https://feedcast.example")
	// but no component reads it: synthesized feeds carry an empty
	// atom:link self href, and pass-through feeds keep the upstream self
	// link unchanged. Default: empty.
	BaseURL string

	// CacheDuration is the Result Cache TTL. Default: 1h.
	CacheDuration time.Duration

	// MaxArticlesPerFeed ceilings the requested limit regardless of
	// what the caller asks for. Default: 50.
	MaxArticlesPerFeed int

	// RequestTimeout is the Origin Fetcher's per-request timeout.
	// Default: 10s.
	RequestTimeout time.Duration

	// RateLimitWindow and RateLimitCeiling configure the client-facing
	// admission layer (out of core scope per spec.md §1, but still a
	// required environment input per §6).
	RateLimitWindow  time.Duration
	RateLimitCeiling int

	// UserAgent overrides the Origin Fetcher's default identity string.
	// Default: empty, meaning the fetcher's own default is used.
	UserAgent string

	// LogLevel controls the slog handler's minimum level. Default: "info".
	LogLevel string
}

// LoadFromEnv reads Config from the process environment, falling back
// to spec.md's defaults for anything unset or unparseable — mirroring
// the teacher's GetEnvInt/GetEnvDuration "log a warning, use the
// default" discipline rather than failing startup outright.
func LoadFromEnv() Config {
	return Config{
		Port:               getEnvInt("PORT", 8080),
		BaseURL:            getEnvString("BASE_URL", ""),
		CacheDuration:      getEnvSeconds("CACHE_DURATION_SECONDS", time.Hour),
		MaxArticlesPerFeed: getEnvInt("MAX_ARTICLES_PER_FEED", 50),
		RequestTimeout:     getEnvMillis("REQUEST_TIMEOUT_MS", 10*time.Second),
		RateLimitWindow:    getEnvSeconds("RATE_LIMIT_WINDOW_SECONDS", time.Minute),
		RateLimitCeiling:   getEnvInt("RATE_LIMIT_CEILING", 60),
		UserAgent:          getEnvString("USER_AGENT", ""),
		LogLevel:           getEnvString("LOG_LEVEL", "info"),
	}
}

// Validate checks Config for internally-consistent values, matching
// the teacher's Validate-after-load discipline (e.g. pkg/ratelimit's
// Config.Validate).
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.CacheDuration <= 0 {
		return fmt.Errorf("cache duration must be positive, got %v", c.CacheDuration)
	}
	if c.MaxArticlesPerFeed < 1 || c.MaxArticlesPerFeed > 500 {
		return fmt.Errorf("max articles per feed must be between 1 and 500, got %d", c.MaxArticlesPerFeed)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", c.RequestTimeout)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %v", c.RateLimitWindow)
	}
	if c.RateLimitCeiling < 1 {
		return fmt.Errorf("rate limit ceiling must be >= 1, got %d", c.RateLimitCeiling)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		slog.Warn("invalid integer value for environment variable, using default",
			slog.String("key", key), slog.String("value", raw), slog.Int("default", defaultValue))
		return defaultValue
	}
	return v
}

func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		slog.Warn("invalid duration (seconds) value for environment variable, using default",
			slog.String("key", key), slog.String("value", raw), slog.String("default", defaultValue.String()))
		return defaultValue
	}
	return time.Duration(secs) * time.Second
}

func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	ms, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		slog.Warn("invalid duration (milliseconds) value for environment variable, using default",
			slog.String("key", key), slog.String("value", raw), slog.String("default", defaultValue.String()))
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}
