package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	keys := []string{
		"PORT", "BASE_URL", "CACHE_DURATION_SECONDS", "MAX_ARTICLES_PER_FEED",
		"REQUEST_TIMEOUT_MS", "RATE_LIMIT_WINDOW_SECONDS", "RATE_LIMIT_CEILING",
		"USER_AGENT", "LOG_LEVEL",
	}
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := LoadFromEnv()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.CacheDuration != time.Hour {
		t.Errorf("CacheDuration = %v, want 1h", cfg.CacheDuration)
	}
	if cfg.MaxArticlesPerFeed != 50 {
		t.Errorf("MaxArticlesPerFeed = %d, want 50", cfg.MaxArticlesPerFeed)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromEnv_OverridesFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_DURATION_SECONDS", "120")
	t.Setenv("MAX_ARTICLES_PER_FEED", "10")

	cfg := LoadFromEnv()
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.CacheDuration != 2*time.Minute {
		t.Errorf("CacheDuration = %v, want 2m", cfg.CacheDuration)
	}
	if cfg.MaxArticlesPerFeed != 10 {
		t.Errorf("MaxArticlesPerFeed = %d, want 10", cfg.MaxArticlesPerFeed)
	}
}

func TestLoadFromEnv_FallsBackOnUnparseableValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")

	cfg := LoadFromEnv()
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want fallback 8080", cfg.Port)
	}
}

func TestValidate_RejectsInvalidConfig(t *testing.T) {
	cases := []Config{
		{Port: 0, CacheDuration: time.Hour, MaxArticlesPerFeed: 10, RequestTimeout: time.Second, RateLimitWindow: time.Second, RateLimitCeiling: 1},
		{Port: 8080, CacheDuration: 0, MaxArticlesPerFeed: 10, RequestTimeout: time.Second, RateLimitWindow: time.Second, RateLimitCeiling: 1},
		{Port: 8080, CacheDuration: time.Hour, MaxArticlesPerFeed: 0, RequestTimeout: time.Second, RateLimitWindow: time.Second, RateLimitCeiling: 1},
		{Port: 8080, CacheDuration: time.Hour, MaxArticlesPerFeed: 10, RequestTimeout: 0, RateLimitWindow: time.Second, RateLimitCeiling: 1},
		{Port: 8080, CacheDuration: time.Hour, MaxArticlesPerFeed: 10, RequestTimeout: time.Second, RateLimitWindow: 0, RateLimitCeiling: 1},
		{Port: 8080, CacheDuration: time.Hour, MaxArticlesPerFeed: 10, RequestTimeout: time.Second, RateLimitWindow: time.Second, RateLimitCeiling: 0},
	}
	for i, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, cfg)
		}
	}
}
