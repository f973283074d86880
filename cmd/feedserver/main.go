// Command feedserver runs the feedcast HTTP API: on-the-fly RSS/Atom
// syndication for pages that publish no feed of their own, per
// spec.md. Structure follows the teacher's cmd/api/main.go: a logger
// bootstrap, a component wiring step, a route/middleware assembly
// step, and a graceful-shutdown run loop.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"feedcast/internal/config"
	"feedcast/internal/discovery"
	"feedcast/internal/feedcache"
	"feedcast/internal/fetcher"
	"feedcast/internal/httpapi"
	"feedcast/internal/httpmiddleware"
	"feedcast/internal/orchestrator"
	"feedcast/internal/ratelimit"
	"feedcast/internal/requestid"
)

func main() {
	logger := initLogger()

	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	components := setupServer(logger, cfg)
	runServer(logger, cfg, components)
}

func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// serverComponents holds everything runServer needs to start and
// later tear down cleanly.
type serverComponents struct {
	handler     http.Handler
	cache       *feedcache.Cache
	rateLimiter *ratelimit.Limiter
}

func setupServer(logger *slog.Logger, cfg config.Config) *serverComponents {
	fetchCfg := fetcher.DefaultConfig()
	if cfg.UserAgent != "" {
		fetchCfg.UserAgent = cfg.UserAgent
	}
	fetchCfg.Timeout = cfg.RequestTimeout

	contentFetch := fetcher.New(fetchCfg)
	discoveryFetch := fetcher.NewDiscoveryFetcher(fetchCfg)
	discoverEngine := discovery.New(discoveryFetch)
	cache := feedcache.New(cfg.CacheDuration)

	orch := orchestrator.New(contentFetch, discoverEngine, cache, orchestrator.Config{
		MaxArticlesPerFeed: cfg.MaxArticlesPerFeed,
		CacheDuration:      cfg.CacheDuration,
	})

	deps := httpapi.Deps{
		Orchestrator:  orch,
		Discovery:     discoverEngine,
		Fetch:         contentFetch,
		Cache:         cache,
		CacheDuration: cfg.CacheDuration,
		DevMode:       os.Getenv("LOG_LEVEL") == "debug",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /feed", deps.FeedHandler("application/rss+xml; charset=utf-8"))
	mux.HandleFunc("GET /feed.atom", deps.FeedHandler("application/atom+xml; charset=utf-8"))
	mux.HandleFunc("GET /preview", deps.Preview)
	mux.HandleFunc("GET /metadata", deps.Metadata)
	mux.HandleFunc("POST /validate", deps.Validate)
	mux.HandleFunc("GET /cache/stats", deps.CacheStats)
	mux.HandleFunc("DELETE /cache", deps.CacheClear)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	limiter := ratelimit.New(cfg.RateLimitWindow, cfg.RateLimitCeiling)

	var handler http.Handler = mux
	handler = httpmiddleware.LimitRequestBody(1 << 20)(handler) // 1MB, covers POST /validate
	handler = limiter.Middleware(handler)
	handler = httpmiddleware.Logging(logger)(handler)
	handler = httpmiddleware.Recover(logger)(handler)
	handler = requestid.Middleware(handler)

	return &serverComponents{handler: handler, cache: cache, rateLimiter: limiter}
}

func runServer(logger *slog.Logger, cfg config.Config, components *serverComponents) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &http.Server{
		Addr:              net.JoinHostPort("", itoa(cfg.Port)),
		Handler:           components.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting", slog.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	components.cache.Close()
	components.rateLimiter.Close()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}

func itoa(n int) string {
	if n <= 0 {
		return "8080"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
