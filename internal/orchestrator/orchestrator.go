// Package orchestrator implements the decision function of spec.md
// §4.G: given a page URL and request options, decide whether to
// discover-and-pass-through an existing feed or fall through to
// extraction-and-synthesis, with the Result Cache coalescing
// concurrent identical requests.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"feedcast/internal/article"
	"feedcast/internal/assembler"
	"feedcast/internal/discovery"
	"feedcast/internal/extractor"
	"feedcast/internal/feedcache"
	"feedcast/internal/feedparser"
	"feedcast/internal/fetcher"
	"feedcast/internal/feedurl"
	"feedcast/internal/metrics"
)

// Path names which branch of the decision function produced a result,
// for the per-outcome statistics spec.md §4.G asks for.
type Path string

const (
	PathCacheHit    Path = "cache_hit"
	PathPassThrough Path = "pass_through"
	PathSynthesized Path = "synthesized"
)

// Result is what the Orchestrator hands back to the HTTP adapter layer.
type Result struct {
	Feed             feedcache.Entry
	Path             Path
	DiscoveryOutcome discovery.Outcome
}

// Orchestrator wires the Origin Fetcher, Discovery Engine, Content
// Extractor, Feed Parser, Feed Assembler and Result Cache into the
// single decision function of spec.md §4.G. Per-outcome statistics
// (discovery strategy hits, pass-through/synthesized totals, cache hit
// ratio) are reported straight to the internal/metrics Prometheus
// series rather than shadowed in private counters here.
type Orchestrator struct {
	contentFetch *fetcher.Fetcher
	discover     *discovery.Engine
	cache        *feedcache.Cache

	maxArticlesPerFeed int
	cacheDuration      time.Duration
}

// Config collects the Orchestrator's tunables, per spec.md §6's
// "maximum articles per feed" environment input.
type Config struct {
	MaxArticlesPerFeed int
	CacheDuration      time.Duration
}

// New builds an Orchestrator from already-constructed components. The
// caller owns the Fetcher/Engine/Cache lifecycle (Close on shutdown).
func New(contentFetch *fetcher.Fetcher, discoverEngine *discovery.Engine, cache *feedcache.Cache, cfg Config) *Orchestrator {
	if cfg.MaxArticlesPerFeed <= 0 {
		cfg.MaxArticlesPerFeed = 50
	}
	if cfg.CacheDuration <= 0 {
		cfg.CacheDuration = feedcache.DefaultTTL
	}
	return &Orchestrator{
		contentFetch:       contentFetch,
		discover:           discoverEngine,
		cache:              cache,
		maxArticlesPerFeed: cfg.MaxArticlesPerFeed,
		cacheDuration:      cfg.CacheDuration,
	}
}

// Request runs spec.md §4.G's decision function for pageURL with the
// given caller overrides. limit, if requested, is ceilinged at the
// Orchestrator's MaxArticlesPerFeed regardless of what the caller asked
// for.
func (o *Orchestrator) Request(ctx context.Context, pageURL string, opts feedurl.Options) (Result, error) {
	opts.Limit = o.clampLimit(opts.Limit)

	normalized, err := feedurl.Normalize(pageURL)
	if err != nil {
		return Result{}, fmt.Errorf("normalize page url: %w", err)
	}

	key := feedurl.CacheKey(normalized, opts)
	if entry, ok := o.cache.Get(key); ok {
		metrics.ObserveCacheHit()
		return Result{Feed: entry, Path: PathCacheHit}, nil
	}
	metrics.ObserveCacheMiss()

	var outcome discovery.Outcome
	var path Path
	discovered := false
	entry, err := o.cache.Produce(key, func() (feedcache.Entry, error) {
		discovered = true
		outcome = o.discover.Discover(ctx, normalized)

		if outcome.Found {
			body, err := o.contentFetch.GetBody(ctx, outcome.FeedURL)
			if err == nil {
				if _, perr := feedparser.Parse(body.Bytes, outcome.FeedURL); perr == nil {
					path = PathPassThrough
					return o.passThrough(body.Bytes, opts)
				}
				// ParseFailure on a discovered feed downgrades to a
				// path switch, per spec.md §4.G and §7 — not a visible
				// failure.
				slog.Warn("discovered feed failed to parse, falling through to extraction",
					slog.String("feed_url", outcome.FeedURL), slog.String("page_url", normalized))
			} else {
				slog.Warn("failed to fetch discovered feed, falling through to extraction",
					slog.String("feed_url", outcome.FeedURL), slog.String("page_url", normalized), slog.Any("error", err))
			}
		}

		path = PathSynthesized
		return o.synthesize(ctx, normalized, opts)
	})
	if err != nil {
		return Result{}, err
	}
	if path == "" {
		// The producer call was coalesced away by singleflight (another
		// goroutine's in-flight call populated the cache); the result is
		// still correct, but we don't know which path produced it.
		path = PathCacheHit
	}
	if discovered {
		metrics.ObserveDiscovery(string(outcome.Strategy), outcome.Found)
	}

	return Result{Feed: entry, Path: path, DiscoveryOutcome: outcome}, nil
}

const rssContentType = "application/rss+xml; charset=utf-8"

func (o *Orchestrator) passThrough(feedBody []byte, opts feedurl.Options) (feedcache.Entry, error) {
	now := time.Now()
	out, err := assembler.PassThrough(feedBody, assembler.Overrides{
		Title:       opts.Title,
		Description: opts.Description,
		Limit:       opts.Limit,
		BuildTime:   now,
	})
	if err != nil {
		return feedcache.Entry{}, fmt.Errorf("pass-through assembly: %w", err)
	}
	metrics.ObservePassThrough()
	return feedcache.Entry{Bytes: out, ContentType: rssContentType, GeneratedAt: now}, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, normalized string, opts feedurl.Options) (feedcache.Entry, error) {
	html, err := o.contentFetch.GetBody(ctx, normalized)
	if err != nil {
		return feedcache.Entry{}, fmt.Errorf("fetch page for extraction: %w", err)
	}

	articles, err := extractor.Extract(string(html.Bytes), normalized, opts.Limit)
	if err != nil {
		return feedcache.Entry{}, fmt.Errorf("extract articles: %w", err)
	}
	articles = article.DedupeByLink(articles)
	article.SortStableByPublishedDescending(articles)

	title := opts.Title
	if title == "" {
		title = normalized
	}

	now := time.Now()
	env := assembler.Envelope{
		PageURL:       normalized,
		Title:         title,
		Description:   opts.Description,
		Articles:      articles,
		CacheDuration: o.cacheDuration,
		BuildTime:     now,
	}
	out, err := assembler.Synthesize(env)
	if err != nil {
		return feedcache.Entry{}, fmt.Errorf("synthesize feed: %w", err)
	}
	metrics.ObserveSynthesized()
	return feedcache.Entry{Bytes: out, ContentType: rssContentType, GeneratedAt: now}, nil
}

func (o *Orchestrator) clampLimit(requested int) int {
	if requested <= 0 || requested > o.maxArticlesPerFeed {
		return o.maxArticlesPerFeed
	}
	return requested
}

