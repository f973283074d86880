package orchestrator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"feedcast/internal/discovery"
	"feedcast/internal/feedcache"
	"feedcast/internal/feedurl"
	"feedcast/internal/fetcher"
	"feedcast/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testFetcherConfig() fetcher.Config {
	cfg := fetcher.DefaultConfig()
	cfg.MinGap = 0
	cfg.DiscoveryMinGap = 0
	cfg.Timeout = 2 * time.Second
	cfg.DiscoveryTimeout = 2 * time.Second
	cfg.BackoffBase = 5 * time.Millisecond
	cfg.BackoffMax = 10 * time.Millisecond
	cfg.DenyPrivateIPs = false
	return cfg
}

const samplePageHTML = `<!DOCTYPE html><html><head>
<link rel="alternate" type="application/rss+xml" href="/feed.xml">
</head><body></body></html>`

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Origin</title>
<link>https://example.com/</link>
<description>d</description>
<item><title>First headline here</title><link>https://example.com/1</link><description>d1</description><guid>https://example.com/1</guid><pubDate>Mon, 01 Jan 2024 00:00:00 +0000</pubDate></item>
</channel></rss>`

const sampleArticleHTML = `<!DOCTYPE html><html><body>
<article><h2><a href="/a1">A headline long enough</a></h2><p>A description long enough to pass the minimum length check easily.</p></article>
</body></html>`

func newTestServer(t *testing.T, mux *http.ServeMux) (*httptest.Server, func()) {
	srv := httptest.NewServer(mux)
	return srv, srv.Close
}

func TestRequest_DiscoversAndPassesThrough(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePageHTML))
	})
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleRSS))
	})
	srv, closeFn := newTestServer(t, mux)
	defer closeFn()

	o := New(
		fetcher.New(testFetcherConfig()),
		discovery.New(fetcher.NewDiscoveryFetcher(testFetcherConfig())),
		feedcache.New(time.Hour),
		Config{MaxArticlesPerFeed: 10},
	)

	res, err := o.Request(t.Context(), srv.URL+"/", feedurl.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Path != PathPassThrough {
		t.Errorf("path = %v, want pass_through", res.Path)
	}
	if !strings.Contains(string(res.Feed.Bytes), "First headline here") {
		t.Errorf("expected original feed content to survive pass-through, got: %s", res.Feed.Bytes)
	}
}

func TestRequest_FallsBackToSynthesisWhenNoFeedDiscovered(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleArticleHTML))
	})
	mux.HandleFunc("/rss", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv, closeFn := newTestServer(t, mux)
	defer closeFn()

	o := New(
		fetcher.New(testFetcherConfig()),
		discovery.New(fetcher.NewDiscoveryFetcher(testFetcherConfig())),
		feedcache.New(time.Hour),
		Config{MaxArticlesPerFeed: 10},
	)

	res, err := o.Request(t.Context(), srv.URL+"/", feedurl.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Path != PathSynthesized {
		t.Errorf("path = %v, want synthesized", res.Path)
	}
	if !strings.Contains(string(res.Feed.Bytes), "A headline long enough") {
		t.Errorf("expected synthesized feed to contain extracted article, got: %s", res.Feed.Bytes)
	}
}

func TestRequest_SecondCallIsCacheHit(t *testing.T) {
	var hits int
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(sampleArticleHTML))
	})
	srv, closeFn := newTestServer(t, mux)
	defer closeFn()

	o := New(
		fetcher.New(testFetcherConfig()),
		discovery.New(fetcher.NewDiscoveryFetcher(testFetcherConfig())),
		feedcache.New(time.Hour),
		Config{MaxArticlesPerFeed: 10},
	)

	first, err := o.Request(t.Context(), srv.URL+"/", feedurl.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := o.Request(t.Context(), srv.URL+"/", feedurl.Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Path != PathCacheHit {
		t.Errorf("path = %v, want cache_hit", second.Path)
	}
	if string(first.Feed.Bytes) != string(second.Feed.Bytes) {
		t.Error("expected identical bytes across cache hit")
	}
}

func TestClampLimit(t *testing.T) {
	o := &Orchestrator{maxArticlesPerFeed: 20}
	cases := map[int]int{0: 20, -1: 20, 5: 5, 20: 20, 21: 20}
	for in, want := range cases {
		if got := o.clampLimit(in); got != want {
			t.Errorf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestRequest_FeedsPrometheusCounters(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleArticleHTML))
	})
	srv, closeFn := newTestServer(t, mux)
	defer closeFn()

	o := New(
		fetcher.New(testFetcherConfig()),
		discovery.New(fetcher.NewDiscoveryFetcher(testFetcherConfig())),
		feedcache.New(time.Hour),
		Config{MaxArticlesPerFeed: 10},
	)

	synthBefore := testutil.ToFloat64(metrics.SynthesizedTotal)
	missBefore := testutil.ToFloat64(metrics.CacheMissTotal)
	hitBefore := testutil.ToFloat64(metrics.CacheHitTotal)

	if _, err := o.Request(t.Context(), srv.URL+"/", feedurl.Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := o.Request(t.Context(), srv.URL+"/", feedurl.Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := testutil.ToFloat64(metrics.SynthesizedTotal); got != synthBefore+1 {
		t.Errorf("SynthesizedTotal = %v, want %v", got, synthBefore+1)
	}
	if got := testutil.ToFloat64(metrics.CacheMissTotal); got != missBefore+1 {
		t.Errorf("CacheMissTotal = %v, want %v", got, missBefore+1)
	}
	if got := testutil.ToFloat64(metrics.CacheHitTotal); got != hitBefore+1 {
		t.Errorf("CacheHitTotal = %v, want %v", got, hitBefore+1)
	}
}
