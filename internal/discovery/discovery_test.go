package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"feedcast/internal/fetcher"
)

func newTestEngine() *Engine {
	cfg := fetcher.DefaultConfig()
	cfg.MinGap = 0
	cfg.DiscoveryMinGap = 0
	cfg.Timeout = 2 * time.Second
	cfg.DiscoveryTimeout = 2 * time.Second
	cfg.MaxAttempts = 1
	cfg.DenyPrivateIPs = false
	return New(fetcher.New(cfg))
}

func TestDiscover_HTMLHeadLink(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><link type="application/rss+xml" href="/rss.xml"></head></html>`))
	})
	mux.HandleFunc("/rss.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0"?><rss><channel><title>x</title></channel></rss>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := newTestEngine()
	outcome := e.Discover(context.Background(), srv.URL+"/")
	if !outcome.Found {
		t.Fatalf("expected discovery to succeed")
	}
	if outcome.Strategy != StrategyHTMLHead {
		t.Errorf("strategy = %s, want html_head", outcome.Strategy)
	}
	if !strings.HasSuffix(outcome.FeedURL, "/rss.xml") {
		t.Errorf("feed url = %s", outcome.FeedURL)
	}
}

func TestDiscover_FallsBackToCommonPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head></head><body>no links here</body></html>`))
	})
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0"?><rss><channel><title>x</title></channel></rss>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := newTestEngine()
	outcome := e.Discover(context.Background(), srv.URL+"/")
	if !outcome.Found {
		t.Fatalf("expected discovery to succeed via fallback strategies")
	}
	if !strings.HasSuffix(outcome.FeedURL, "/feed") {
		t.Errorf("feed url = %s", outcome.FeedURL)
	}
}

func TestDiscover_NoFeedFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head></head><body>nothing</body></html>`))
	}))
	defer srv.Close()

	e := newTestEngine()
	outcome := e.Discover(context.Background(), srv.URL+"/")
	if outcome.Found {
		t.Fatalf("expected no feed to be found")
	}
	if outcome.Reason != "no_feed_found" {
		t.Errorf("reason = %q", outcome.Reason)
	}
}

func TestDiscover_RecentFailureShortCircuits(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`nothing here`))
	}))
	defer srv.Close()

	e := newTestEngine()
	first := e.Discover(context.Background(), srv.URL+"/")
	if first.Found {
		t.Fatalf("expected first discovery to fail")
	}
	hitsAfterFirst := hits

	second := e.Discover(context.Background(), srv.URL+"/")
	if second.Reason != "recently_failed" {
		t.Errorf("reason = %q, want recently_failed", second.Reason)
	}
	if hits != hitsAfterFirst {
		t.Errorf("expected no additional network calls on short-circuit, got %d new hits", hits-hitsAfterFirst)
	}
}

func TestIsFeedBody(t *testing.T) {
	cases := []struct {
		body string
		want bool
	}{
		{"<?xml?><rss><channel>x</channel></rss>" + strings.Repeat(" ", 50), true},
		{`<feed xmlns="http://www.w3.org/2005/Atom">` + strings.Repeat(" ", 50), true},
		{"too short", false},
		{strings.Repeat("plain html with no markers ", 5), false},
	}
	for _, c := range cases {
		if got := isFeedBody([]byte(c.body)); got != c.want {
			t.Errorf("isFeedBody(%q) = %v, want %v", c.body, got, c.want)
		}
	}
}
