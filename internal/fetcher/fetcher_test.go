package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinGap = 0
	cfg.DiscoveryMinGap = 0
	cfg.Timeout = 2 * time.Second
	cfg.BackoffBase = 10 * time.Millisecond
	cfg.BackoffMax = 20 * time.Millisecond
	// httptest servers listen on loopback; the SSRF filter is exercised
	// directly in TestGetBody_RejectsBlockedHost instead.
	cfg.DenyPrivateIPs = false
	return cfg
}

func TestGetBody_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	f := New(testConfig())
	body, err := f.GetBody(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.StatusCode != 200 {
		t.Errorf("status = %d, want 200", body.StatusCode)
	}
	if body.Charset != "utf-8" {
		t.Errorf("charset = %q, want utf-8", body.Charset)
	}
	if string(body.Bytes) != "<html><body>hello</body></html>" {
		t.Errorf("unexpected body: %s", body.Bytes)
	}
}

func TestGetBody_PermanentClientErrorNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(testConfig())
	_, err := f.GetBody(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("hits = %d, want 1 (no retry on permanent 4xx)", got)
	}
}

func TestGetBody_ServerErrorRetriedThenFails(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig()
	f := New(cfg)
	_, err := f.GetBody(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&hits); got != int32(cfg.MaxAttempts) {
		t.Errorf("hits = %d, want %d", got, cfg.MaxAttempts)
	}
}

func TestGetBody_CircuitOpensAfterThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxAttempts = 1
	cfg.CircuitFailureThreshold = 3
	f := New(cfg)

	for i := 0; i < 3; i++ {
		if _, err := f.GetBody(context.Background(), srv.URL); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	_, err := f.GetBody(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected circuit to be open")
	}
	if err.Error() != ErrBlocked.Error() {
		t.Errorf("err = %v, want %v", err, ErrBlocked)
	}
}

func TestGetBody_RetriesWithinOneCallCountAsOneCircuitFailure(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxAttempts = 3
	cfg.CircuitFailureThreshold = 3
	f := New(cfg)

	// Each of these two logical calls retries MaxAttempts times
	// internally, but the breaker must see one failure per call, not
	// one per attempt — so the circuit should still be closed here.
	for i := 0; i < 2; i++ {
		if _, err := f.GetBody(context.Background(), srv.URL); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if got := atomic.LoadInt32(&hits); got != int32(2*cfg.MaxAttempts) {
		t.Errorf("hits after 2 calls = %d, want %d (2 calls x %d attempts, circuit still closed)", got, 2*cfg.MaxAttempts, cfg.MaxAttempts)
	}

	if _, err := f.GetBody(context.Background(), srv.URL); err == nil {
		t.Fatal("call 3: expected error")
	}
	if got := atomic.LoadInt32(&hits); got != int32(3*cfg.MaxAttempts) {
		t.Errorf("hits after 3 calls = %d, want %d (third logical call still issues real requests)", got, 3*cfg.MaxAttempts)
	}

	_, err := f.GetBody(context.Background(), srv.URL)
	if err == nil || err.Error() != ErrBlocked.Error() {
		t.Errorf("call 4: err = %v, want %v (circuit should trip after 3 logical failures)", err, ErrBlocked)
	}
	if got := atomic.LoadInt32(&hits); got != int32(3*cfg.MaxAttempts) {
		t.Errorf("hits after blocked call = %d, want %d (no network I/O once tripped)", got, 3*cfg.MaxAttempts)
	}
}

func TestGetBody_BodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxBodySize = 1024
	cfg.MaxAttempts = 1
	f := New(cfg)

	_, err := f.GetBody(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected body-too-large error")
	}
}

func TestGetBody_RejectsBlockedHost(t *testing.T) {
	cfg := testConfig()
	cfg.DenyPrivateIPs = true
	f := New(cfg)
	_, err := f.GetBody(context.Background(), "http://127.0.0.1:9999/feed")
	if err == nil {
		t.Fatal("expected blocked-host error")
	}
}

func TestHead_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(testConfig())
	report, err := f.Head(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.ContentType != "application/rss+xml" {
		t.Errorf("content type = %q", report.ContentType)
	}
}

func TestGetRange_PartialContent(t *testing.T) {
	full := make([]byte, 4096)
	for i := range full {
		full[i] = byte('a' + i%26)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(full[:512])
			return
		}
		_, _ = w.Write(full)
	}))
	defer srv.Close()

	f := New(testConfig())
	partial, err := f.GetRange(context.Background(), srv.URL, 512)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if partial.Complete {
		t.Error("expected Complete=false for 206 response")
	}
	if len(partial.Bytes) != 512 {
		t.Errorf("got %d bytes, want 512", len(partial.Bytes))
	}
}

func TestDetectCharset_FromHeader(t *testing.T) {
	got := detectCharset("text/html; charset=ISO-8859-1", nil)
	if got != "ISO-8859-1" {
		t.Errorf("got %q, want ISO-8859-1", got)
	}
}

func TestDetectCharset_FromMetaTag(t *testing.T) {
	html := []byte(`<html><head><meta charset="windows-1252"></head></html>`)
	got := detectCharset("text/html", html)
	if got != "windows-1252" {
		t.Errorf("got %q, want windows-1252", got)
	}
}

func TestDetectCharset_DefaultsToUTF8(t *testing.T) {
	got := detectCharset("text/html", []byte("<html></html>"))
	if got != "utf-8" {
		t.Errorf("got %q, want utf-8", got)
	}
}
