// Package ratelimit provides the client-facing HTTP rate-limit
// middleware, per spec.md §6's "rate-limit window and ceiling for the
// client-facing layer". It keys a golang.org/x/time/rate.Limiter per
// client IP, following the per-IP limiter-map pattern used throughout
// the examples pack (e.g. auth-hub's middleware.RateLimiter), with IP
// extraction adapted from the teacher's
// internal/handler/http/middleware/ip_extractor.go.
package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"feedcast/internal/respond"
)

// entry pairs a limiter with the last time it was used, so the
// cleanup loop can evict IPs that have gone idle.
type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter enforces a requests-per-window ceiling per client IP.
type Limiter struct {
	mu       sync.Mutex
	entries  map[string]*entry
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
	stopOnce sync.Once
	stop     chan struct{}
}

// New builds a Limiter that allows ceiling requests per window,
// per IP, with bursting up to ceiling.
func New(window time.Duration, ceiling int) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	if ceiling <= 0 {
		ceiling = 60
	}
	perSecond := rate.Limit(float64(ceiling) / window.Seconds())
	l := &Limiter{
		entries: make(map[string]*entry),
		rate:    perSecond,
		burst:   ceiling,
		idleTTL: window * 10,
		stop:    make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Close stops the background cleanup goroutine.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.idleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := time.Now()
			for ip, e := range l.entries {
				if now.Sub(e.lastSeen) > l.idleTTL {
					delete(l.entries, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *Limiter) limiterFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[ip]; ok {
		e.lastSeen = time.Now()
		return e.limiter
	}
	rl := rate.NewLimiter(l.rate, l.burst)
	l.entries[ip] = &entry{limiter: rl, lastSeen: time.Now()}
	return rl
}

// Middleware wraps next, rejecting requests over the per-IP ceiling
// with a spec.md §7 RateLimited envelope.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		rl := l.limiterFor(ip)

		if !rl.Allow() {
			retryAfter := max(int(1.0/float64(l.rate)), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			slog.Warn("rate limit exceeded", slog.String("ip", ip), slog.String("path", r.URL.Path))
			requestID := r.Header.Get("X-Request-Id")
			respond.Error(w, r, requestID, false,
				respond.New(respond.KindRateLimited, "rate limit exceeded, try again later", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the caller's IP from RemoteAddr, stripping the
// port. It deliberately ignores X-Forwarded-For: feedcast has no
// notion of a trusted reverse-proxy allowlist, and honoring
// client-supplied headers here would let a caller spoof its way
// around its own limiter bucket.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
