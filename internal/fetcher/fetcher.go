// Package fetcher implements the Origin Fetcher of spec.md §4.A: a
// rate-shaped, retrying, circuit-broken HTTP client shared by the
// Discovery Engine, the Content Extractor and the native Feed Parser.
package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"feedcast/internal/feedurl"
	"feedcast/internal/metrics"
)

// Body is the result of a successful GetBody call.
type Body struct {
	Bytes        []byte
	StatusCode   int
	EffectiveURL string
	ContentType  string
	Charset      string
	LastModified string
}

// HeadReport is the result of a successful Head call.
type HeadReport struct {
	StatusCode    int
	EffectiveURL  string
	ContentType   string
	ContentLength int64
	LastModified  string
}

// PartialBody is the result of a successful GetRange call.
type PartialBody struct {
	Bytes      []byte
	StatusCode int
	Complete   bool // true when the origin ignored Range and sent the whole body
}

// Fetcher is the Origin Fetcher. One Fetcher is shared by every caller
// in the process: the client, rate gate and circuit registry are all
// process-wide, matching spec.md §5's "one shared client with
// connection pooling; no per-request construction."
type Fetcher struct {
	cfg    Config
	client *http.Client
	gate   *Gate
	cb     *circuitRegistry
}

// New builds a Fetcher from cfg, using cfg.MinGap and cfg.Timeout for
// every call made through this instance. Callers typically construct
// two Fetchers sharing nothing but Config: this one for ordinary
// fetches and one from NewDiscoveryFetcher for the Discovery Engine's
// probes.
func New(cfg Config) *Fetcher {
	return &Fetcher{
		cfg:  cfg,
		gate: NewGate(cfg.MinGap),
		cb:   newCircuitRegistry(cfg),
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= cfg.MaxRedirects {
					return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
				}
				if cfg.DenyPrivateIPs {
					if err := feedurl.ValidatePublicHost(req.URL.String()); err != nil {
						return fmt.Errorf("redirect target rejected: %w", err)
					}
				}
				return nil
			},
		},
	}
}

// NewDiscoveryFetcher builds a Fetcher tuned for discovery probes: a
// wider rate gap (200ms) and a shorter timeout (5s), per spec.md §4.A.
func NewDiscoveryFetcher(cfg Config) *Fetcher {
	cfg.Timeout = cfg.DiscoveryTimeout
	f := New(cfg)
	f.gate = NewGate(cfg.DiscoveryMinGap)
	return f
}

func (f *Fetcher) setCommonHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip,deflate,br")
	req.Header.Set("Sec-Ch-Ua-Mobile", "?0")
	req.Header.Set("Sec-Ch-Ua-Platform", `"Windows"`)
}

// GetBody performs a rate-shaped, retrying, circuit-broken GET and
// returns the response body, capped at cfg.MaxBodySize bytes. The
// breaker wraps the whole retry loop, not each attempt, so one logical
// call against U contributes at most one failure to U's breaker
// regardless of how many attempts it took — per spec.md §8 Scenario 5,
// three consecutive failed requests (not nine retried attempts) trip
// the circuit.
func (f *Fetcher) GetBody(ctx context.Context, url string) (*Body, error) {
	if f.cfg.DenyPrivateIPs {
		if err := feedurl.ValidatePublicHost(url); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
		}
	}

	out, err := f.cb.execute(url, func() (any, error) {
		var result *Body
		err := retryWithBackoff(ctx, f.cfg, func() error {
			body, err := f.doGet(ctx, url)
			if err != nil {
				return err
			}
			result = body
			return nil
		})
		return result, err
	})
	if err != nil {
		return nil, err
	}
	return out.(*Body), nil
}

func (f *Fetcher) doGet(ctx context.Context, url string) (*Body, error) {
	if err := f.gate.Wait(ctx); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	f.setCommonHeaders(req)

	fetchStart := time.Now()
	resp, err := f.client.Do(req)
	metrics.ObserveOriginFetch(time.Since(fetchStart))
	if err != nil {
		if reqCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if permanentStatus(resp.StatusCode) {
		return nil, &ClientError{StatusCode: resp.StatusCode, URL: url}
	}
	if resp.StatusCode >= 500 {
		return nil, &ServerError{StatusCode: resp.StatusCode, URL: url}
	}

	limited := io.LimitReader(resp.Body, f.cfg.MaxBodySize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if int64(len(data)) > f.cfg.MaxBodySize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, f.cfg.MaxBodySize)
	}

	effectiveURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		effectiveURL = resp.Request.URL.String()
	}

	return &Body{
		Bytes:        data,
		StatusCode:   resp.StatusCode,
		EffectiveURL: effectiveURL,
		ContentType:  resp.Header.Get("Content-Type"),
		Charset:      detectCharset(resp.Header.Get("Content-Type"), data),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// Head performs a rate-shaped, circuit-broken HEAD request.
func (f *Fetcher) Head(ctx context.Context, url string) (*HeadReport, error) {
	if f.cfg.DenyPrivateIPs {
		if err := feedurl.ValidatePublicHost(url); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
		}
	}

	out, err := f.cb.execute(url, func() (any, error) {
		var result *HeadReport
		err := retryWithBackoff(ctx, f.cfg, func() error {
			report, err := f.doHead(ctx, url)
			if err != nil {
				return err
			}
			result = report
			return nil
		})
		return result, err
	})
	if err != nil {
		return nil, err
	}
	return out.(*HeadReport), nil
}

func (f *Fetcher) doHead(ctx context.Context, url string) (*HeadReport, error) {
	if err := f.gate.Wait(ctx); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	f.setCommonHeaders(req)

	fetchStart := time.Now()
	resp, err := f.client.Do(req)
	metrics.ObserveOriginFetch(time.Since(fetchStart))
	if err != nil {
		if reqCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if permanentStatus(resp.StatusCode) {
		return nil, &ClientError{StatusCode: resp.StatusCode, URL: url}
	}
	if resp.StatusCode >= 500 {
		return nil, &ServerError{StatusCode: resp.StatusCode, URL: url}
	}

	effectiveURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		effectiveURL = resp.Request.URL.String()
	}

	return &HeadReport{
		StatusCode:    resp.StatusCode,
		EffectiveURL:  effectiveURL,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		LastModified:  resp.Header.Get("Last-Modified"),
	}, nil
}

// GetRange attempts a byte-range GET for the first n bytes. Origins
// that ignore Range headers return the full body with Complete=true;
// callers that only need a content sniff should treat both the same.
func (f *Fetcher) GetRange(ctx context.Context, url string, firstBytes int64) (*PartialBody, error) {
	if f.cfg.DenyPrivateIPs {
		if err := feedurl.ValidatePublicHost(url); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
		}
	}

	out, err := f.cb.execute(url, func() (any, error) {
		var result *PartialBody
		err := retryWithBackoff(ctx, f.cfg, func() error {
			partial, err := f.doGetRange(ctx, url, firstBytes)
			if err != nil {
				return err
			}
			result = partial
			return nil
		})
		return result, err
	})
	if err != nil {
		return nil, err
	}
	return out.(*PartialBody), nil
}

func (f *Fetcher) doGetRange(ctx context.Context, url string, firstBytes int64) (*PartialBody, error) {
	if err := f.gate.Wait(ctx); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	f.setCommonHeaders(req)
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", firstBytes-1))

	resp, err := f.client.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if permanentStatus(resp.StatusCode) {
		return nil, &ClientError{StatusCode: resp.StatusCode, URL: url}
	}
	if resp.StatusCode >= 500 {
		return nil, &ServerError{StatusCode: resp.StatusCode, URL: url}
	}

	limited := io.LimitReader(resp.Body, firstBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return &PartialBody{
		Bytes:      data,
		StatusCode: resp.StatusCode,
		Complete:   resp.StatusCode != http.StatusPartialContent,
	}, nil
}

// detectCharset reads the charset from the Content-Type header, falling
// back to scanning the first 4KiB for a <meta charset> declaration, per
// spec.md §4.A's "Observations the caller can read".
func detectCharset(contentType string, body []byte) string {
	if idx := strings.Index(strings.ToLower(contentType), "charset="); idx >= 0 {
		cs := contentType[idx+len("charset="):]
		if semi := strings.IndexByte(cs, ';'); semi >= 0 {
			cs = cs[:semi]
		}
		return strings.Trim(strings.TrimSpace(cs), `"'`)
	}

	head := body
	if len(head) > 4096 {
		head = head[:4096]
	}
	lower := bytes.ToLower(head)
	if idx := bytes.Index(lower, []byte("charset=")); idx >= 0 {
		rest := head[idx+len("charset="):]
		end := 0
		for end < len(rest) && rest[end] != '"' && rest[end] != '\'' && rest[end] != '>' && rest[end] != ' ' {
			end++
		}
		return string(rest[:end])
	}

	return "utf-8"
}
