// Package httpapi adapts the feedcast core (orchestrator, discovery,
// extraction) to the HTTP surface required by spec.md §6, following
// the teacher's handler-per-concern layout under
// internal/handler/http/{article,source}.
package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"feedcast/internal/article"
	"feedcast/internal/discovery"
	"feedcast/internal/extractor"
	"feedcast/internal/feedcache"
	"feedcast/internal/feedparser"
	"feedcast/internal/feedurl"
	"feedcast/internal/fetcher"
	"feedcast/internal/metrics"
	"feedcast/internal/orchestrator"
	"feedcast/internal/requestid"
	"feedcast/internal/respond"
)

// Deps bundles the components FeedServer handlers are built from.
type Deps struct {
	Orchestrator  *orchestrator.Orchestrator
	Discovery     *discovery.Engine
	Fetch         *fetcher.Fetcher
	Cache         *feedcache.Cache
	CacheDuration time.Duration
	DevMode       bool
}

// pipelineError writes err as a classified operational error when
// classify recognizes it, falling back to the opaque Internal
// envelope otherwise.
func (d Deps) pipelineError(w http.ResponseWriter, r *http.Request, requestID string, err error) {
	if core := classify(err); core != nil {
		respond.Error(w, r, requestID, d.DevMode, core)
		return
	}
	respond.Error(w, r, requestID, d.DevMode, err)
}

// FeedHandler serves GET /feed and its Atom alias, per spec.md §6. The
// body is always RSS 2.0; contentType governs only the header, so the
// Atom alias deliberately serves RSS bytes under an Atom content type
// for reader compatibility, as spec.md §6 calls out explicitly.
func (d Deps) FeedHandler(contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := requestid.FromContext(r.Context())

		pageURL, opts, ferr := parseFeedQuery(r)
		if ferr != nil {
			respond.Error(w, r, requestID, d.DevMode, ferr)
			return
		}

		result, err := d.Orchestrator.Request(r.Context(), pageURL, opts)
		if err != nil {
			d.pipelineError(w, r, requestID, err)
			return
		}

		metrics.ObserveRequest(string(result.Path), time.Since(start))

		// The leading hex digits of the cache key come from the URL
		// alone, so the whole key is hashed to fingerprint URL and
		// options together.
		keySum := sha256.Sum256([]byte(feedurl.CacheKey(pageURL, opts)))
		etag := hex.EncodeToString(keySum[:8])

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(d.CacheDuration.Seconds())))
		w.Header().Set("ETag", `"`+etag+`"`)
		if !result.Feed.GeneratedAt.IsZero() {
			w.Header().Set("Last-Modified", result.Feed.GeneratedAt.UTC().Format(http.TimeFormat))
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(result.Feed.Bytes); err != nil {
			slog.Error("failed to write feed response", slog.Any("error", err))
		}
	}
}

type previewResponse struct {
	URL      string           `json:"url"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
	Articles []previewArticle `json:"articles"`
}

type previewArticle struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	PublishedAt string `json:"publishedAt"`
}

// Preview serves GET /preview: the first limit articles for url, with
// no feed assembly, per spec.md §6.
func (d Deps) Preview(w http.ResponseWriter, r *http.Request) {
	requestID := requestid.FromContext(r.Context())

	pageURL, opts, ferr := parseFeedQuery(r)
	if ferr != nil {
		respond.Error(w, r, requestID, d.DevMode, ferr)
		return
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = maxRequestLimit
	}
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page = n
		}
	}

	articles, err := d.gatherArticles(r.Context(), pageURL, limit)
	if err != nil {
		d.pipelineError(w, r, requestID, err)
		return
	}

	out := make([]previewArticle, 0, len(articles))
	for _, a := range articles {
		out = append(out, previewArticle{
			Title: a.Title, Link: a.Link, Description: a.Description,
			Image: a.Image, PublishedAt: a.PublishedAt.UTC().Format(time.RFC3339),
		})
	}
	respond.JSON(w, http.StatusOK, previewResponse{URL: pageURL, Page: page, Limit: limit, Articles: out})
}

type metadataResponse struct {
	URL               string   `json:"url"`
	Domain            string   `json:"domain"`
	DetectedFeedURL   string   `json:"detectedFeedUrl,omitempty"`
	DiscoveryStrategy string   `json:"discoveryStrategy,omitempty"`
	SampleCount       int      `json:"sampleArticleCount"`
	SampleTitles      []string `json:"sampleTitles"`
}

// Metadata serves GET /metadata, per spec.md §6.
func (d Deps) Metadata(w http.ResponseWriter, r *http.Request) {
	requestID := requestid.FromContext(r.Context())

	pageURL, _, ferr := parseFeedQuery(r)
	if ferr != nil {
		respond.Error(w, r, requestID, d.DevMode, ferr)
		return
	}

	domain, _ := feedurl.RegistrableDomain(pageURL)
	outcome := d.Discovery.Discover(r.Context(), pageURL)

	resp := metadataResponse{URL: pageURL, Domain: domain, SampleTitles: []string{}}
	if outcome.Found {
		resp.DetectedFeedURL = outcome.FeedURL
		resp.DiscoveryStrategy = string(outcome.Strategy)
	}

	articles, err := d.gatherArticles(r.Context(), pageURL, 5)
	if err == nil {
		resp.SampleCount = len(articles)
		for _, a := range articles {
			resp.SampleTitles = append(resp.SampleTitles, a.Title)
		}
	}

	respond.JSON(w, http.StatusOK, resp)
}

type validateRequest struct {
	URL string `json:"url"`
}

type validateResponse struct {
	Accessible bool   `json:"accessible"`
	CanScrape  bool   `json:"canScrape"`
	HasRSSFeed bool   `json:"hasRSSFeed"`
	RSSURL     string `json:"rssUrl,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Validate serves POST /validate, per spec.md §6.
func (d Deps) Validate(w http.ResponseWriter, r *http.Request) {
	requestID := requestid.FromContext(r.Context())

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, r, requestID, d.DevMode,
			respond.New(respond.KindInvalidInput, "request body must be {\"url\": \"...\"}", err))
		return
	}

	normalized, err := feedurl.Normalize(req.URL)
	if err != nil {
		respond.JSON(w, http.StatusOK, validateResponse{Reason: "invalid url: " + err.Error()})
		return
	}
	if err := feedurl.ValidatePublicHost(normalized); err != nil {
		respond.JSON(w, http.StatusOK, validateResponse{Reason: "blocked host: " + err.Error()})
		return
	}

	resp := validateResponse{}

	_, fetchErr := d.Fetch.GetBody(r.Context(), normalized)
	resp.Accessible = fetchErr == nil
	if fetchErr != nil {
		resp.Reason = fetchErr.Error()
	}

	outcome := d.Discovery.Discover(r.Context(), normalized)
	resp.HasRSSFeed = outcome.Found
	if outcome.Found {
		resp.RSSURL = outcome.FeedURL
	}

	if resp.Accessible {
		articles, extractErr := d.gatherArticles(r.Context(), normalized, 5)
		resp.CanScrape = extractErr == nil && len(articles) > 0
		if extractErr != nil && resp.Reason == "" {
			resp.Reason = extractErr.Error()
		}
	}

	respond.JSON(w, http.StatusOK, resp)
}

type cacheStatsResponse struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// CacheStats serves GET /cache/stats, per spec.md §6.
func (d Deps) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats := d.Cache.StatsSnapshot()
	respond.JSON(w, http.StatusOK, cacheStatsResponse{Hits: stats.Hits, Misses: stats.Misses, Entries: stats.Entries})
}

// CacheClear serves DELETE /cache[?url=], per spec.md §6.
func (d Deps) CacheClear(w http.ResponseWriter, r *http.Request) {
	requestID := requestid.FromContext(r.Context())

	if raw := r.URL.Query().Get("url"); raw != "" {
		normalized, err := feedurl.Normalize(raw)
		if err != nil {
			respond.Error(w, r, requestID, d.DevMode, respond.New(respond.KindInvalidInput, err.Error(), err))
			return
		}
		d.Cache.ClearByPage(feedurl.PagePrefix(normalized))
		respond.JSON(w, http.StatusOK, map[string]any{"cleared": normalized})
		return
	}

	d.Cache.Clear()
	respond.JSON(w, http.StatusOK, map[string]any{"cleared": "all"})
}

// gatherArticles runs discovery then either native-parses a
// discovered feed or falls back to extraction, mirroring the
// Orchestrator's path selection but without caching or assembly —
// used by the endpoints that need raw articles (/preview,
// /metadata, /validate).
func (d Deps) gatherArticles(ctx context.Context, pageURL string, limit int) ([]article.Article, error) {
	outcome := d.Discovery.Discover(ctx, pageURL)
	if outcome.Found {
		body, err := d.Fetch.GetBody(ctx, outcome.FeedURL)
		if err == nil {
			if articles, perr := feedparser.Parse(body.Bytes, outcome.FeedURL); perr == nil {
				return capArticles(articles, limit), nil
			}
		}
	}

	html, err := d.Fetch.GetBody(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	articles, err := extractor.Extract(string(html.Bytes), pageURL, limit)
	if err != nil {
		return nil, err
	}
	return articles, nil
}

func capArticles(articles []article.Article, limit int) []article.Article {
	if limit > 0 && len(articles) > limit {
		return articles[:limit]
	}
	return articles
}
