// Package discovery implements the Feed Discovery Engine of spec.md
// §4.B: a multi-strategy search for a syndication feed URL reachable
// from a given page, backed by the shared Origin Fetcher for every
// probe it issues.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"feedcast/internal/feedurl"
	"feedcast/internal/fetcher"
)

// Strategy names an entry in the fixed strategy order. Strategies 6-8
// (sitemap, robots.txt, content mining) exist conceptually but are
// disabled in the default budget per spec.md §9: they would multiply
// per-request fetch count beyond the shared rate gate.
type Strategy string

const (
	StrategyHTMLHead   Strategy = "html_head"
	StrategyDomainRule Strategy = "domain_rule"
	StrategyURLPattern Strategy = "url_pattern"
	StrategyCommonPath Strategy = "common_path"
	StrategyWordPress  Strategy = "wordpress"

	// Disabled strategies, named for completeness and statistics only.
	StrategySitemap       Strategy = "sitemap"
	StrategyRobotsTxt     Strategy = "robots_txt"
	StrategyContentMining Strategy = "content_mining"
)

// disabledStrategies lists the strategies that strategies() always
// skips (Open Question resolved in DESIGN.md). It is a fixed package
// table; no option or flag turns them on.
var disabledStrategies = map[Strategy]bool{
	StrategySitemap:       true,
	StrategyRobotsTxt:     true,
	StrategyContentMining: true,
}

// Outcome is the result of a discover call.
type Outcome struct {
	Found    bool
	FeedURL  string
	Strategy Strategy
	Reason   string // populated when Found is false, e.g. "recently_failed"
}

// Engine is the Feed Discovery Engine. It owns its own Fetcher (tuned
// with the discovery min-gap/timeout per spec.md §4.A) and the two
// caches described in §4.B.
type Engine struct {
	fetch *fetcher.Fetcher

	cache  *ttlCache
	failed *ttlCache
}

// New builds a discovery Engine backed by f, which should be a Fetcher
// constructed with fetcher.NewDiscoveryFetcher so probes honor the
// wider discovery min-gap.
func New(f *fetcher.Fetcher) *Engine {
	return &Engine{
		fetch:  f,
		cache:  newTTLCache(discoveryCacheTTL),
		failed: newTTLCache(failedURLTTL),
	}
}

// Discover runs the strategy chain against pageURL in order, returning
// on first success. It never returns an error: failures surface as a
// negative Outcome, matching spec.md §4.B's "the Engine never raises."
func (e *Engine) Discover(ctx context.Context, pageURL string) Outcome {
	if cached, ok := e.cache.get(pageURL); ok {
		return cached.(Outcome)
	}
	if _, ok := e.failed.get(pageURL); ok {
		return Outcome{Found: false, Reason: "recently_failed"}
	}

	for _, step := range e.strategies() {
		candidates, err := step.probe(ctx, e, pageURL)
		if err != nil {
			slog.Warn("discovery strategy failed", slog.String("strategy", string(step.name)), slog.String("page_url", pageURL), slog.Any("error", err))
			continue
		}
		for _, candidate := range candidates {
			if e.validate(ctx, candidate) {
				outcome := Outcome{Found: true, FeedURL: candidate, Strategy: step.name}
				e.cache.set(pageURL, outcome)
				return outcome
			}
		}
	}

	e.failed.set(pageURL, struct{}{})
	return Outcome{Found: false, Reason: "no_feed_found"}
}

type strategyStep struct {
	name  Strategy
	probe func(ctx context.Context, e *Engine, pageURL string) ([]string, error)
}

// strategies returns the fixed, ordered list of enabled strategies,
// filtering out every strategy named in disabledStrategies. Tie-breaking
// is positional: earlier strategies, and earlier candidates within a
// strategy, win.
func (e *Engine) strategies() []strategyStep {
	all := []strategyStep{
		{StrategyHTMLHead, probeHTMLHead},
		{StrategyDomainRule, probeDomainRule},
		{StrategyURLPattern, probeURLPattern},
		{StrategyCommonPath, probeCommonPath},
		{StrategyWordPress, probeWordPress},
		{StrategySitemap, probeSitemap},
		{StrategyRobotsTxt, probeRobotsTxt},
		{StrategyContentMining, probeContentMining},
	}
	steps := make([]strategyStep, 0, len(all))
	for _, s := range all {
		if disabledStrategies[s.name] {
			continue
		}
		steps = append(steps, s)
	}
	return steps
}

// validate fetches candidate and checks it satisfies spec.md §4.B's
// body-shape predicate for a syndication feed.
func (e *Engine) validate(ctx context.Context, candidate string) bool {
	body, err := e.fetch.GetBody(ctx, candidate)
	if err != nil {
		return false
	}
	return isFeedBody(body.Bytes)
}

func isFeedBody(body []byte) bool {
	if len(body) < 50 {
		return false
	}
	lower := strings.ToLower(string(body))
	markers := []string{"<rss", "<feed", "<channel>", `xmlns="http://www.w3.org/2005/atom"`, "xmlns:atom="}
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func probeHTMLHead(ctx context.Context, e *Engine, pageURL string) ([]string, error) {
	body, err := e.fetch.GetBody(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body.Bytes)))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var hrefs []string
	selectors := []string{
		`link[type="application/rss+xml"]`,
		`link[type="application/atom+xml"]`,
		`link[rel="alternate"][type="application/rss+xml"]`,
		`link[rel="alternate"][type="application/atom+xml"]`,
		`link[rel="feed"]`,
	}
	for _, sel := range selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if href, ok := s.Attr("href"); ok {
				hrefs = append(hrefs, href)
			}
		})
	}

	resolved := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		abs, err := feedurl.Resolve(pageURL, href)
		if err != nil {
			continue
		}
		resolved = append(resolved, abs)
	}
	return resolved, nil
}

func probeDomainRule(_ context.Context, _ *Engine, pageURL string) ([]string, error) {
	domain, err := feedurl.RegistrableDomain(pageURL)
	if err != nil {
		return nil, err
	}
	patterns := rulesForDomain(domain)
	if len(patterns) == 0 {
		return nil, nil
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	origin := u.Scheme + "://" + u.Host
	segment := feedurl.FirstPathSegment(pageURL)

	var out []string
	for _, p := range patterns {
		switch p.Kind {
		case "fixed":
			out = append(out, origin+p.Path)
		case "pathToRss":
			if segment == "" {
				// A root request has no segment to substitute; fall
				// back to the domain's homepage feed (a fixed pattern
				// elsewhere in this same list).
				continue
			}
			out = append(out, origin+strings.ReplaceAll(p.Path, "{s}", segment))
		}
	}
	return out, nil
}

func probeURLPattern(_ context.Context, _ *Engine, pageURL string) ([]string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	origin := u.Scheme + "://" + u.Host
	segment := feedurl.FirstPathSegment(pageURL)

	if segment == "" {
		return []string{origin + "/rss/trang-chu.rss", origin + "/rss"}, nil
	}
	return []string{origin + "/rss/" + segment + ".rss", origin + "/" + segment + "/feed"}, nil
}

func probeCommonPath(_ context.Context, _ *Engine, pageURL string) ([]string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	origin := u.Scheme + "://" + u.Host
	return []string{origin + "/rss", origin + "/feed"}, nil
}

func probeWordPress(_ context.Context, _ *Engine, pageURL string) ([]string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	origin := u.Scheme + "://" + u.Host
	trimmed := strings.TrimRight(pageURL, "/")
	return []string{trimmed + "/feed", origin + "/feed"}, nil
}

// probeSitemap, probeRobotsTxt and probeContentMining are no-op
// placeholders for the always-skipped strategies named in
// disabledStrategies: each would multiply per-request fetch count
// beyond the shared rate gate (spec.md §9 Open Question 1). Each
// returns no candidates.
func probeSitemap(_ context.Context, _ *Engine, _ string) ([]string, error) {
	return nil, nil
}

func probeRobotsTxt(_ context.Context, _ *Engine, _ string) ([]string, error) {
	return nil, nil
}

func probeContentMining(_ context.Context, _ *Engine, _ string) ([]string, error) {
	return nil, nil
}
