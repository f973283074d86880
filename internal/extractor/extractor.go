// Package extractor implements the Content Extractor of spec.md §4.C:
// turning a listing page's HTML into an ordered list of Article values
// using site-profile selectors, with a generic fallback profile and a
// go-readability pass that treats the whole page as one article when
// the list selectors find nothing.
package extractor

import (
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"

	"feedcast/internal/article"
	"feedcast/internal/feedurl"
)

// ErrNoArticles is returned when extraction yields an empty list after
// post-validation, per spec.md §7's NoArticles kind.
var ErrNoArticles = errors.New("no articles extracted")

const (
	minCandidateTextLen   = 50
	minTitleLen           = 10
	minDescriptionLen     = 30
	minPostValidationDesc = 20
)

// Extract parses html and returns up to maxArticles Article values,
// sorted stably by publish date descending.
func Extract(html, pageURL string, maxArticles int) ([]article.Article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	domain, err := feedurl.RegistrableDomain(pageURL)
	if err != nil {
		return nil, err
	}
	profile := profileFor(domain)

	for _, sel := range profile.RemoveSelectors {
		doc.Find(sel).Remove()
	}

	now := time.Now()
	seen := make(map[string]bool)
	var articles []article.Article
	var seenLinks = make(map[string]bool)

	doc.Find(profile.ArticleSelector).EachWithBreak(func(_ int, candidate *goquery.Selection) bool {
		if len(articles) >= 2*maxArticles {
			return false
		}

		text := strings.TrimSpace(candidate.Text())
		if len(text) < minCandidateTextLen {
			return true
		}
		if seen[text] {
			return true
		}
		seen[text] = true

		a, ok := buildArticle(candidate, profile, pageURL, now)
		if !ok {
			return true
		}
		if seenLinks[a.Link] {
			return true
		}
		seenLinks[a.Link] = true

		articles = append(articles, a)
		return true
	})

	if len(articles) == 0 {
		if a, ok := singleArticleFallback(doc, html, pageURL, now); ok {
			articles = append(articles, a)
		}
	}

	article.SortStableByPublishedDescending(articles)
	if len(articles) > maxArticles {
		articles = articles[:maxArticles]
	}
	if len(articles) == 0 {
		return nil, ErrNoArticles
	}
	return articles, nil
}

// singleArticleFallback treats the whole page as one article when the
// site-profile list selectors found nothing — the go-readability path
// for single-article pages that never match a listing-page profile.
func singleArticleFallback(doc *goquery.Document, html, pageURL string, now time.Time) (article.Article, bool) {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if len(title) < minTitleLen {
		return article.Article{}, false
	}

	body := CleanBody(pageURL, html)
	description := article.TruncateDescription(strings.TrimSpace(body))
	if len(description) < minPostValidationDesc {
		return article.Article{}, false
	}

	image, _ := doc.Find(`meta[property="og:image"]`).First().Attr("content")
	if image != "" {
		if abs, err := feedurl.Resolve(pageURL, image); err == nil {
			image = abs
		}
	}

	return article.Article{
		Title:       article.CollapseWhitespace(title),
		Link:        pageURL,
		Description: article.CollapseWhitespace(description),
		Image:       image,
		PublishedAt: now,
		GUID:        pageURL,
	}, true
}

func buildArticle(candidate *goquery.Selection, profile SiteProfile, pageURL string, now time.Time) (article.Article, bool) {
	title := firstMatchingText(candidate, profile.TitleSelectors, minTitleLen)
	if title == "" {
		return article.Article{}, false
	}

	link := firstLink(candidate, profile.LinkSelectors, pageURL)
	if link == "" {
		return article.Article{}, false
	}

	description := firstMatchingText(candidate, profile.DescriptionSelectors, minDescriptionLen)
	if description == "" {
		description = article.TruncateDescription(strings.TrimSpace(candidate.Text()))
	}
	if len(description) < minPostValidationDesc {
		return article.Article{}, false
	}

	publishedAt := firstDate(candidate, profile.DateSelectors, now)
	image := firstImage(candidate, profile.ImageSelectors, pageURL)
	author := firstMatchingText(candidate, []string{".author, .byline, [rel=author]"}, 0)
	category := firstMatchingText(candidate, []string{".category, .tag, .section"}, 0)

	a := article.Article{
		Title:       article.CollapseWhitespace(title),
		Link:        link,
		Description: article.CollapseWhitespace(description),
		Author:      author,
		Category:    category,
		Image:       image,
		PublishedAt: publishedAt,
		GUID:        link,
	}
	return a, true
}

func firstMatchingText(candidate *goquery.Selection, selectors []string, minLen int) string {
	for _, sel := range selectors {
		found := ""
		candidate.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if text == "" {
				if titleAttr, ok := s.Attr("title"); ok {
					text = strings.TrimSpace(titleAttr)
				}
			}
			if len(text) >= minLen {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func firstLink(candidate *goquery.Selection, selectors []string, pageURL string) string {
	for _, sel := range selectors {
		href, ok := candidate.Find(sel).First().Attr("href")
		if !ok || href == "" {
			continue
		}
		abs, err := feedurl.Resolve(pageURL, href)
		if err != nil {
			continue
		}
		return abs
	}
	return ""
}

func firstImage(candidate *goquery.Selection, selectors []string, pageURL string) string {
	for _, sel := range selectors {
		img := candidate.Find(sel).First()
		for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
			if v, ok := img.Attr(attr); ok && v != "" {
				abs, err := feedurl.Resolve(pageURL, v)
				if err == nil {
					return abs
				}
			}
		}
	}
	return ""
}

// firstDate parses the first selector match it finds, trying strict
// RFC-3339 before falling back to dateparse's locale-free permissive
// parser, per spec.md §4.C ("RFC-3339 or locale-free permissive").
func firstDate(candidate *goquery.Selection, selectors []string, fallback time.Time) time.Time {
	for _, sel := range selectors {
		node := candidate.Find(sel).First()
		for _, attr := range []string{"datetime", "data-time"} {
			if v, ok := node.Attr(attr); ok && v != "" {
				if t, ok := parseDate(v); ok {
					return t
				}
			}
		}
		if text := strings.TrimSpace(node.Text()); text != "" {
			if t, ok := parseDate(text); ok {
				return t
			}
		}
	}
	return fallback
}

func parseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// CleanBody runs go-readability over a single article's page, used as
// a fallback cleanup pass when a site's listing-page fragments are too
// sparse for the post-validation thresholds above to accept directly.
// Failures are logged and the original text is returned unmodified.
func CleanBody(pageURL, html string) string {
	parsed, _ := url.Parse(pageURL)
	a, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil || a.TextContent == "" {
		slog.Debug("readability cleanup failed", slog.String("page_url", pageURL), slog.Any("error", err))
		return html
	}
	return a.TextContent
}
