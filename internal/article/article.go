// Package article defines the Article record produced by both the
// native Feed Parser and the Content Extractor, and the invariants
// spec.md §3 places on it.
package article

import (
	"sort"
	"strings"
	"time"
)

const (
	minTitleLen       = 10
	descriptionMaxLen = 300
)

// Article is the normalized unit of syndication content, per spec.md §3.
type Article struct {
	Title       string
	Link        string
	Description string
	Content     string
	Author      string
	Category    string
	Image       string
	PublishedAt time.Time
	GUID        string
}

// New builds an Article, enforcing the invariants of spec.md §3:
//   - title is non-empty and >= 10 chars after whitespace collapse
//   - link is absolute (the caller is responsible for resolving it)
//   - guid defaults to link
//   - publishedAt falls back to extractedAt when zero
//   - description is truncated at 300 chars with an ellipsis
//
// New returns false when title or link fail validation, so callers can
// discard the candidate without constructing a half-valid Article.
func New(title, link, description string, publishedAt, extractedAt time.Time) (Article, bool) {
	title = CollapseWhitespace(title)
	if len(title) < minTitleLen {
		return Article{}, false
	}
	if link == "" {
		return Article{}, false
	}

	if publishedAt.IsZero() {
		publishedAt = extractedAt
	}

	return Article{
		Title:       title,
		Link:        link,
		Description: TruncateDescription(description),
		PublishedAt: publishedAt,
		GUID:        link,
	}, true
}

// CollapseWhitespace trims and collapses runs of whitespace to a single
// space, matching the "whitespace collapse" rule used to measure title
// length in spec.md §3.
func CollapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// TruncateDescription truncates s to 300 characters with an ellipsis,
// per spec.md §3. Strings already within the limit are returned as-is.
func TruncateDescription(s string) string {
	runes := []rune(s)
	if len(runes) <= descriptionMaxLen {
		return s
	}
	return string(runes[:descriptionMaxLen]) + "…"
}

// SortStableByPublishedDescending sorts articles by PublishedAt
// descending, preserving the relative order of equal timestamps
// (spec.md §4.C "Sort stably by publishedAt descending").
func SortStableByPublishedDescending(articles []Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
}

// DedupeByLink removes articles whose Link has already been seen,
// keeping the first occurrence, per the Content Extractor invariant
// in spec.md §8 ("no duplicate links").
func DedupeByLink(articles []Article) []Article {
	seen := make(map[string]bool, len(articles))
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		if a.Link == "" || seen[a.Link] {
			continue
		}
		seen[a.Link] = true
		out = append(out, a)
	}
	return out
}
