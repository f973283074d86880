// Package feedparser implements the native Feed Parser of spec.md
// §4.D: turning raw RSS 2.0 or Atom bytes into an ordered Article
// list using github.com/mmcdole/gofeed, the same library the teacher
// uses in internal/infra/scraper/rss.go.
package feedparser

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"feedcast/internal/article"
)

// ParseError wraps a parse failure with the feed URL it came from, per
// spec.md §4.D: "A parse failure surfaces as ParseError(feedURL) — the
// Orchestrator then falls through to synthesis."
type ParseError struct {
	FeedURL string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse feed %s: %v", e.FeedURL, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Parse parses raw RSS 2.0 or Atom bytes into an Article list. Unknown
// elements are ignored; gofeed's own format sniffing decides whether
// the bytes are RSS or Atom.
func Parse(body []byte, feedURL string) ([]article.Article, error) {
	fp := gofeed.NewParser()
	feed, err := fp.ParseString(string(body))
	if err != nil {
		return nil, &ParseError{FeedURL: feedURL, Cause: err}
	}

	now := time.Now()
	articles := make([]article.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		a, ok := fromItem(item, now)
		if !ok {
			continue
		}
		articles = append(articles, a)
	}
	return articles, nil
}

func fromItem(item *gofeed.Item, now time.Time) (article.Article, bool) {
	publishedAt := now
	if item.PublishedParsed != nil {
		publishedAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		publishedAt = *item.UpdatedParsed
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}

	guid := item.GUID
	if guid == "" {
		guid = item.Link
	}

	image := ""
	if item.Image != nil {
		image = item.Image.URL
	}
	if image == "" {
		for _, enc := range item.Enclosures {
			if strings.HasPrefix(enc.Type, "image/") {
				image = enc.URL
				break
			}
		}
	}

	author := ""
	if item.Author != nil {
		author = item.Author.Name
	} else if len(item.Authors) > 0 {
		author = item.Authors[0].Name
	}

	category := ""
	if len(item.Categories) > 0 {
		category = item.Categories[0]
	}

	a, ok := article.New(item.Title, item.Link, item.Description, publishedAt, now)
	if !ok {
		return article.Article{}, false
	}
	a.Content = content
	a.Author = author
	a.Category = category
	a.Image = image
	if guid != "" {
		a.GUID = guid
	}
	return a, true
}
