package feedparser

import (
	"errors"
	"testing"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <link>https://example.com/</link>
    <description>An example feed</description>
    <item>
      <title>First article of reasonable length</title>
      <link>https://example.com/articles/1</link>
      <description>A description of the first article.</description>
      <guid>https://example.com/articles/1</guid>
      <pubDate>Mon, 01 Jan 2026 10:00:00 GMT</pubDate>
      <category>news</category>
    </item>
    <item>
      <title>Second article of reasonable length</title>
      <link>https://example.com/articles/2</link>
      <description>A description of the second article.</description>
      <pubDate>Tue, 02 Jan 2026 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Atom Feed</title>
  <entry>
    <title>Atom entry with a reasonably long title</title>
    <link href="https://example.com/entries/1"/>
    <id>https://example.com/entries/1</id>
    <summary>An atom entry summary.</summary>
    <updated>2026-01-01T10:00:00Z</updated>
  </entry>
</feed>`

func TestParse_RSS(t *testing.T) {
	articles, err := Parse([]byte(sampleRSS), "https://example.com/rss")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("got %d articles, want 2", len(articles))
	}
	if articles[0].GUID != "https://example.com/articles/1" {
		t.Errorf("guid = %q", articles[0].GUID)
	}
	if articles[0].Category != "news" {
		t.Errorf("category = %q", articles[0].Category)
	}
	if articles[1].GUID != "https://example.com/articles/2" {
		t.Errorf("expected guid to default to link, got %q", articles[1].GUID)
	}
}

func TestParse_Atom(t *testing.T) {
	articles, err := Parse([]byte(sampleAtom), "https://example.com/atom")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("got %d articles, want 1", len(articles))
	}
	if articles[0].Link != "https://example.com/entries/1" {
		t.Errorf("link = %q", articles[0].Link)
	}
}

func TestParse_MalformedReturnsParseError(t *testing.T) {
	_, err := Parse([]byte("not a feed at all"), "https://example.com/rss")
	if err == nil {
		t.Fatal("expected error")
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if parseErr.FeedURL != "https://example.com/rss" {
		t.Errorf("feed url = %q", parseErr.FeedURL)
	}
}
