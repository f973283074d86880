package assembler

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"feedcast/internal/article"
)

// Synthesize builds byte-stable RSS 2.0 bytes from env, per spec.md
// §4.E mode 2. The namespace declarations (content, dc, atom, media)
// are always present: every synthesized feed is capable of emitting a
// namespaced child, so the declarations are never conditionally
// omitted — only the children themselves are conditional.
func Synthesize(env Envelope) ([]byte, error) {
	ttlMinutes := int(env.CacheDuration / time.Minute)
	if ttlMinutes < 1 {
		ttlMinutes = 1
	}

	channel := rssChannel{
		Title:         env.Title,
		Link:          env.PageURL,
		Description:   env.Description,
		Language:      "en-us",
		LastBuildDate: env.BuildTime.Format(time.RFC1123Z),
		Generator:     "feedcast",
		TTL:           ttlMinutes,
		AtomLink: &atomLink{
			Href: env.FeedSelfURL,
			Rel:  "self",
			Type: "application/rss+xml",
		},
	}

	for i, a := range env.Articles {
		channel.Items = append(channel.Items, synthesizeItem(a, i))
	}

	doc := rssDocument{
		Version:      "2.0",
		XMLNSContent: "http://purl.org/rss/1.0/modules/content/",
		XMLNSDC:      "http://purl.org/dc/elements/1.1/",
		XMLNSAtom:    "http://www.w3.org/2005/Atom",
		XMLNSMedia:   "http://search.yahoo.com/mrss/",
		Channel:      channel,
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal synthesized feed: %w", err)
	}

	out := []byte(xml.Header)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}

func synthesizeItem(a article.Article, index int) rssItem {
	guid := a.GUID
	if guid == "" {
		guid = fmt.Sprintf("%s#%d", a.Link, index)
	}

	item := rssItem{
		Title:       a.Title,
		Link:        a.Link,
		Description: article.CollapseWhitespace(a.Description),
		GUID:        &rssGUID{Value: guid, IsPermaLink: guid == a.Link},
		PubDate:     a.PublishedAt.Format(time.RFC1123Z),
	}
	if a.Author != "" {
		item.DCCreator = a.Author
	}
	if a.Link != "" {
		item.DCSource = &dcSource{URL: a.Link, Value: hostOf(a.Link)}
		item.DCIdentifier = guid
	}
	if a.Content != "" {
		item.ContentEncoded = &cdataString{Value: a.Content}
	}
	if a.Image != "" {
		item.Enclosure = &rssEnclosure{URL: a.Image, Type: guessImageType(a.Image)}
		item.MediaContent = &mediaContent{URL: a.Image, Medium: "image"}
		item.MediaThumbnail = &mediaThumbnail{URL: a.Image}
	}
	return item
}

func hostOf(link string) string {
	trimmed := strings.TrimPrefix(link, "https://")
	trimmed = strings.TrimPrefix(trimmed, "http://")
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed
}

func guessImageType(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// --- XML document model ---
//
// encoding/xml reproduces a struct tag's literal name verbatim,
// including a namespace prefix such as "content:encoded" — the
// idiomatic way to emit RSS's common namespace extensions without a
// full namespace-aware marshaler.

type rssDocument struct {
	XMLName      xml.Name   `xml:"rss"`
	Version      string     `xml:"version,attr"`
	XMLNSContent string     `xml:"xmlns:content,attr"`
	XMLNSDC      string     `xml:"xmlns:dc,attr"`
	XMLNSAtom    string     `xml:"xmlns:atom,attr"`
	XMLNSMedia   string     `xml:"xmlns:media,attr"`
	Channel      rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Generator     string    `xml:"generator"`
	TTL           int       `xml:"ttl"`
	AtomLink      *atomLink `xml:"atom:link,omitempty"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title          string          `xml:"title"`
	Link           string          `xml:"link"`
	Description    string          `xml:"description"`
	GUID           *rssGUID        `xml:"guid,omitempty"`
	PubDate        string          `xml:"pubDate"`
	DCCreator      string          `xml:"dc:creator,omitempty"`
	DCSource       *dcSource       `xml:"dc:source,omitempty"`
	DCIdentifier   string          `xml:"dc:identifier,omitempty"`
	ContentEncoded *cdataString    `xml:"content:encoded,omitempty"`
	Enclosure      *rssEnclosure   `xml:"enclosure,omitempty"`
	MediaContent   *mediaContent   `xml:"media:content,omitempty"`
	MediaThumbnail *mediaThumbnail `xml:"media:thumbnail,omitempty"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

type dcSource struct {
	URL   string `xml:"url,attr"`
	Value string `xml:",chardata"`
}

type cdataString struct {
	Value string `xml:",cdata"`
}

type rssEnclosure struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

type mediaContent struct {
	URL    string `xml:"url,attr"`
	Medium string `xml:"medium,attr"`
}

type mediaThumbnail struct {
	URL string `xml:"url,attr"`
}
