package assembler

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// PassThrough rewrites an upstream feed's bytes with the caller's
// overrides, per spec.md §4.E mode 1: only channel/feed title,
// description, lastBuildDate, generator and the self-reference link
// are mutated; every other element — including namespaced extensions
// this package has never heard of — passes through unchanged. Items
// beyond overrides.Limit are dropped from the end.
//
// This walks the token stream rather than unmarshaling into a typed
// struct, so foreign elements survive without this package needing to
// know their shape.
func PassThrough(original []byte, overrides Overrides) ([]byte, error) {
	decoder := xml.NewDecoder(bytes.NewReader(original))

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	encoder := xml.NewEncoder(&buf)

	var (
		depth       int
		metaDepth   = 3 // RSS: rss>channel>title|item; reset to 2 once an Atom root is seen
		itemCount   int
		skipping    bool
		skipDepth   int
		replaceNext string // local name of the feed-level element whose chardata we're about to overwrite
	)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode upstream feed: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++

			if depth == 1 && t.Name.Local == "feed" {
				// Atom has no intermediate <channel>-equivalent wrapper:
				// <feed><title>/<entry> sit one level shallower than RSS's
				// <rss><channel><title>/<item>.
				metaDepth = 2
			}

			if skipping {
				continue
			}

			if depth == metaDepth {
				switch t.Name.Local {
				case "title":
					if overrides.Title != "" {
						replaceNext = t.Name.Local
					}
				case "description", "subtitle":
					if overrides.Description != "" {
						replaceNext = "description"
					}
				case "lastBuildDate", "updated", "generator":
					replaceNext = canonicalFieldName(t.Name.Local)
				case "link":
					if isAtomSelfLink(t) {
						t = rewriteSelfLink(t, overrides.SelfURL)
					}
				case "item", "entry":
					itemCount++
					if overrides.Limit > 0 && itemCount > overrides.Limit {
						skipping = true
						skipDepth = depth
						continue
					}
				}
			}

			if err := encoder.EncodeToken(t); err != nil {
				return nil, err
			}

		case xml.EndElement:
			if skipping {
				if depth == skipDepth {
					skipping = false
				}
				depth--
				continue
			}
			if replaceNext != "" {
				// The element closed with no chardata of its own (e.g.
				// an originally-empty <generator/>); emit the override
				// value before the closing tag.
				if err := encoder.EncodeToken(xml.CharData(overrideValue(replaceNext, overrides))); err != nil {
					return nil, err
				}
				replaceNext = ""
			}
			if err := encoder.EncodeToken(t); err != nil {
				return nil, err
			}
			depth--

		case xml.CharData:
			if skipping {
				continue
			}
			if replaceNext != "" {
				replacement := overrideValue(replaceNext, overrides)
				if err := encoder.EncodeToken(xml.CharData(replacement)); err != nil {
					return nil, err
				}
				replaceNext = ""
				continue
			}
			if err := encoder.EncodeToken(t); err != nil {
				return nil, err
			}

		default:
			if skipping {
				continue
			}
			if err := encoder.EncodeToken(tok); err != nil {
				return nil, err
			}
		}
	}

	if err := encoder.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// canonicalFieldName maps an Atom element name to the RSS field name
// overrideValue keys on, so both formats share one override table.
func canonicalFieldName(local string) string {
	if local == "updated" {
		return "lastBuildDate"
	}
	return local
}

func overrideValue(field string, overrides Overrides) string {
	switch field {
	case "title":
		if overrides.Title != "" {
			return overrides.Title
		}
	case "description":
		if overrides.Description != "" {
			return overrides.Description
		}
	case "lastBuildDate":
		return overrides.BuildTime.Format(time.RFC1123Z)
	case "generator":
		return "feedcast"
	}
	return ""
}

func isAtomSelfLink(t xml.StartElement) bool {
	for _, attr := range t.Attr {
		if attr.Name.Local == "rel" && attr.Value == "self" {
			return true
		}
	}
	return false
}

func rewriteSelfLink(t xml.StartElement, selfURL string) xml.StartElement {
	if selfURL == "" {
		return t
	}
	for i, attr := range t.Attr {
		if attr.Name.Local == "href" {
			t.Attr[i].Value = selfURL
			return t
		}
	}
	return t
}
