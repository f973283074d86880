// Package assembler implements the Feed Assembler of spec.md §4.E: two
// modes, pass-through with overrides (preserving an upstream feed's
// foreign elements verbatim) and synthesis (building RSS 2.0 bytes
// from an Article list).
package assembler

import (
	"time"

	"feedcast/internal/article"
)

// Envelope is the input to Synthesize: everything needed to build a
// self-contained RSS 2.0 document from an extracted Article list.
type Envelope struct {
	PageURL       string
	FeedSelfURL   string
	Title         string
	Description   string
	Articles      []article.Article
	CacheDuration time.Duration
	BuildTime     time.Time
}

// Overrides is the input to PassThrough: the caller-supplied fields
// that may override an upstream feed's channel/feed-level metadata.
type Overrides struct {
	Title       string
	Description string
	Limit       int
	SelfURL     string
	BuildTime   time.Time
}
