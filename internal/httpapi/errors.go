package httpapi

import (
	"context"
	"errors"

	"feedcast/internal/extractor"
	"feedcast/internal/feedparser"
	"feedcast/internal/feedurl"
	"feedcast/internal/fetcher"
	"feedcast/internal/respond"
)

// classify maps an internal pipeline error to the spec.md §7 Kind
// taxonomy, following the teacher's pattern of mapping known sentinel
// and typed errors at the HTTP boundary rather than inside the core.
func classify(err error) *respond.CoreError {
	if err == nil {
		return nil
	}

	var coreErr *respond.CoreError
	if errors.As(err, &coreErr) {
		return coreErr
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, fetcher.ErrTimeout) {
		return respond.New(respond.KindOriginTimeout, "fetching the origin timed out", err)
	}
	if errors.Is(err, fetcher.ErrBlocked) {
		return respond.New(respond.KindOriginBlocked, "origin is temporarily unreachable, try again later", err)
	}
	if errors.Is(err, fetcher.ErrUnreachable) || errors.Is(err, fetcher.ErrTooManyRedirects) {
		return respond.New(respond.KindOriginUnreachable, "could not reach the origin", err)
	}
	if errors.Is(err, feedurl.ErrInvalidURL) || errors.Is(err, feedurl.ErrBlockedHost) {
		return respond.New(respond.KindInvalidInput, err.Error(), err)
	}
	if errors.Is(err, extractor.ErrNoArticles) {
		return respond.New(respond.KindNoArticles, "no articles found for this page", err)
	}

	var clientErr *fetcher.ClientError
	if errors.As(err, &clientErr) {
		return respond.New(respond.KindOriginClient, "origin returned a client error", err)
	}
	var serverErr *fetcher.ServerError
	if errors.As(err, &serverErr) {
		return respond.New(respond.KindOriginServer, "origin returned a server error after retries", err)
	}

	var parseErr *feedparser.ParseError
	if errors.As(err, &parseErr) {
		return respond.New(respond.KindParseFailure, "could not parse the discovered feed", err)
	}

	return nil // not a recognized operational error; caller falls through to Internal
}
