package httpapi

import (
	"net/http"
	"strconv"

	"feedcast/internal/feedurl"
	"feedcast/internal/respond"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 500
	maxRequestLimit   = 50
)

// parseFeedQuery parses and validates the url/title/description/limit
// query parameters shared by /feed, /preview and /metadata, per
// spec.md §6.
func parseFeedQuery(r *http.Request) (string, feedurl.Options, *respond.CoreError) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		return "", feedurl.Options{}, respond.New(respond.KindInvalidInput, "url is required", nil)
	}

	title := r.URL.Query().Get("title")
	if len(title) > maxTitleLen {
		return "", feedurl.Options{}, respond.New(respond.KindInvalidInput, "title exceeds 100 characters", nil)
	}

	description := r.URL.Query().Get("description")
	if len(description) > maxDescriptionLen {
		return "", feedurl.Options{}, respond.New(respond.KindInvalidInput, "description exceeds 500 characters", nil)
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRequestLimit {
			return "", feedurl.Options{}, respond.New(respond.KindInvalidInput, "limit must be an integer between 1 and 50", nil)
		}
		limit = n
	}

	normalized, err := feedurl.Normalize(raw)
	if err != nil {
		return "", feedurl.Options{}, respond.New(respond.KindInvalidInput, err.Error(), err)
	}
	if err := feedurl.ValidatePublicHost(normalized); err != nil {
		return "", feedurl.Options{}, respond.New(respond.KindInvalidInput, err.Error(), err)
	}

	return normalized, feedurl.Options{Title: title, Description: description, Limit: limit}, nil
}
