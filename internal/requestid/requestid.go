// Package requestid generates and propagates a per-request
// correlation ID, adapted from the teacher's
// internal/handler/http/requestid package.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"

	// Header is the HTTP header name request IDs travel in, both
	// inbound (caller-supplied) and outbound (echoed back).
	Header = "X-Request-Id"
)

// FromContext retrieves the request ID from ctx, or "" if none is set.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// WithRequestID returns a context carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}

// Middleware propagates an inbound X-Request-Id header or mints a new
// UUIDv4, echoes it in the response header, and stores it in the
// request context for downstream logging and error envelopes.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}
