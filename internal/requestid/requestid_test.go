package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware_GeneratesIDWhenAbsent(t *testing.T) {
	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/feed", nil)
	h.ServeHTTP(w, r)

	if seen == "" {
		t.Error("expected a generated request ID in context")
	}
	if w.Header().Get(Header) != seen {
		t.Errorf("response header = %q, want %q", w.Header().Get(Header), seen)
	}
}

func TestMiddleware_PropagatesInboundID(t *testing.T) {
	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/feed", nil)
	r.Header.Set(Header, "caller-supplied-id")
	h.ServeHTTP(w, r)

	if seen != "caller-supplied-id" {
		t.Errorf("seen = %q, want caller-supplied-id", seen)
	}
	if w.Header().Get(Header) != "caller-supplied-id" {
		t.Errorf("response header = %q, want caller-supplied-id", w.Header().Get(Header))
	}
}

func TestFromContext_EmptyWhenUnset(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/feed", nil)
	if id := FromContext(r.Context()); id != "" {
		t.Errorf("FromContext = %q, want empty", id)
	}
}
