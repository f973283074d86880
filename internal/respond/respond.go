// Package respond provides the HTTP adapter layer's JSON response
// envelope, adapted from the teacher's internal/handler/http/respond
// package to spec.md §7's error shape: { error, code, message,
// requestId, timestamp, path }.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Kind names a taxonomy entry from spec.md §7 ("kinds, not type
// names"). Each Kind carries a fixed HTTP status.
type Kind string

const (
	KindInvalidInput      Kind = "InvalidInput"
	KindOriginTimeout     Kind = "OriginTimeout"
	KindOriginUnreachable Kind = "OriginUnreachable"
	KindOriginBlocked     Kind = "OriginBlocked"
	KindOriginClient      Kind = "OriginClient4xx"
	KindOriginServer      Kind = "OriginServer5xx"
	KindParseFailure      Kind = "ParseFailure"
	KindNoArticles        Kind = "NoArticles"
	KindRateLimited       Kind = "RateLimited"
	KindInternal          Kind = "Internal"
)

var kindStatus = map[Kind]int{
	KindInvalidInput:      http.StatusBadRequest,
	KindOriginTimeout:     http.StatusRequestTimeout,
	KindOriginUnreachable: http.StatusBadGateway,
	KindOriginBlocked:     http.StatusBadGateway,
	KindOriginClient:      http.StatusBadGateway,
	KindOriginServer:      http.StatusBadGateway,
	KindParseFailure:      http.StatusUnprocessableEntity,
	KindNoArticles:        http.StatusNotFound,
	KindRateLimited:       http.StatusTooManyRequests,
	KindInternal:          http.StatusInternalServerError,
}

// CoreError carries a taxonomy Kind, an HTTP status derived from it,
// a user-facing message and the underlying cause, in the same shape
// as the teacher's respond.AppError.
type CoreError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *CoreError) Unwrap() error { return e.Err }

// Status returns the HTTP status for e.Kind, defaulting to 500 for an
// unrecognized kind.
func (e *CoreError) Status() int {
	if status, ok := kindStatus[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// New builds a CoreError.
func New(kind Kind, message string, cause error) *CoreError {
	return &CoreError{Kind: kind, Message: message, Err: cause}
}

// Envelope is the client-visible error shape of spec.md §7.
type Envelope struct {
	Error     bool   `json:"error"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

// JSON writes a JSON response with the given status code and body.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Default().Error("failed to encode JSON response",
				slog.Int("status_code", code), slog.Any("error", err))
		}
	}
}

// Error writes err as spec.md §7's envelope. In production mode
// (devMode false) a non-operational error's message is replaced with
// a fixed string and the underlying cause is only logged, never sent;
// CoreErrors (which are always operational, user-facing outcomes of
// the pipeline) keep their own message in both modes.
func Error(w http.ResponseWriter, r *http.Request, requestID string, devMode bool, err error) {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		writeEnvelope(w, r, requestID, coreErr.Status(), coreErr.Message)
		return
	}

	slog.Error("unhandled internal error",
		slog.String("path", r.URL.Path), slog.String("request_id", requestID), slog.Any("error", err))

	message := "internal server error"
	if devMode {
		message = err.Error()
	}
	writeEnvelope(w, r, requestID, http.StatusInternalServerError, message)
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, requestID string, code int, message string) {
	JSON(w, code, Envelope{
		Error:     true,
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	})
}
