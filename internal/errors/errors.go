// Package errors renders API failures as a JSON envelope.
//
//	{"error": {"code": "...", "message": "...", "request_id": "...", "details": {...}}}
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/3leaps/bucketnav/pkg/browse"
	"github.com/3leaps/bucketnav/pkg/match"
	"github.com/3leaps/bucketnav/pkg/provider"
	"github.com/3leaps/bucketnav/pkg/session"
	"github.com/3leaps/bucketnav/pkg/upload"
)

// Error codes that are not provider codes.
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternal         = "INTERNAL_ERROR"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
	CodeFetchFailed      = "FETCH_FAILED"
	CodeBatchTooLarge    = "BATCH_TOO_LARGE"
	CodeSessionClosed    = "SESSION_CLOSED"
	CodeReadOnly         = "READONLY"
	CodeConfirmRequired  = "CONFIRMATION_REQUIRED"
)

// HTTPErrorBody is the inner error object.
type HTTPErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HTTPErrorResponse is the wire envelope.
type HTTPErrorResponse struct {
	Error HTTPErrorBody `json:"error"`
}

// HTTPError is an error that already knows its status and code.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// New returns an HTTPError.
func New(status int, code, message string) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message}
}

// BadRequest wraps err as a 400.
func BadRequest(message string, err error) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Code: CodeBadRequest, Message: message, Err: err}
}

// Classify maps err to a status and envelope body.
func Classify(err error) (int, HTTPErrorBody) {
	var he *HTTPError
	if stderrors.As(err, &he) {
		return he.Status, HTTPErrorBody{Code: he.Code, Message: he.Error(), Details: he.Details}
	}

	var fe *session.FetchError
	if stderrors.As(err, &fe) {
		return http.StatusBadGateway, HTTPErrorBody{
			Code:    CodeFetchFailed,
			Message: err.Error(),
			Details: map[string]any{
				"prefix":        fe.Prefix.String(),
				"provider_code": provider.Code(fe.Err),
				"retryable":     true,
			},
		}
	}

	var tooLarge *upload.BatchTooLargeError
	if stderrors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, HTTPErrorBody{
			Code:    CodeBatchTooLarge,
			Message: err.Error(),
			Details: map[string]any{"count": tooLarge.Count, "max": tooLarge.Max},
		}
	}

	switch {
	case stderrors.Is(err, session.ErrClosed):
		return http.StatusGone, HTTPErrorBody{Code: CodeSessionClosed, Message: err.Error()}
	case stderrors.Is(err, browse.ErrHistoryIndex),
		stderrors.Is(err, browse.ErrInvalidPrefix),
		stderrors.Is(err, session.ErrNotInListing),
		stderrors.Is(err, match.ErrInvalidPattern),
		stderrors.Is(err, match.ErrMultiLevel):
		return http.StatusBadRequest, HTTPErrorBody{Code: CodeBadRequest, Message: err.Error()}
	}

	code := provider.Code(err)
	switch code {
	case "NOT_FOUND", "BUCKET_NOT_FOUND":
		return http.StatusNotFound, HTTPErrorBody{Code: code, Message: err.Error()}
	case "ACCESS_DENIED", "INVALID_CREDENTIALS":
		return http.StatusForbidden, HTTPErrorBody{Code: code, Message: err.Error()}
	case "THROTTLED":
		return http.StatusTooManyRequests, HTTPErrorBody{Code: code, Message: err.Error()}
	case "PROVIDER_UNAVAILABLE":
		return http.StatusServiceUnavailable, HTTPErrorBody{Code: code, Message: err.Error()}
	case "INVALID_KEY":
		return http.StatusBadRequest, HTTPErrorBody{Code: code, Message: err.Error()}
	}
	return http.StatusInternalServerError, HTTPErrorBody{Code: CodeInternal, Message: err.Error()}
}

// RespondWithError writes err as an envelope.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := Classify(err)
	body.RequestID = RequestIDFrom(r.Context())
	Write(w, status, body)
}

// Write sends body with status.
func Write(w http.ResponseWriter, status int, body HTTPErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{Error: body})
}

type requestIDKey struct{}

// WithRequestID stores id on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request ID on ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
