// Package middleware holds the HTTP middleware chain of the API server.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/bucketnav/internal/errors"
)

// RequestIDHeader carries the request ID in and out.
const RequestIDHeader = "X-Request-ID"

// ErrorResponse is the JSON error envelope.
type ErrorResponse = apperrors.HTTPErrorResponse

// RequestID reuses an inbound X-Request-ID or generates one, stores it on
// the context and echoes it back.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(apperrors.WithRequestID(r.Context(), id)))
	})
}

// Recovery turns a panic into a 500 INTERNAL_ERROR envelope.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			writeErrorResponse(w, apperrors.HTTPErrorBody{
				Code:      apperrors.CodeInternal,
				Message:   fmt.Sprintf("panic: %v", rec),
				RequestID: apperrors.RequestIDFrom(r.Context()),
			}, http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}

// ErrorHandler is Recovery under the name the router setup uses.
func ErrorHandler(next http.Handler) http.Handler {
	return Recovery(next)
}

func writeErrorResponse(w http.ResponseWriter, body apperrors.HTTPErrorBody, status int) {
	apperrors.Write(w, status, body)
}

// statusRecorder captures the status code for access logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(p)
	s.bytes += n
	return n, err
}

// Logger writes one access-log line per request.
func Logger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Int("bytes", rec.bytes),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", apperrors.RequestIDFrom(r.Context())),
			}
			switch {
			case rec.status >= 500:
				logger.Error("request", fields...)
			case rec.status >= 400:
				logger.Warn("request", fields...)
			default:
				logger.Info("request", fields...)
			}
		})
	}
}
