package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/bucketnav/internal/errors"
)

func TestRecovery_NoPanic(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("success"))
	})

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()
	Recovery(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", rec.Body.String())
}

func TestRecovery_WithPanic(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	assert.NotPanics(t, func() {
		Recovery(handler).ServeHTTP(rec, req)
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "INTERNAL_ERROR", response.Error.Code)
	assert.Contains(t, response.Error.Message, "panic: test panic")
}

func TestRecovery_WithPanicError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(assert.AnError)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()
	Recovery(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "INTERNAL_ERROR", response.Error.Code)
}

func TestRecovery_WithRequestID(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic with request id")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "test-req-123")
	rec := httptest.NewRecorder()
	RequestID(Recovery(handler)).ServeHTTP(rec, req)

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "test-req-123", response.Error.RequestID)
	assert.Equal(t, "test-req-123", rec.Header().Get(RequestIDHeader))
}

func TestRequestID_Generated(t *testing.T) {
	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = apperrors.RequestIDFrom(r.Context())
	})

	rec := httptest.NewRecorder()
	RequestID(handler).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestErrorHandler_IsSameAsRecovery(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test")
	})

	rec1 := httptest.NewRecorder()
	Recovery(handler).ServeHTTP(rec1, httptest.NewRequest("GET", "/test", nil))
	rec2 := httptest.NewRecorder()
	ErrorHandler(handler).ServeHTTP(rec2, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, rec1.Code, rec2.Code)
	assert.Equal(t, rec1.Header().Get("Content-Type"), rec2.Header().Get("Content-Type"))
}

func TestWriteErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		body       apperrors.HTTPErrorBody
		statusCode int
	}{
		{"basic error", apperrors.HTTPErrorBody{Code: "TEST_ERROR", Message: "test message"}, http.StatusBadRequest},
		{"with details", apperrors.HTTPErrorBody{Code: "VALIDATION_ERROR", Message: "invalid input", Details: map[string]any{"field": "prefix"}}, http.StatusBadRequest},
		{"internal", apperrors.HTTPErrorBody{Code: "INTERNAL_ERROR", Message: "boom"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeErrorResponse(rec, tt.body, tt.statusCode)

			assert.Equal(t, tt.statusCode, rec.Code)
			var response ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
			assert.Equal(t, tt.body.Code, response.Error.Code)
			assert.Equal(t, tt.body.Message, response.Error.Message)
			if tt.body.Details != nil {
				assert.Equal(t, "prefix", response.Error.Details["field"])
			}
		})
	}
}
