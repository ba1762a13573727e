package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	mw := Logger(zap.New(core))

	ok := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	missing := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	ok.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/a", nil))
	missing.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/b", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(200), entries[0].ContextMap()["status"])
	assert.Equal(t, int64(5), entries[0].ContextMap()["bytes"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "/b", entries[1].ContextMap()["path"])
}
