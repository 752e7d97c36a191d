package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invitely/invitely/internal/api/middleware"
)

func logEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	h := middleware.RequestID(middleware.Logger(zerolog.New(&buf))(statusHandler(http.StatusOK)))

	req := httptest.NewRequest(http.MethodGet, "/api/export?status=completed", http.NoBody)
	req.Header.Set("User-Agent", "invitely-test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	entry := logEntry(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "request completed", entry["message"])
	assert.Equal(t, http.MethodGet, entry["method"])
	assert.Equal(t, "/api/export", entry["path"])
	assert.Equal(t, float64(http.StatusOK), entry["status"])
	assert.Equal(t, float64(4), entry["bytes"])
	assert.Equal(t, "invitely-test", entry["user_agent"])
	assert.Equal(t, rec.Header().Get(middleware.RequestIDHeader), entry["request_id"])
	assert.Contains(t, entry, "duration")
	assert.NotContains(t, entry, "trace_id")
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusCreated, "info"},
		{http.StatusNotFound, "warn"},
		{http.StatusBadRequest, "warn"},
		{http.StatusInternalServerError, "error"},
		{http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		middleware.Logger(zerolog.New(&buf))(statusHandler(tt.status)).
			ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

		assert.Equal(t, tt.level, logEntry(t, &buf)["level"], "status %d", tt.status)
	}
}

func TestLogger_DefaultsToOKWhenHandlerWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, float64(http.StatusOK), logEntry(t, &buf)["status"])
}

func TestLogger_IncludesTraceAndRoute(t *testing.T) {
	setupTestTracer(t)
	var buf bytes.Buffer

	r := chi.NewRouter()
	r.Use(middleware.Tracing())
	r.Use(middleware.Logger(zerolog.New(&buf)))
	r.Get("/api/export/{id}", okHandler)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/export/exp_123", http.NoBody))

	entry := logEntry(t, &buf)
	assert.Equal(t, "/api/export/{id}", entry["route"])
	assert.Len(t, entry["trace_id"], 32)
	assert.Len(t, entry["span_id"], 16)
}

func TestLogger_ProvidesRequestLoggerToHandlers(t *testing.T) {
	var buf bytes.Buffer
	h := middleware.RequestID(middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("from handler")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "req_fixed")
	h.ServeHTTP(httptest.NewRecorder(), req)

	first, _, _ := bytes.Cut(buf.Bytes(), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(first, &entry))
	assert.Equal(t, "from handler", entry["message"])
	assert.Equal(t, "req_fixed", entry["request_id"])
}
