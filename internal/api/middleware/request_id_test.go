package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/invitely/invitely/internal/api/middleware"
)

func requestIDFor(incoming string) (seen, echoed string) {
	h := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = middleware.GetRequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	if incoming != "" {
		req.Header.Set(middleware.RequestIDHeader, incoming)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return seen, rec.Header().Get(middleware.RequestIDHeader)
}

func TestRequestID_Generates(t *testing.T) {
	seen, echoed := requestIDFor("")

	assert.True(t, strings.HasPrefix(seen, "req_"))
	assert.Len(t, seen, len("req_")+22)
	assert.Equal(t, seen, echoed)
}

func TestRequestID_KeepsWellFormedIncoming(t *testing.T) {
	for _, id := range []string{"req_abc", "4bf92f3577b34da6", "lb-01:trace.42"} {
		seen, echoed := requestIDFor(id)
		assert.Equal(t, id, seen)
		assert.Equal(t, id, echoed)
	}
}

func TestRequestID_ReplacesMalformedIncoming(t *testing.T) {
	for _, id := range []string{"has space", "new\nline", `quote"`, strings.Repeat("a", 129)} {
		seen, _ := requestIDFor(id)
		assert.NotEqual(t, id, seen)
		assert.True(t, strings.HasPrefix(seen, "req_"), "replacement for %q", id)
	}
}

func TestRequestID_Unique(t *testing.T) {
	ids := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, _ := requestIDFor("")
		_, dup := ids[id]
		assert.False(t, dup, "duplicate request ID %s", id)
		ids[id] = struct{}{}
	}
}

func TestGetRequestID_Empty(t *testing.T) {
	assert.Empty(t, middleware.GetRequestID(httptest.NewRequest(http.MethodGet, "/", http.NoBody).Context()))
}
