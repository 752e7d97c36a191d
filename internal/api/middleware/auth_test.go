package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invitely/invitely/internal/api/middleware"
	"github.com/invitely/invitely/internal/api/models"
	"github.com/invitely/invitely/internal/auth"
)

func authRequest(t *testing.T, header string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var seen string
	h := middleware.Auth(auth.NewService(testJWTService()))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/export", http.NoBody)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestAuth_Rejects(t *testing.T) {
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testUserID,
			Issuer:    "invitely-test",
			Audience:  jwt.ClaimStrings{"invitely-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte("test-secret-key-for-testing-only"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		detail string
	}{
		{"missing header", "", "missing authorization header"},
		{"basic scheme", "Basic dXNlcjpwYXNz", "invalid authorization header format"},
		{"no token", "Bearer", "invalid authorization header format"},
		{"blank token", "Bearer   ", "missing bearer token"},
		{"garbage token", "Bearer not-a-jwt", "invalid access token"},
		{"expired token", "Bearer " + expired, "access token has expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, seen := authRequest(t, tt.header)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, seen)
			assert.Equal(t, `Bearer realm="invitely"`, rec.Header().Get("WWW-Authenticate"))

			var p models.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
			assert.Equal(t, tt.detail, p.Detail)
			assert.Equal(t, "/api/export", p.Instance)
		})
	}
}

func TestAuth_ValidToken(t *testing.T) {
	rec, seen := authRequest(t, "Bearer "+testToken(t, testUserID))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testUserID, seen)
}

func TestAuth_SchemeIsCaseInsensitive(t *testing.T) {
	for _, scheme := range []string{"bearer", "BEARER", "BeArEr"} {
		rec, seen := authRequest(t, scheme+" "+testToken(t, testUserID))

		assert.Equal(t, http.StatusOK, rec.Code, scheme)
		assert.Equal(t, testUserID, seen, scheme)
	}
}

func TestAuth_AddsUserToRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	h := middleware.Logger(zerolog.New(&buf))(
		middleware.Auth(auth.NewService(testJWTService()))(okHandler),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/events", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+testToken(t, testUserID))
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, testUserID, entry["user_id"])
}

func TestWithUserID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	assert.Empty(t, middleware.GetUserID(req.Context()))

	ctx := middleware.WithUserID(req.Context(), "usr_1")
	assert.Equal(t, "usr_1", middleware.GetUserID(ctx))
}
