package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/invitely/invitely/internal/api/models"
)

// RateLimitConfig is a fixed request budget per window.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Rate limits per endpoint group.
var (
	// AuthRateLimit applies to token issuance (10 req/min per IP).
	AuthRateLimit = RateLimitConfig{RequestLimit: 10, WindowLength: time.Minute}

	// ExportRateLimit applies to export submissions and asset uploads (30 req/min per user).
	ExportRateLimit = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}

	// StandardRateLimit applies to authenticated reads (100 req/min per user).
	StandardRateLimit = RateLimitConfig{RequestLimit: 100, WindowLength: time.Minute}

	// AssetRateLimit applies to public asset downloads (300 req/min per IP).
	AssetRateLimit = RateLimitConfig{RequestLimit: 300, WindowLength: time.Minute}
)

// RateLimitByIP limits by client IP. Run after chi's RealIP middleware.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limit(cfg, httprate.KeyByRealIP)
}

// RateLimitByUser limits by authenticated user, falling back to client IP.
// Run after Auth.
func RateLimitByUser(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limit(cfg, keyByUserOrIP)
}

func limit(cfg RateLimitConfig, key httprate.KeyFunc) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(limitExceeded(cfg.WindowLength)),
	)
}

func keyByUserOrIP(r *http.Request) (string, error) {
	if userID := GetUserID(r.Context()); userID != "" {
		return "user:" + userID, nil
	}
	return httprate.KeyByRealIP(r)
}

// limitExceeded answers with a 429 problem. Retry-After is the full window,
// the longest a client can have to wait.
func limitExceeded(window time.Duration) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(math.Ceil(window.Seconds())))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", retryAfter)
		problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
		problem.Instance = r.URL.Path
		problem.Write(w)
	}
}
