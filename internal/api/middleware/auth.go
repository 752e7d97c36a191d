package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/invitely/invitely/internal/api/models"
	"github.com/invitely/invitely/internal/auth"
)

type userIDKey struct{}

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errInvalidScheme        = errors.New("invalid authorization header format")
	errMissingToken         = errors.New("missing bearer token")
)

// Auth rejects requests without a valid bearer access token and stores the
// caller's user ID in the request context.
func Auth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				writeUnauthorized(w, r, err.Error())
				return
			}

			userID, err := authService.ValidateAccessToken(token)
			if err != nil {
				detail := "invalid access token"
				if errors.Is(err, auth.ErrAccessTokenExpired) {
					detail = "access token has expired"
				}
				writeUnauthorized(w, r, detail)
				return
			}

			ctx := r.Context()
			trace.SpanFromContext(ctx).SetAttributes(attribute.String("enduser.id", userID))
			zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("user_id", userID)
			})

			next.ServeHTTP(w, r.WithContext(WithUserID(ctx, userID)))
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errMissingAuthorization
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errInvalidScheme
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}

// writeUnauthorized writes the problem directly; the response package imports
// this one.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="invitely"`)
	problem := models.NewUnauthorized(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// WithUserID returns ctx carrying an authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetUserID returns the authenticated user ID, or "" if unauthenticated.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return ""
}
