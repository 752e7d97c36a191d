package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invitely/invitely/internal/auth"
)

func newJWT(key, issuer, audience string) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{SigningKey: key, Issuer: issuer, Audience: audience})
}

func TestJWTService_GenerateAndValidateAccessToken(t *testing.T) {
	svc := newJWT("test-secret-key-for-testing-only", "https://api.invitely.app", "invitely-api")

	token, expiresAt, err := svc.GenerateAccessToken("usr_test123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "usr_test123", claims.UserID)
	assert.Equal(t, "usr_test123", claims.Subject)
	assert.Equal(t, "https://api.invitely.app", claims.Issuer)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := newJWT("test-secret-key-for-testing-only", "", "")

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestJWTService_WrongSigningKey(t *testing.T) {
	token, _, err := newJWT("key-one", "", "").GenerateAccessToken("usr_test123")
	require.NoError(t, err)

	_, err = newJWT("key-two", "", "").ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestJWTService_WrongIssuerOrAudience(t *testing.T) {
	token, _, err := newJWT("test-key", "issuer-one", "audience-one").GenerateAccessToken("usr_test123")
	require.NoError(t, err)

	_, err = newJWT("test-key", "issuer-two", "audience-one").ValidateAccessToken(token)
	assert.Error(t, err)

	_, err = newJWT("test-key", "issuer-one", "audience-two").ValidateAccessToken(token)
	assert.Error(t, err)

	_, err = newJWT("test-key", "", "").ValidateAccessToken(token)
	assert.NoError(t, err, "unset issuer and audience are not checked")
}

func TestJWTService_Expired(t *testing.T) {
	claims := auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "usr_test123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)

	_, err = newJWT("test-key", "", "").ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrAccessTokenExpired)
}

func TestJWTService_SubjectFallback(t *testing.T) {
	claims := auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "usr_legacy",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)

	userID, err := auth.NewService(newJWT("test-key", "", "")).ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "usr_legacy", userID)
}

func TestService_DevAuthenticate(t *testing.T) {
	svc := auth.NewService(newJWT("test-key", "", ""))

	resp, err := svc.DevAuthenticate("usr_alice")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "usr_alice", resp.UserID)

	userID, err := svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "usr_alice", userID)

	resp, err = svc.DevAuthenticate("")
	require.NoError(t, err)
	assert.Regexp(t, `^usr_`, resp.UserID)
}
