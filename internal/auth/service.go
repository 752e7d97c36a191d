package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service provides authentication operations.
type Service struct {
	jwtService *JWTService
}

// NewService creates a new auth service.
func NewService(jwtService *JWTService) *Service {
	return &Service{jwtService: jwtService}
}

// ValidateAccessToken validates a token and returns the user ID.
func (s *Service) ValidateAccessToken(tokenString string) (string, error) {
	claims, err := s.jwtService.ValidateAccessToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Identity(), nil
}

// TokenResponse represents a locally issued access token.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
	UserID      string `json:"userId"`
}

// DevAuthenticate issues a token for userID, or for a fresh user ID when empty.
// This is intended for local development only and must never be routed in production.
func (s *Service) DevAuthenticate(userID string) (*TokenResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "usr_" + uuid.New().String()[:22]
	}

	token, expiresAt, err := s.jwtService.GenerateAccessToken(userID)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
		UserID:      userID,
	}, nil
}
