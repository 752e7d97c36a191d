package handler

import (
	"encoding/json"
	"net/http"

	"github.com/invitely/invitely/internal/api/response"
	"github.com/invitely/invitely/internal/auth"
)

// AuthHandler handles development authentication.
type AuthHandler struct {
	authService *auth.Service
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *auth.Service) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// DevTokenRequest is the body of POST /api/auth/dev-token.
type DevTokenRequest struct {
	UserID string `json:"userId,omitempty"`
}

// DevToken handles POST /api/auth/dev-token - issue an access token without
// an account. Only routed outside production.
func (h *AuthHandler) DevToken(w http.ResponseWriter, r *http.Request) {
	var req DevTokenRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, r, "invalid JSON body", nil)
			return
		}
	}

	token, err := h.authService.DevAuthenticate(req.UserID)
	if err != nil {
		response.InternalError(w, r, "failed to issue token")
		return
	}
	response.JSON(w, r, http.StatusOK, token)
}
