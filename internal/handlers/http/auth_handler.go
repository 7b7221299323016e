package http

import (
	"net/http"
	"strings"

	"owlet/internal/core/services"
	"owlet/internal/infrastructure/middleware"
	apperrors "owlet/pkg/errors"

	"github.com/gin-gonic/gin"
)

// AuthHandler syncs the verified identity into the store and serves
// profile updates. Token verification itself happens in the middleware;
// by the time a request lands here the identity is trusted.
type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/auth/sync", h.Sync)
	api.PATCH("/users/me", h.UpdateProfile)
}

// Sync upserts the caller's identity and answers with the stored
// profile plus a refreshed access token.
func (h *AuthHandler) Sync(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	user, err := h.auth.SyncIdentity(c.Request.Context(), identity)
	if err != nil {
		c.Error(err)
		return
	}

	token, err := h.auth.GenerateToken(identity)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":         toUserResponse(user),
		"access_token": token,
	})
}

type updateProfileRequest struct {
	Username  string `json:"username" binding:"required,max=50"`
	AvatarURL string `json:"avatar_url" binding:"max=512"`
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req updateProfileRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}
	req.Username = strings.TrimSpace(strings.ToLower(req.Username))

	user, err := h.auth.UpdateProfile(c.Request.Context(), identity.UserID, req.Username, req.AvatarURL)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}
