package http

import (
	"net/http"

	"owlet/internal/core/domain"
	"owlet/internal/core/services"
	"owlet/internal/infrastructure/middleware"
	apperrors "owlet/pkg/errors"

	"github.com/gin-gonic/gin"
)

// FriendHandler drives the friendship state machine and the presence
// polling endpoint.
type FriendHandler struct {
	friends *services.FriendService
}

func NewFriendHandler(friends *services.FriendService) *FriendHandler {
	return &FriendHandler{friends: friends}
}

func (h *FriendHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/friends", h.List)
	api.POST("/friends/requests", h.SendRequest)
	api.POST("/friends/:friendshipID/respond", h.Respond)
	api.POST("/friends/seen", h.MarkSeen)
	api.POST("/friends/status", h.CheckStatus)
}

type friendRequestRequest struct {
	Username string `json:"username" binding:"required,max=50"`
}

func (h *FriendHandler) SendRequest(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req friendRequestRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	friendship, err := h.friends.SendRequest(c.Request.Context(), identity.UserID, req.Username)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":     friendship.ID,
		"status": friendship.Status,
	})
}

type respondRequest struct {
	Action string `json:"action" binding:"required,oneof=ACCEPT REJECT BLOCK REMOVE"`
}

func (h *FriendHandler) Respond(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req respondRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	status, err := h.friends.Respond(c.Request.Context(), identity.UserID,
		c.Param("friendshipID"), req.Action)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *FriendHandler) List(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	views, err := h.friends.List(c.Request.Context(), identity.UserID, c.DefaultQuery("filter", services.FriendFilterAll))
	if err != nil {
		c.Error(err)
		return
	}

	resp := make([]friendResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toFriendResponse(identity.UserID, v))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FriendHandler) MarkSeen(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	if err := h.friends.MarkSeen(c.Request.Context(), identity.UserID); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

type checkStatusRequest struct {
	UserIDs []domain.UserID `json:"user_ids" binding:"required,max=100"`
}

// CheckStatus is the polling endpoint for live presence. It reads only
// the in-memory shards, never the relational store.
func (h *FriendHandler) CheckStatus(c *gin.Context) {
	var req checkStatusRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	online := h.friends.CheckStatus(c.Request.Context(), req.UserIDs)
	c.JSON(http.StatusOK, gin.H{"online": online})
}
