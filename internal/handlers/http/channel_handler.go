package http

import (
	"net/http"

	"owlet/internal/core/domain"
	"owlet/internal/core/services"
	"owlet/internal/infrastructure/middleware"
	apperrors "owlet/pkg/errors"

	"github.com/gin-gonic/gin"
)

// ChannelHandler covers server channels, permission overrides and
// direct conversations.
type ChannelHandler struct {
	channels *services.ChannelService
}

func NewChannelHandler(channels *services.ChannelService) *ChannelHandler {
	return &ChannelHandler{channels: channels}
}

func (h *ChannelHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/servers/:serverID/channels", h.List)
	api.POST("/servers/:serverID/channels", h.Create)
	api.GET("/channels/:channelID", h.Get)
	api.PATCH("/channels/:channelID", h.Update)
	api.DELETE("/channels/:channelID", h.Delete)
	api.PUT("/channels/:channelID/overrides", h.SetOverride)

	api.GET("/conversations", h.ListDirect)
	api.POST("/conversations", h.OpenDirect)
}

func (h *ChannelHandler) List(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	channels, err := h.channels.List(c.Request.Context(), identity.UserID, domain.ServerID(c.Param("serverID")))
	if err != nil {
		c.Error(err)
		return
	}

	resp := make([]channelResponse, 0, len(channels))
	for _, ch := range channels {
		resp = append(resp, toChannelResponse(ch))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ChannelHandler) Get(c *gin.Context) {
	channel, err := h.channels.Get(c.Request.Context(), domain.ChannelID(c.Param("channelID")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toChannelResponse(channel))
}

type createChannelRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

func (h *ChannelHandler) Create(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req createChannelRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	channel, err := h.channels.Create(c.Request.Context(), identity.UserID,
		domain.ServerID(c.Param("serverID")), req.Name)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, toChannelResponse(channel))
}

func (h *ChannelHandler) Update(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req createChannelRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	channel, err := h.channels.Update(c.Request.Context(), identity.UserID,
		domain.ChannelID(c.Param("channelID")), req.Name)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toChannelResponse(channel))
}

func (h *ChannelHandler) Delete(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	if err := h.channels.Delete(c.Request.Context(), identity.UserID, domain.ChannelID(c.Param("channelID"))); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setOverrideRequest struct {
	RoleID domain.RoleID  `json:"role_id"`
	UserID domain.UserID  `json:"user_id"`
	Allow  domain.Bitmask `json:"allow"`
	Deny   domain.Bitmask `json:"deny"`
}

// SetOverride upserts one override record. Exactly one of role_id and
// user_id must be set.
func (h *ChannelHandler) SetOverride(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req setOverrideRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	err := h.channels.SetOverride(c.Request.Context(), identity.UserID,
		domain.ChannelID(c.Param("channelID")), req.RoleID, req.UserID, req.Allow, req.Deny)
	if err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

type openDirectRequest struct {
	UserIDs []domain.UserID `json:"user_ids" binding:"required,min=1,max=10"`
}

// OpenDirect returns the existing conversation for the participant set
// or creates a new one.
func (h *ChannelHandler) OpenDirect(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req openDirectRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	channel, err := h.channels.OpenDirect(c.Request.Context(), identity.UserID, req.UserIDs)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toChannelResponse(channel))
}

func (h *ChannelHandler) ListDirect(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	views, err := h.channels.ListDirect(c.Request.Context(), identity.UserID)
	if err != nil {
		c.Error(err)
		return
	}

	resp := make([]directChannelResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toDirectChannelResponse(v))
	}
	c.JSON(http.StatusOK, resp)
}
