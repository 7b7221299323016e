package http

import (
	"net/http"

	"owlet/internal/core/domain"
	"owlet/internal/core/services"
	"owlet/internal/infrastructure/middleware"
	apperrors "owlet/pkg/errors"

	"github.com/gin-gonic/gin"
)

// ServerHandler covers the guild lifecycle: CRUD, membership,
// moderation and invites.
type ServerHandler struct {
	servers *services.ServerService
}

func NewServerHandler(servers *services.ServerService) *ServerHandler {
	return &ServerHandler{servers: servers}
}

func (h *ServerHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/servers", h.ListMine)
	api.POST("/servers", h.Create)
	api.GET("/servers/:serverID", h.Get)
	api.PATCH("/servers/:serverID", h.Update)
	api.DELETE("/servers/:serverID", h.Delete)
	api.POST("/servers/:serverID/leave", h.Leave)

	api.GET("/servers/:serverID/members", h.ListMembers)
	api.DELETE("/servers/:serverID/members/:userID", h.Kick)
	api.PATCH("/servers/:serverID/members/:userID/role", h.SetMemberRole)

	api.GET("/servers/:serverID/bans", h.ListBans)
	api.POST("/servers/:serverID/bans", h.Ban)
	api.DELETE("/servers/:serverID/bans/:userID", h.Unban)

	api.POST("/servers/:serverID/invites", h.CreateInvite)
	api.POST("/invites/:code/join", h.Join)
}

type createServerRequest struct {
	Name    string `json:"name" binding:"required,max=100"`
	IconURL string `json:"icon_url" binding:"max=512"`
}

func (h *ServerHandler) Create(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req createServerRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	server, general, err := h.servers.Create(c.Request.Context(), identity.UserID, req.Name, req.IconURL)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"server":          toServerResponse(server),
		"default_channel": toChannelResponse(general),
	})
}

func (h *ServerHandler) Get(c *gin.Context) {
	server, err := h.servers.Get(c.Request.Context(), domain.ServerID(c.Param("serverID")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toServerResponse(server))
}

func (h *ServerHandler) ListMine(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	servers, err := h.servers.ListMine(c.Request.Context(), identity.UserID)
	if err != nil {
		c.Error(err)
		return
	}

	resp := make([]serverResponse, 0, len(servers))
	for _, s := range servers {
		resp = append(resp, toServerResponse(s))
	}
	c.JSON(http.StatusOK, resp)
}

type updateServerRequest struct {
	Name    string `json:"name" binding:"required,max=100"`
	IconURL string `json:"icon_url" binding:"max=512"`
}

func (h *ServerHandler) Update(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req updateServerRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	server, err := h.servers.Update(c.Request.Context(), identity.UserID,
		domain.ServerID(c.Param("serverID")), req.Name, req.IconURL)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toServerResponse(server))
}

func (h *ServerHandler) Delete(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	if err := h.servers.Delete(c.Request.Context(), identity.UserID, domain.ServerID(c.Param("serverID"))); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ServerHandler) Leave(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	if err := h.servers.Leave(c.Request.Context(), identity.UserID, domain.ServerID(c.Param("serverID"))); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ServerHandler) ListMembers(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	members, err := h.servers.ListMembers(c.Request.Context(), identity.UserID, domain.ServerID(c.Param("serverID")))
	if err != nil {
		c.Error(err)
		return
	}

	resp := make([]memberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, toMemberResponse(m))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ServerHandler) Kick(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	err := h.servers.Kick(c.Request.Context(), identity.UserID,
		domain.ServerID(c.Param("serverID")), domain.UserID(c.Param("userID")))
	if err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

type banRequest struct {
	UserID domain.UserID `json:"user_id" binding:"required"`
	Reason string        `json:"reason" binding:"max=512"`
}

func (h *ServerHandler) Ban(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req banRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	err := h.servers.Ban(c.Request.Context(), identity.UserID,
		domain.ServerID(c.Param("serverID")), req.UserID, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ServerHandler) Unban(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	err := h.servers.Unban(c.Request.Context(), identity.UserID,
		domain.ServerID(c.Param("serverID")), domain.UserID(c.Param("userID")))
	if err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ServerHandler) ListBans(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	bans, err := h.servers.ListBans(c.Request.Context(), identity.UserID, domain.ServerID(c.Param("serverID")))
	if err != nil {
		c.Error(err)
		return
	}

	resp := make([]banResponse, 0, len(bans))
	for _, b := range bans {
		resp = append(resp, toBanResponse(b))
	}
	c.JSON(http.StatusOK, resp)
}

type setMemberRoleRequest struct {
	RoleID domain.RoleID `json:"role_id" binding:"required"`
}

func (h *ServerHandler) SetMemberRole(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req setMemberRoleRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	err := h.servers.SetMemberRole(c.Request.Context(), identity.UserID,
		domain.ServerID(c.Param("serverID")), domain.UserID(c.Param("userID")), req.RoleID)
	if err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ServerHandler) CreateInvite(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	invite, err := h.servers.CreateInvite(c.Request.Context(), identity.UserID, domain.ServerID(c.Param("serverID")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, toInviteResponse(invite))
}

func (h *ServerHandler) Join(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	server, err := h.servers.Join(c.Request.Context(), identity.UserID, c.Param("code"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toServerResponse(server))
}
