package http

import (
	"net/http"

	"owlet/internal/core/domain"
	"owlet/internal/core/services"
	"owlet/internal/infrastructure/middleware"
	apperrors "owlet/pkg/errors"

	"github.com/gin-gonic/gin"
)

type RoleHandler struct {
	roles *services.RoleService
}

func NewRoleHandler(roles *services.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

func (h *RoleHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/servers/:serverID/roles", h.List)
	api.POST("/servers/:serverID/roles", h.Create)
	api.PATCH("/servers/:serverID/roles/:roleID", h.Update)
	api.DELETE("/servers/:serverID/roles/:roleID", h.Delete)
}

func (h *RoleHandler) List(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	roles, err := h.roles.List(c.Request.Context(), identity.UserID, domain.ServerID(c.Param("serverID")))
	if err != nil {
		c.Error(err)
		return
	}

	resp := make([]roleResponse, 0, len(roles))
	for _, r := range roles {
		resp = append(resp, toRoleResponse(r))
	}
	c.JSON(http.StatusOK, resp)
}

type roleRequest struct {
	Name        string         `json:"name" binding:"required,max=100"`
	Permissions domain.Bitmask `json:"permissions"`
	Position    int            `json:"position"`
}

func (h *RoleHandler) Create(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req roleRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	role, err := h.roles.Create(c.Request.Context(), identity.UserID,
		domain.ServerID(c.Param("serverID")), req.Name, req.Permissions, req.Position)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, toRoleResponse(role))
}

func (h *RoleHandler) Update(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req roleRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	role, err := h.roles.Update(c.Request.Context(), identity.UserID,
		domain.ServerID(c.Param("serverID")), domain.RoleID(c.Param("roleID")),
		req.Name, req.Permissions, req.Position)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toRoleResponse(role))
}

func (h *RoleHandler) Delete(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	err := h.roles.Delete(c.Request.Context(), identity.UserID,
		domain.ServerID(c.Param("serverID")), domain.RoleID(c.Param("roleID")))
	if err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
