package http

import (
	"net/http"
	"strconv"
	"strings"

	"owlet/internal/core/domain"
	"owlet/internal/core/services"
	"owlet/internal/infrastructure/middleware"
	apperrors "owlet/pkg/errors"

	"github.com/gin-gonic/gin"
)

// MessageHandler serves the message timeline for both server channels
// and direct conversations; the service decides which gate applies.
type MessageHandler struct {
	messages *services.MessageService
}

func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

func (h *MessageHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/channels/:channelID/messages", h.History)
	api.GET("/channels/:channelID/messages/search", h.Search)
	api.POST("/channels/:channelID/messages", h.Send)
	api.PATCH("/messages/:messageID", h.Edit)
	api.DELETE("/messages/:messageID", h.Delete)
	api.POST("/messages/:messageID/reactions", h.ToggleReaction)
}

type sendMessageRequest struct {
	Content   string           `json:"content" binding:"required,max=4000"`
	ReplyToID domain.MessageID `json:"reply_to_id"`
}

func (h *MessageHandler) Send(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req sendMessageRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	payload, err := h.messages.Send(c.Request.Context(), identity.UserID,
		domain.ChannelID(c.Param("channelID")), req.Content, req.ReplyToID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, payload)
}

// History pages backwards from `before` (exclusive), newest first.
func (h *MessageHandler) History(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.Error(apperrors.NewInvalidInputError("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	views, err := h.messages.History(c.Request.Context(), identity.UserID,
		domain.ChannelID(c.Param("channelID")), domain.MessageID(c.Query("before")), limit)
	if err != nil {
		c.Error(err)
		return
	}

	resp := make([]messageResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toMessageResponse(v))
	}
	c.JSON(http.StatusOK, resp)
}

// Search matches `q` against message content, newest first.
func (h *MessageHandler) Search(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.Error(apperrors.NewInvalidInputError("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	query := c.Query("q")
	views, err := h.messages.Search(c.Request.Context(), identity.UserID,
		domain.ChannelID(c.Param("channelID")), query, limit)
	if err != nil {
		c.Error(err)
		return
	}

	messages := make([]messageResponse, 0, len(views))
	for _, v := range views {
		messages = append(messages, toMessageResponse(v))
	}
	c.JSON(http.StatusOK, gin.H{
		"query":    strings.TrimSpace(query),
		"count":    len(messages),
		"messages": messages,
	})
}

type editMessageRequest struct {
	Content string `json:"content" binding:"required,max=4000"`
}

func (h *MessageHandler) Edit(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req editMessageRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	payload, err := h.messages.Edit(c.Request.Context(), identity.UserID,
		domain.MessageID(c.Param("messageID")), req.Content)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (h *MessageHandler) Delete(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	payload, err := h.messages.Delete(c.Request.Context(), identity.UserID,
		domain.MessageID(c.Param("messageID")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

type toggleReactionRequest struct {
	Emoji string `json:"emoji" binding:"required,max=32"`
}

func (h *MessageHandler) ToggleReaction(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	var req toggleReactionRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidInputError("invalid request format"))
		return
	}

	payload, err := h.messages.ToggleReaction(c.Request.Context(), identity.UserID,
		domain.MessageID(c.Param("messageID")), req.Emoji)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, payload)
}
