package socket

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"owlet/internal/core/domain"
	"owlet/internal/core/ports"
	"owlet/internal/infrastructure/middleware"
	"owlet/internal/infrastructure/monitoring"
	"owlet/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// inboundFrame is the only shape clients may send on a channel socket.
type inboundFrame struct {
	Type string `json:"type"`
}

type typingPayload struct {
	UserID   domain.UserID `json:"user_id"`
	Username string        `json:"username"`
	IsTyping bool          `json:"is_typing"`
}

// Handler upgrades channel socket requests and pumps frames between the
// connection and its channel session.
type Handler struct {
	registry *Registry
	channels ports.ChannelRepository
	perms    ports.PermissionResolver
	cfg      *config.Config
	metrics  *monitoring.PrometheusCollector
	logger   *zap.SugaredLogger
}

func NewHandler(registry *Registry, channels ports.ChannelRepository, perms ports.PermissionResolver, cfg *config.Config, metrics *monitoring.PrometheusCollector, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		registry: registry,
		channels: channels,
		perms:    perms,
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
	}
}

// HandleChannelSocket serves GET /api/channels/:channelID/ws.
func (h *Handler) HandleChannelSocket(c *gin.Context) {
	if h.registry == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "socket layer unavailable"})
		return
	}

	if !strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		c.JSON(http.StatusUpgradeRequired, gin.H{"error": "websocket upgrade required"})
		return
	}

	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	channelID := domain.ChannelID(c.Param("channelID"))
	if channelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel id required"})
		return
	}

	channel, err := h.channels.GetByID(c.Request.Context(), channelID)
	if err != nil || channel.Deleted() {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}

	if channel.Direct() {
		member, err := h.channels.IsParticipant(c.Request.Context(), channelID, identity.UserID)
		if err != nil || !member {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
			return
		}
	} else {
		allowed, err := h.perms.Has(c.Request.Context(), identity.UserID, channel.ServerID, channelID, domain.PermViewChannel)
		if err != nil || !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "missing channel access"})
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Infow("websocket upgrade failed", "channel_id", channelID, "error", err)
		return
	}

	cl := &client{
		conn:      conn,
		userID:    identity.UserID,
		username:  identity.Username,
		sessionID: uuid.NewString(),
	}

	h.registry.join(channelID, cl)
	h.metrics.ChannelConnectionOpened()
	h.logger.Infow("channel socket connected",
		"channel_id", channelID, "user_id", identity.UserID, "session_id", cl.sessionID)

	h.serve(conn, channelID, channel.Direct(), identity)

	h.registry.leave(channelID, conn)
	conn.Close()
	h.metrics.ChannelConnectionClosed()
	h.logger.Infow("channel socket disconnected",
		"channel_id", channelID, "user_id", identity.UserID, "session_id", cl.sessionID)
}

func (h *Handler) serve(conn *websocket.Conn, channelID domain.ChannelID, direct bool, identity domain.Identity) {
	limiter := rate.NewLimiter(
		rate.Limit(h.cfg.RateLimiting.Socket.FramesPerSecond),
		h.cfg.RateLimiting.Socket.Burst,
	)

	conn.SetReadLimit(h.cfg.Socket.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.cfg.Socket.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.cfg.Socket.PongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(h.cfg.Socket.PingInterval)
	defer pingTicker.Stop()

	frameChan := make(chan inboundFrame, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(h.cfg.Socket.PongTimeout))

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
				h.logger.Debugw("dropping malformed socket frame",
					"channel_id", channelID, "user_id", identity.UserID)
				continue
			}
			frameChan <- frame
		}
	}()

	for {
		select {
		case frame := <-frameChan:
			if !limiter.Allow() {
				h.logger.Warnw("rate limited socket frame",
					"channel_id", channelID, "user_id", identity.UserID, "type", frame.Type)
				continue
			}
			h.handleFrame(conn, channelID, direct, identity, frame)

		case <-pingTicker.C:
			// WriteControl is safe alongside the session actor's data writes.
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.Socket.WriteTimeout)); err != nil {
				h.logger.Infow("ping failed", "channel_id", channelID, "user_id", identity.UserID, "error", err)
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Infow("channel socket read failed",
					"channel_id", channelID, "user_id", identity.UserID, "error", err)
			}
			return
		}
	}
}

func (h *Handler) handleFrame(conn *websocket.Conn, channelID domain.ChannelID, direct bool, identity domain.Identity, frame inboundFrame) {
	switch frame.Type {
	case domain.EventTypingStart, domain.EventTypingStop:
		h.metrics.TypingEvent()

		update := domain.Event{Type: domain.EventTypingUpdate}
		payload := typingPayload{
			UserID:   identity.UserID,
			Username: identity.Username,
			IsTyping: frame.Type == domain.EventTypingStart,
		}
		if direct {
			update.Data = payload
		} else {
			update.Payload = payload
		}

		data, err := json.Marshal(update)
		if err != nil {
			h.logger.Errorw("failed to serialize typing update", "channel_id", channelID, "error", err)
			return
		}
		h.registry.send(channelID, data, conn)

	default:
		h.logger.Debugw("ignoring unknown socket frame",
			"channel_id", channelID, "user_id", identity.UserID, "type", frame.Type)
	}
}
