package presence

import (
	"net/http"
	"strings"
	"time"

	"owlet/internal/core/domain"
	"owlet/internal/infrastructure/middleware"
	"owlet/internal/infrastructure/monitoring"
	"owlet/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler keeps a presence entry alive for the lifetime of each
// websocket connection. The socket carries no payload traffic; it
// exists so the shard learns about disconnects.
type Handler struct {
	shards  *Shards
	cfg     *config.Config
	metrics *monitoring.PrometheusCollector
	logger  *zap.SugaredLogger
}

func NewHandler(shards *Shards, cfg *config.Config, metrics *monitoring.PrometheusCollector, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		shards:  shards,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

// HandlePresenceSocket serves GET /api/presence/ws. The declared status
// comes from the `status` query parameter; anything unrecognised means
// online.
func (h *Handler) HandlePresenceSocket(c *gin.Context) {
	if h.shards == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence layer unavailable"})
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

	status := domain.ParsePresenceStatus(c.Query("status"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Infow("presence upgrade failed", "user_id", identity.UserID, "error", err)
		return
	}

	sessionID := uuid.NewString()
	shard := h.shards.For(identity.UserID)
	shard.Register(identity.UserID, sessionID, status)
	h.metrics.PresenceConnectionOpened()
	h.logger.Infow("presence socket connected",
		"user_id", identity.UserID, "session_id", sessionID, "shard", shard.name, "status", status)

	h.serve(conn, identity)

	shard.Unregister(identity.UserID, sessionID)
	conn.Close()
	h.metrics.PresenceConnectionClosed()
	h.logger.Infow("presence socket disconnected",
		"user_id", identity.UserID, "session_id", sessionID, "shard", shard.name)
}

func (h *Handler) serve(conn *websocket.Conn, identity domain.Identity) {
	conn.SetReadLimit(h.cfg.Socket.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.cfg.Socket.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.cfg.Socket.PongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(h.cfg.Socket.PingInterval)
	defer pingTicker.Stop()

	errorChan := make(chan error, 1)
	go func() {
		// Inbound frames carry nothing; reading keeps pong handling
		// alive and notices the close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(h.cfg.Socket.PongTimeout))
		}
	}()

	for {
		select {
		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.Socket.WriteTimeout)); err != nil {
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Infow("presence socket read failed", "user_id", identity.UserID, "error", err)
			}
			return
		}
	}
}
