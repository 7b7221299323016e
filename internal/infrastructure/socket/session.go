package socket

import (
	"time"

	"owlet/internal/core/domain"
	"owlet/internal/infrastructure/monitoring"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// client is one websocket connection attached to a channel session.
type client struct {
	conn      *websocket.Conn
	userID    domain.UserID
	username  string
	sessionID string
}

type joinCmd struct{ c *client }

type leaveCmd struct {
	conn *websocket.Conn
	// remaining connection count after removal
	reply chan int
}

type broadcastCmd struct {
	data   []byte
	except *websocket.Conn
}

type countCmd struct {
	reply chan int
}

type stopCmd struct{}

// session is the actor owning one channel's connection set. All set
// mutation and all outbound writes happen inside run, so every
// connection observes events in the same order and no lock guards the
// write path.
type session struct {
	channelID    domain.ChannelID
	commands     chan interface{}
	writeTimeout time.Duration
	metrics      *monitoring.PrometheusCollector
	logger       *zap.SugaredLogger
}

func newSession(channelID domain.ChannelID, writeTimeout time.Duration, metrics *monitoring.PrometheusCollector, logger *zap.SugaredLogger) *session {
	s := &session{
		channelID:    channelID,
		commands:     make(chan interface{}, 64),
		writeTimeout: writeTimeout,
		metrics:      metrics,
		logger:       logger,
	}
	go s.run()
	return s
}

func (s *session) run() {
	conns := make(map[*websocket.Conn]*client)

	for cmd := range s.commands {
		switch cmd := cmd.(type) {
		case joinCmd:
			conns[cmd.c.conn] = cmd.c

		case leaveCmd:
			delete(conns, cmd.conn)
			cmd.reply <- len(conns)

		case broadcastCmd:
			for conn, c := range conns {
				if conn == cmd.except {
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, cmd.data); err != nil {
					// One slow or dead client must not take the
					// channel down with it.
					s.logger.Infow("dropping connection after failed write",
						"channel_id", s.channelID, "user_id", c.userID, "error", err)
					conn.Close()
					delete(conns, conn)
					s.metrics.ConnectionDropped()
				}
			}

		case countCmd:
			cmd.reply <- len(conns)

		case stopCmd:
			return
		}
	}
}
