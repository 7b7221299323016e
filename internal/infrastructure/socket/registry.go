package socket

import (
	"encoding/json"
	"sync"
	"time"

	"owlet/internal/core/domain"
	"owlet/internal/infrastructure/monitoring"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Registry hands out channel sessions, creating them lazily on the
// first join and retiring them when the last connection leaves. It is
// the Broadcaster the write paths call after a commit.
//
// Command ordering: join, leave and stop are enqueued under the write
// lock, broadcasts under the read lock. A session therefore never
// receives a command after its stop, and a retired session is
// unreachable from the map.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ChannelID]*session

	writeTimeout time.Duration
	metrics      *monitoring.PrometheusCollector
	logger       *zap.SugaredLogger
}

func NewRegistry(writeTimeout time.Duration, metrics *monitoring.PrometheusCollector, logger *zap.SugaredLogger) *Registry {
	return &Registry{
		sessions:     make(map[domain.ChannelID]*session),
		writeTimeout: writeTimeout,
		metrics:      metrics,
		logger:       logger,
	}
}

// Broadcast serializes the event once and fans it out to every
// connection on the channel. A channel nobody listens on is a no-op.
func (r *Registry) Broadcast(channelID domain.ChannelID, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Errorw("failed to serialize event", "channel_id", channelID, "type", event.Type, "error", err)
		return
	}
	r.metrics.BroadcastSent(event.Type)
	r.send(channelID, data, nil)
}

// SessionCount reports how many channel sessions are live.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ConnectionCount reports how many connections a channel session holds.
func (r *Registry) ConnectionCount(channelID domain.ChannelID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[channelID]
	if !ok {
		return 0
	}
	reply := make(chan int, 1)
	sess.commands <- countCmd{reply: reply}
	return <-reply
}

func (r *Registry) join(channelID domain.ChannelID, c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[channelID]
	if !ok {
		sess = newSession(channelID, r.writeTimeout, r.metrics, r.logger)
		r.sessions[channelID] = sess
		r.metrics.SessionOpened()
		r.logger.Infow("channel session opened", "channel_id", channelID)
	}
	sess.commands <- joinCmd{c: c}
}

func (r *Registry) leave(channelID domain.ChannelID, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[channelID]
	if !ok {
		return
	}

	reply := make(chan int, 1)
	sess.commands <- leaveCmd{conn: conn, reply: reply}
	if <-reply == 0 {
		delete(r.sessions, channelID)
		sess.commands <- stopCmd{}
		r.metrics.SessionRetired()
		r.logger.Infow("channel session retired", "channel_id", channelID)
	}
}

func (r *Registry) send(channelID domain.ChannelID, data []byte, except *websocket.Conn) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if sess, ok := r.sessions[channelID]; ok {
		sess.commands <- broadcastCmd{data: data, except: except}
	}
}
