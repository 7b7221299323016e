package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exposes gateway metrics. All methods are safe on a
// nil receiver so wiring stays optional in tests.
type PrometheusCollector struct {
	channelConnections  prometheus.Gauge
	presenceConnections prometheus.Gauge
	activeSessions      prometheus.Gauge

	broadcastsTotal   *prometheus.CounterVec
	typingEventsTotal prometheus.Counter
	droppedConnsTotal prometheus.Counter

	presenceQueryDuration prometheus.Histogram
	presenceShardFailures prometheus.Counter
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		channelConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "owlet_channel_connections",
			Help: "Open websocket connections across all channel sessions",
		}),

		presenceConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "owlet_presence_connections",
			Help: "Open presence websocket connections",
		}),

		activeSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "owlet_channel_sessions_active",
			Help: "Channel sessions currently held by the registry",
		}),

		broadcastsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "owlet_broadcasts_total",
			Help: "Events fanned out to channel sessions",
		}, []string{"type"}),

		typingEventsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "owlet_typing_events_total",
			Help: "Typing indicator frames accepted from clients",
		}),

		droppedConnsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "owlet_dropped_connections_total",
			Help: "Connections dropped after a failed write",
		}),

		presenceQueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "owlet_presence_query_duration_seconds",
			Help:    "Latency of fan-out presence queries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		}),

		presenceShardFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "owlet_presence_shard_failures_total",
			Help: "Presence shard queries that timed out or failed",
		}),
	}
}

func (c *PrometheusCollector) ChannelConnectionOpened() {
	if c == nil {
		return
	}
	c.channelConnections.Inc()
}

func (c *PrometheusCollector) ChannelConnectionClosed() {
	if c == nil {
		return
	}
	c.channelConnections.Dec()
}

func (c *PrometheusCollector) PresenceConnectionOpened() {
	if c == nil {
		return
	}
	c.presenceConnections.Inc()
}

func (c *PrometheusCollector) PresenceConnectionClosed() {
	if c == nil {
		return
	}
	c.presenceConnections.Dec()
}

func (c *PrometheusCollector) SessionOpened() {
	if c == nil {
		return
	}
	c.activeSessions.Inc()
}

func (c *PrometheusCollector) SessionRetired() {
	if c == nil {
		return
	}
	c.activeSessions.Dec()
}

func (c *PrometheusCollector) BroadcastSent(eventType string) {
	if c == nil {
		return
	}
	c.broadcastsTotal.WithLabelValues(eventType).Inc()
}

func (c *PrometheusCollector) TypingEvent() {
	if c == nil {
		return
	}
	c.typingEventsTotal.Inc()
}

func (c *PrometheusCollector) ConnectionDropped() {
	if c == nil {
		return
	}
	c.droppedConnsTotal.Inc()
}

func (c *PrometheusCollector) ObservePresenceQuery(d time.Duration) {
	if c == nil {
		return
	}
	c.presenceQueryDuration.Observe(d.Seconds())
}

func (c *PrometheusCollector) PresenceShardFailure() {
	if c == nil {
		return
	}
	c.presenceShardFailures.Inc()
}
