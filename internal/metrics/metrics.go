package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway and messaging instrumentation, exposed on /metrics.
var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_active_connections",
		Help: "Number of websocket connections currently authenticated.",
	})

	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_sent_total",
		Help: "Total number of chat messages accepted and persisted.",
	})

	RoomBroadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_room_broadcasts_total",
		Help: "Total number of events fanned out to room subscribers.",
	})
)
