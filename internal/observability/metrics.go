package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventPublishes counts broadcast events published per room and type.
	EventPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lanes_event_publishes_total",
		Help: "Total number of broadcast events published",
	}, []string{"room_id", "event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lanes_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// WebSocketRoomConnections is the gauge of subscriber connections per room.
	WebSocketRoomConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lanes_websocket_room_connections",
		Help: "Number of WebSocket connections per room",
	}, []string{"room_id"})

	// GateDenials counts moderation gate denials by reason.
	GateDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lanes_gate_denials_total",
		Help: "Total number of moderation gate denials by reason",
	}, []string{"reason"})

	// RerankSweeps counts completed re-ranking sweeps.
	RerankSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lanes_rerank_sweeps_total",
		Help: "Total number of completed pinned-post re-ranking sweeps",
	})
)
