// Package metrics declares the Prometheus collectors exported at /metrics.
//
// Naming convention: namespace_subsystem_name
//   - namespace: soundclash (application-level grouping)
//   - subsystem: websocket, room, game, catalog, circuit_breaker, rate_limit
//   - name: specific metric (connections_active, events_total, etc.)
//
// Metric Types:
//   - Gauge: current state (connections, rooms, participants)
//   - Counter: cumulative events (events processed, timer expirations)
//   - Histogram: latency distributions (event processing time)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveWebSocketConnections tracks the current number of active WebSocket connections.
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "soundclash",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of active rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "soundclash",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomParticipants tracks the number of connected participants per room.
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "soundclash",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of connected participants in each room",
	}, []string{"room_id"})

	// RoomPhaseTransitions tracks state machine phase transitions.
	RoomPhaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundclash",
		Subsystem: "game",
		Name:      "phase_transitions_total",
		Help:      "Total number of game phase transitions",
	}, []string{"from_phase", "to_phase"})

	// DisconnectionEvents tracks entries into the disconnection controller's phases.
	DisconnectionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundclash",
		Subsystem: "game",
		Name:      "disconnection_events_total",
		Help:      "Total number of disconnection controller transitions",
	}, []string{"outcome"})

	// WebsocketEvents tracks the total number of WebSocket events processed.
	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundclash",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total WebSocket events processed",
	}, []string{"event_type", "status"})

	// MessageProcessingDuration tracks the time spent processing WebSocket messages.
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "soundclash",
		Subsystem: "websocket",
		Name:      "message_processing_seconds",
		Help:      "Time spent processing WebSocket messages",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"event_type"})

	// TimerExpirations tracks completed countdown timers by purpose.
	TimerExpirations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundclash",
		Subsystem: "game",
		Name:      "timer_expirations_total",
		Help:      "Total number of countdown timers that reached zero",
	}, []string{"purpose"})

	// CatalogSampleDuration tracks the latency of catalog sampling calls.
	CatalogSampleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "soundclash",
		Subsystem: "catalog",
		Name:      "sample_duration_seconds",
		Help:      "Time spent sampling prompts or sounds from the asset catalog",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	// CircuitBreakerState tracks the current state of a named circuit breaker.
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "soundclash",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks requests rejected by a circuit breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundclash",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks inbound WS events rejected by the rate limiter.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundclash",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of WebSocket events that exceeded the rate limit",
	}, []string{"event_type"})

	// RateLimitRequests tracks every inbound event checked against the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "soundclash",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of WebSocket events checked against the rate limiter",
	}, []string{"event_type"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
