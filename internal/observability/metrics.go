package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_hub_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// BackendCallLatency records backend collaborator latency by surface and operation.
	BackendCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campus_hub_backend_call_latency_seconds",
		Help:    "Backend call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"surface", "operation"})

	// BackendCallErrors counts failed backend calls by surface and error class.
	BackendCallErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_hub_backend_call_errors_total",
		Help: "Backend call failures by surface and error class",
	}, []string{"surface", "class"})

	// FeedRefetches counts feed refetches by collection and trigger.
	FeedRefetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_hub_feed_refetches_total",
		Help: "Feed refetches by collection and trigger",
	}, []string{"collection", "trigger"})

	// RealtimeReconnects counts realtime subscription reconnect attempts.
	RealtimeReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_hub_realtime_reconnects_total",
		Help: "Realtime subscription reconnect attempts by channel and outcome",
	}, []string{"channel", "outcome"})

	// SessionBootstraps counts bootstrap outcomes.
	SessionBootstraps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_hub_session_bootstraps_total",
		Help: "Session bootstrap outcomes",
	}, []string{"outcome"})

	// GuardDecisions counts route guard decisions.
	GuardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_hub_guard_decisions_total",
		Help: "Route guard decisions by outcome",
	}, []string{"outcome"})

	// ActiveDevices is the gauge of live device contexts.
	ActiveDevices = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "campus_hub_active_devices",
		Help: "Number of device contexts currently held in memory",
	})

	// WebSocketConnectionsTotal is the gauge of open live connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "campus_hub_websocket_connections",
		Help: "Number of open live websocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_hub_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackBackendCall returns a function that records call latency when called (e.g. defer).
func TrackBackendCall(surface, operation string) func() {
	start := time.Now()
	return func() {
		BackendCallLatency.WithLabelValues(surface, operation).Observe(time.Since(start).Seconds())
	}
}
