package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks live WebSocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rarb_ws_active_connections",
		Help: "Number of active WebSocket connections",
	})

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rarb_ws_reconnect_attempts_total",
		Help: "Total number of WebSocket reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rarb_ws_reconnect_failures_total",
		Help: "Total number of WebSocket reconnection failures",
	})

	// MessagesReceivedTotal tracks messages received by event type.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rarb_ws_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
		[]string{"event_type"},
	)

	// SubscribedAssets tracks the number of subscribed assets across all
	// connections.
	SubscribedAssets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rarb_ws_subscribed_assets",
		Help: "Number of assets currently subscribed across all connections",
	})

	// StaleConnectionsClosedTotal tracks watchdog force-closes.
	StaleConnectionsClosedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rarb_ws_stale_connections_closed_total",
		Help: "Total number of connections force-closed by the zombie watchdog",
	})

	// ConnectionDuration tracks connection lifetime before disconnect.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rarb_ws_connection_duration_seconds",
		Help:    "Duration of WebSocket connections before disconnect",
		Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800, 43200, 86400},
	})
)
