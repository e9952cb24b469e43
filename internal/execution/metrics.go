package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionsTotal counts execution attempts by final status.
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rarb_exec_executions_total",
			Help: "Total number of execution attempts by final status",
		},
		[]string{"status"},
	)

	// OrdersSubmittedTotal counts individual order submissions by leg and
	// exchange-reported status.
	OrdersSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rarb_exec_orders_submitted_total",
			Help: "Total number of order submissions by leg and status",
		},
		[]string{"side", "status"},
	)

	// OrderSubmitLatency tracks round-trip time for order submission.
	OrderSubmitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rarb_exec_order_submit_seconds",
		Help:    "Order submission round-trip latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// NearMissesTotal counts sizing rejections by reason.
	NearMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rarb_exec_near_misses_total",
			Help: "Total number of sizing near-misses by reason",
		},
		[]string{"reason"},
	)

	// TradeCost tracks the USDC committed per executed trade.
	TradeCost = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rarb_exec_trade_cost_usd",
		Help:    "USDC committed per executed trade",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500},
	})
)
