package balance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CachedBalance is the current cached USDC balance.
	CachedBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rarb_balance_cached_usdc",
		Help: "Current cached USDC balance",
	})

	// RefreshesTotal counts chain-truth refreshes.
	RefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rarb_balance_refreshes_total",
		Help: "Total number of balance refreshes from chain truth",
	})

	// ReservationsTotal counts reservation attempts by outcome.
	ReservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rarb_balance_reservations_total",
			Help: "Total number of balance reservation attempts",
		},
		[]string{"outcome"},
	)
)
