package redemption

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedemptionsTotal counts redemption transactions by outcome.
	RedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rarb_redemption_transactions_total",
			Help: "Total number of redemption transactions by outcome",
		},
		[]string{"outcome"},
	)
)
