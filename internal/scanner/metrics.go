package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PriceUpdatesTotal counts accepted top-of-book refreshes.
	PriceUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rarb_scanner_price_updates_total",
		Help: "Total number of top-of-book updates processed",
	})

	// AlertsTotal counts opened arbitrage opportunities.
	AlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rarb_scanner_alerts_total",
		Help: "Total number of arbitrage opportunities opened",
	})

	// NearMissesTotal counts detections inside the near-miss band.
	NearMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rarb_scanner_near_misses_total",
		Help: "Total number of near-miss detections under the profit threshold",
	})

	// OpenOpportunities tracks currently open opportunity lifetimes.
	OpenOpportunities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rarb_scanner_open_opportunities",
		Help: "Number of currently open arbitrage opportunities",
	})

	// OpportunityDurationSeconds observes lifetimes of closed opportunities.
	OpportunityDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rarb_scanner_opportunity_duration_seconds",
		Help:    "Lifetime of arbitrage opportunities from open to close",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
	})

	// TrackedMarkets is the number of markets under scan.
	TrackedMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rarb_scanner_tracked_markets",
		Help: "Number of markets currently tracked by the scanner",
	})
)
