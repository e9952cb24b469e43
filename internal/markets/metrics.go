package markets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MarketsFetchedTotal counts raw markets returned by the Gamma API.
	MarketsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rarb_markets_fetched_total",
		Help: "Total number of markets fetched from the Gamma API",
	})

	// TrackedMarkets is the current number of markets passing the
	// tradability filters.
	TrackedMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rarb_markets_tracked",
		Help: "Number of markets currently tracked by the scanner",
	})

	// APIErrorsTotal counts failed Gamma/CLOB REST requests.
	APIErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rarb_markets_api_errors_total",
		Help: "Total number of failed market API requests",
	})
)
