package scanner

import (
	"time"

	"github.com/rarb-labs/rarb/pkg/types"
)

// ConnInfo reports fan-out connectivity for stats; wired to the multiplexer
// by the orchestrator.
type ConnInfo func() (conns, connected, assets int)

// Stats snapshots the live counters.
func (s *Scanner) Stats(connInfo ConnInfo) types.ScannerStats {
	stats := types.ScannerStats{
		MarketCount:  s.MarketCount(),
		PriceUpdates: s.priceUpdates.Load(),
		AlertsTotal:  s.alertsTotal.Load(),
		StartedAt:    s.startedAt,
		UpdatedAt:    time.Now(),
	}

	if connInfo != nil {
		stats.ConnCount, stats.ConnectedConns, stats.AssetCount = connInfo()
	}

	return stats
}

// PriceUpdateCount returns the cumulative price update counter.
func (s *Scanner) PriceUpdateCount() int64 {
	return s.priceUpdates.Load()
}

// AlertCount returns the cumulative opened-alert counter.
func (s *Scanner) AlertCount() int64 {
	return s.alertsTotal.Load()
}
