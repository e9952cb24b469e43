package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScannerStats is the live counters snapshot, upserted into the singleton
// scanner_stats row and served from /api/status.
type ScannerStats struct {
	MarketCount    int
	AssetCount     int
	ConnCount      int
	ConnectedConns int

	PriceUpdates int64
	AlertsTotal  int64

	StartedAt time.Time
	UpdatedAt time.Time
}

// StatsHistoryRow is the hourly activity sample: price updates are a delta
// since the previous sample, alerts are cumulative.
type StatsHistoryRow struct {
	PriceUpdates int64
	AlertsTotal  int64
	MarketCount  int

	ExecutionsAttempted int64
	ExecutionsFilled    int64
	WSConnected         int

	RecordedAt time.Time
}

// MinuteStatsRow is the per-minute activity sample used for the dashboard
// rate charts. Both counters are deltas against the previous minute.
type MinuteStatsRow struct {
	PriceUpdates int64
	Alerts       int64
	WSConnected  int
	RecordedAt   time.Time
}

// PnLSummary aggregates execution outcomes for the pnl command.
type PnLSummary struct {
	TotalExecutions int
	Filled          int
	Partial         int
	Failed          int
	Skipped         int

	TotalCost      decimal.Decimal
	ExpectedProfit decimal.Decimal
}
