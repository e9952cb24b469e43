package storage

import (
	"context"

	"github.com/rarb-labs/rarb/pkg/types"
)

// Store is the persistence boundary. The scanner, executor and balance cache
// each see a narrow slice of it through their own recorder interfaces; the
// CLI query commands use the read side.
type Store interface {
	// InsertAlert persists a newly opened opportunity. Called once per
	// opportunity lifetime, not per detection.
	InsertAlert(ctx context.Context, alert *types.Alert) error

	// UpdateAlertDuration backfills how long an opportunity stayed open.
	UpdateAlertDuration(ctx context.Context, alertID string, seconds float64) error

	// InsertNearMiss persists an opportunity that could not be executed.
	InsertNearMiss(ctx context.Context, miss *types.NearMissAlert) error

	// InsertExecution persists the result of one execution attempt.
	InsertExecution(ctx context.Context, rec *types.ExecutionRecord) error

	// InsertPortfolioSnapshot persists a point-in-time wallet valuation.
	InsertPortfolioSnapshot(ctx context.Context, snap *types.PortfolioSnapshot) error

	// UpsertScannerStats replaces the singleton live-stats row.
	UpsertScannerStats(ctx context.Context, stats *types.ScannerStats) error

	// InsertStatsHistory appends an hourly activity sample.
	InsertStatsHistory(ctx context.Context, row *types.StatsHistoryRow) error

	// InsertMinuteStats appends a per-minute activity sample.
	InsertMinuteStats(ctx context.Context, row *types.MinuteStatsRow) error

	// RecentAlerts returns the newest persisted alerts, newest first.
	RecentAlerts(ctx context.Context, limit int) ([]types.Alert, error)

	// RecentExecutions returns the newest execution records, newest first.
	RecentExecutions(ctx context.Context, limit int) ([]types.ExecutionRecord, error)

	// PnLSummary aggregates execution outcomes.
	PnLSummary(ctx context.Context) (*types.PnLSummary, error)

	// Close releases the underlying connection.
	Close() error
}
