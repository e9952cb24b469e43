package storage

import (
	"context"

	"github.com/rarb-labs/rarb/pkg/types"
	"go.uber.org/zap"
)

// ConsoleStore implements Store by logging writes and returning empty reads.
// Used when no database is configured, typically in dry-run sessions.
type ConsoleStore struct {
	logger *zap.Logger
}

// NewConsoleStore creates a console store.
func NewConsoleStore(logger *zap.Logger) *ConsoleStore {
	logger.Info("console-store-initialized")
	return &ConsoleStore{logger: logger}
}

func (c *ConsoleStore) InsertAlert(ctx context.Context, alert *types.Alert) error {
	c.logger.Info("arbitrage-alert",
		zap.String("alert-id", alert.ID),
		zap.String("market-id", alert.MarketID),
		zap.String("question", alert.Question),
		zap.String("yes-ask", alert.YesAsk.String()),
		zap.String("no-ask", alert.NoAsk.String()),
		zap.String("combined", alert.Combined.String()),
		zap.String("profit", alert.Profit.String()))
	return nil
}

func (c *ConsoleStore) UpdateAlertDuration(ctx context.Context, alertID string, seconds float64) error {
	c.logger.Info("opportunity-closed",
		zap.String("alert-id", alertID),
		zap.Float64("duration-seconds", seconds))
	return nil
}

func (c *ConsoleStore) InsertNearMiss(ctx context.Context, miss *types.NearMissAlert) error {
	c.logger.Info("near-miss",
		zap.String("market-id", miss.MarketID),
		zap.String("reason", miss.Reason),
		zap.String("profit", miss.Profit.String()),
		zap.String("required-shares", miss.RequiredShares.String()),
		zap.String("available-shares", miss.AvailableShares.String()))
	return nil
}

func (c *ConsoleStore) InsertExecution(ctx context.Context, rec *types.ExecutionRecord) error {
	c.logger.Info("execution-result",
		zap.String("execution-id", rec.ID),
		zap.String("market-id", rec.MarketID),
		zap.String("status", string(rec.Status)),
		zap.String("trade-size", rec.TradeSize.String()),
		zap.String("total-cost", rec.TotalCost.String()),
		zap.String("expected-profit", rec.ExpectedProfit.String()))
	return nil
}

func (c *ConsoleStore) InsertPortfolioSnapshot(ctx context.Context, snap *types.PortfolioSnapshot) error {
	c.logger.Info("portfolio-snapshot",
		zap.String("usdc", snap.USDCBalance.String()),
		zap.String("positions-value", snap.PositionsValue.String()),
		zap.String("total-value", snap.TotalValue.String()),
		zap.Int("positions", snap.PositionCount))
	return nil
}

func (c *ConsoleStore) UpsertScannerStats(ctx context.Context, stats *types.ScannerStats) error {
	return nil
}

func (c *ConsoleStore) InsertStatsHistory(ctx context.Context, row *types.StatsHistoryRow) error {
	return nil
}

func (c *ConsoleStore) InsertMinuteStats(ctx context.Context, row *types.MinuteStatsRow) error {
	return nil
}

func (c *ConsoleStore) RecentAlerts(ctx context.Context, limit int) ([]types.Alert, error) {
	return nil, nil
}

func (c *ConsoleStore) RecentExecutions(ctx context.Context, limit int) ([]types.ExecutionRecord, error) {
	return nil, nil
}

func (c *ConsoleStore) PnLSummary(ctx context.Context) (*types.PnLSummary, error) {
	return &types.PnLSummary{}, nil
}

// Close is a no-op for console storage.
func (c *ConsoleStore) Close() error {
	return nil
}
