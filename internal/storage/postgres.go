package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rarb-labs/rarb/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		market_id TEXT NOT NULL,
		question TEXT NOT NULL,
		slug TEXT NOT NULL DEFAULT '',
		yes_token_id TEXT NOT NULL,
		no_token_id TEXT NOT NULL,
		neg_risk BOOLEAN NOT NULL DEFAULT FALSE,
		yes_ask NUMERIC NOT NULL,
		no_ask NUMERIC NOT NULL,
		yes_ask_size NUMERIC NOT NULL,
		no_ask_size NUMERIC NOT NULL,
		combined NUMERIC NOT NULL,
		profit NUMERIC NOT NULL,
		end_date TIMESTAMPTZ,
		detected_at TIMESTAMPTZ NOT NULL,
		duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS near_miss_alerts (
		id TEXT PRIMARY KEY,
		market_id TEXT NOT NULL,
		question TEXT NOT NULL,
		reason TEXT NOT NULL,
		yes_ask NUMERIC NOT NULL,
		no_ask NUMERIC NOT NULL,
		combined NUMERIC NOT NULL,
		profit NUMERIC NOT NULL,
		required_shares NUMERIC NOT NULL DEFAULT 0,
		available_shares NUMERIC NOT NULL DEFAULT 0,
		detected_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		alert_id TEXT NOT NULL,
		market_id TEXT NOT NULL,
		question TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		trade_size NUMERIC NOT NULL DEFAULT 0,
		yes_price NUMERIC NOT NULL DEFAULT 0,
		no_price NUMERIC NOT NULL DEFAULT 0,
		total_cost NUMERIC NOT NULL DEFAULT 0,
		expected_profit NUMERIC NOT NULL DEFAULT 0,
		yes_order_id TEXT NOT NULL DEFAULT '',
		yes_success BOOLEAN NOT NULL DEFAULT FALSE,
		yes_error TEXT NOT NULL DEFAULT '',
		yes_filled_size NUMERIC NOT NULL DEFAULT 0,
		no_order_id TEXT NOT NULL DEFAULT '',
		no_success BOOLEAN NOT NULL DEFAULT FALSE,
		no_error TEXT NOT NULL DEFAULT '',
		no_filled_size NUMERIC NOT NULL DEFAULT 0,
		executed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS portfolio_snapshots (
		id BIGSERIAL PRIMARY KEY,
		usdc_balance NUMERIC NOT NULL,
		positions_value NUMERIC NOT NULL,
		total_value NUMERIC NOT NULL,
		position_count INTEGER NOT NULL,
		taken_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scanner_stats (
		id INTEGER PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		market_count INTEGER NOT NULL,
		asset_count INTEGER NOT NULL,
		conn_count INTEGER NOT NULL,
		connected_conns INTEGER NOT NULL,
		price_updates BIGINT NOT NULL,
		alerts_total BIGINT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stats_history (
		id BIGSERIAL PRIMARY KEY,
		price_updates BIGINT NOT NULL,
		alerts_total BIGINT NOT NULL,
		market_count INTEGER NOT NULL,
		executions_attempted BIGINT NOT NULL DEFAULT 0,
		executions_filled BIGINT NOT NULL DEFAULT 0,
		ws_connected INTEGER NOT NULL DEFAULT 0,
		recorded_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS minute_stats (
		id BIGSERIAL PRIMARY KEY,
		price_updates BIGINT NOT NULL,
		alerts BIGINT NOT NULL,
		ws_connected INTEGER NOT NULL DEFAULT 0,
		recorded_at TIMESTAMPTZ NOT NULL
	)`,
}

// NewPostgresStore connects, pings and creates the schema if missing.
func NewPostgresStore(cfg *PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, stmt := range schema {
		_, err = db.Exec(stmt)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	cfg.Logger.Info("postgres-store-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStore{db: db, logger: cfg.Logger}, nil
}

// InsertAlert stores a newly opened opportunity.
func (p *PostgresStore) InsertAlert(ctx context.Context, alert *types.Alert) error {
	query := `
		INSERT INTO alerts (
			id, market_id, question, slug, yes_token_id, no_token_id, neg_risk,
			yes_ask, no_ask, yes_ask_size, no_ask_size, combined, profit,
			end_date, detected_at, duration_seconds
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	var endDate any
	if alert.EndDate != nil {
		endDate = *alert.EndDate
	}

	_, err := p.db.ExecContext(ctx, query,
		alert.ID, alert.MarketID, alert.Question, alert.Slug,
		alert.YesTokenID, alert.NoTokenID, alert.NegRisk,
		alert.YesAsk.String(), alert.NoAsk.String(),
		alert.YesAskSize.String(), alert.NoAskSize.String(),
		alert.Combined.String(), alert.Profit.String(),
		endDate, alert.DetectedAt, alert.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}

	p.logger.Debug("alert-stored",
		zap.String("alert-id", alert.ID),
		zap.String("market-id", alert.MarketID))
	return nil
}

// UpdateAlertDuration backfills how long an opportunity stayed open.
func (p *PostgresStore) UpdateAlertDuration(ctx context.Context, alertID string, seconds float64) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE alerts SET duration_seconds = $1 WHERE id = $2`,
		seconds, alertID,
	)
	if err != nil {
		return fmt.Errorf("update alert duration: %w", err)
	}
	return nil
}

// InsertNearMiss stores a near-miss record.
func (p *PostgresStore) InsertNearMiss(ctx context.Context, miss *types.NearMissAlert) error {
	query := `
		INSERT INTO near_miss_alerts (
			id, market_id, question, reason, yes_ask, no_ask, combined, profit,
			required_shares, available_shares, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := p.db.ExecContext(ctx, query,
		miss.ID, miss.MarketID, miss.Question, miss.Reason,
		miss.YesAsk.String(), miss.NoAsk.String(),
		miss.Combined.String(), miss.Profit.String(),
		miss.RequiredShares.String(), miss.AvailableShares.String(),
		miss.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert near miss: %w", err)
	}
	return nil
}

// InsertExecution stores an execution record with both leg outcomes.
func (p *PostgresStore) InsertExecution(ctx context.Context, rec *types.ExecutionRecord) error {
	query := `
		INSERT INTO executions (
			id, alert_id, market_id, question, status, reason,
			trade_size, yes_price, no_price, total_cost, expected_profit,
			yes_order_id, yes_success, yes_error, yes_filled_size,
			no_order_id, no_success, no_error, no_filled_size,
			executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := p.db.ExecContext(ctx, query,
		rec.ID, rec.AlertID, rec.MarketID, rec.Question,
		string(rec.Status), rec.Reason,
		rec.TradeSize.String(), rec.YesPrice.String(), rec.NoPrice.String(),
		rec.TotalCost.String(), rec.ExpectedProfit.String(),
		rec.Yes.OrderID, rec.Yes.Success, rec.Yes.Error, rec.Yes.FilledSize.String(),
		rec.No.OrderID, rec.No.Success, rec.No.Error, rec.No.FilledSize.String(),
		rec.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}

	p.logger.Debug("execution-stored",
		zap.String("execution-id", rec.ID),
		zap.String("status", string(rec.Status)))
	return nil
}

// InsertPortfolioSnapshot stores a wallet valuation sample.
func (p *PostgresStore) InsertPortfolioSnapshot(ctx context.Context, snap *types.PortfolioSnapshot) error {
	query := `
		INSERT INTO portfolio_snapshots (
			usdc_balance, positions_value, total_value, position_count, taken_at
		) VALUES ($1, $2, $3, $4, $5)
	`

	_, err := p.db.ExecContext(ctx, query,
		snap.USDCBalance.String(), snap.PositionsValue.String(),
		snap.TotalValue.String(), snap.PositionCount, snap.TakenAt,
	)
	if err != nil {
		return fmt.Errorf("insert portfolio snapshot: %w", err)
	}
	return nil
}

// UpsertScannerStats replaces the singleton stats row.
func (p *PostgresStore) UpsertScannerStats(ctx context.Context, stats *types.ScannerStats) error {
	query := `
		INSERT INTO scanner_stats (
			id, market_count, asset_count, conn_count, connected_conns,
			price_updates, alerts_total, started_at, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			market_count = EXCLUDED.market_count,
			asset_count = EXCLUDED.asset_count,
			conn_count = EXCLUDED.conn_count,
			connected_conns = EXCLUDED.connected_conns,
			price_updates = EXCLUDED.price_updates,
			alerts_total = EXCLUDED.alerts_total,
			updated_at = EXCLUDED.updated_at
	`

	_, err := p.db.ExecContext(ctx, query,
		stats.MarketCount, stats.AssetCount, stats.ConnCount, stats.ConnectedConns,
		stats.PriceUpdates, stats.AlertsTotal, stats.StartedAt, stats.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert scanner stats: %w", err)
	}
	return nil
}

// InsertStatsHistory appends an hourly sample.
func (p *PostgresStore) InsertStatsHistory(ctx context.Context, row *types.StatsHistoryRow) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO stats_history (price_updates, alerts_total, market_count,
		 executions_attempted, executions_filled, ws_connected, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		row.PriceUpdates, row.AlertsTotal, row.MarketCount,
		row.ExecutionsAttempted, row.ExecutionsFilled, row.WSConnected, row.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stats history: %w", err)
	}
	return nil
}

// InsertMinuteStats appends a per-minute sample.
func (p *PostgresStore) InsertMinuteStats(ctx context.Context, row *types.MinuteStatsRow) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO minute_stats (price_updates, alerts, ws_connected, recorded_at)
		 VALUES ($1, $2, $3, $4)`,
		row.PriceUpdates, row.Alerts, row.WSConnected, row.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert minute stats: %w", err)
	}
	return nil
}

// RecentAlerts returns the newest alerts first.
func (p *PostgresStore) RecentAlerts(ctx context.Context, limit int) ([]types.Alert, error) {
	query := `
		SELECT id, market_id, question, slug, yes_token_id, no_token_id, neg_risk,
		       yes_ask, no_ask, yes_ask_size, no_ask_size, combined, profit,
		       end_date, detected_at, duration_seconds
		FROM alerts ORDER BY detected_at DESC LIMIT $1
	`

	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []types.Alert
	for rows.Next() {
		var a types.Alert
		var yesAsk, noAsk, yesSize, noSize, combined, profit string
		var endDate sql.NullTime

		err = rows.Scan(&a.ID, &a.MarketID, &a.Question, &a.Slug,
			&a.YesTokenID, &a.NoTokenID, &a.NegRisk,
			&yesAsk, &noAsk, &yesSize, &noSize, &combined, &profit,
			&endDate, &a.DetectedAt, &a.DurationSeconds)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}

		a.YesAsk = mustDecimal(yesAsk)
		a.NoAsk = mustDecimal(noAsk)
		a.YesAskSize = mustDecimal(yesSize)
		a.NoAskSize = mustDecimal(noSize)
		a.Combined = mustDecimal(combined)
		a.Profit = mustDecimal(profit)
		if endDate.Valid {
			t := endDate.Time
			a.EndDate = &t
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// RecentExecutions returns the newest execution records first.
func (p *PostgresStore) RecentExecutions(ctx context.Context, limit int) ([]types.ExecutionRecord, error) {
	query := `
		SELECT id, alert_id, market_id, question, status, reason,
		       trade_size, yes_price, no_price, total_cost, expected_profit,
		       yes_order_id, yes_success, yes_error, yes_filled_size,
		       no_order_id, no_success, no_error, no_filled_size,
		       executed_at
		FROM executions ORDER BY executed_at DESC LIMIT $1
	`

	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	var recs []types.ExecutionRecord
	for rows.Next() {
		var r types.ExecutionRecord
		var status string
		var tradeSize, yesPrice, noPrice, totalCost, expectedProfit string
		var yesFilled, noFilled string

		err = rows.Scan(&r.ID, &r.AlertID, &r.MarketID, &r.Question, &status, &r.Reason,
			&tradeSize, &yesPrice, &noPrice, &totalCost, &expectedProfit,
			&r.Yes.OrderID, &r.Yes.Success, &r.Yes.Error, &yesFilled,
			&r.No.OrderID, &r.No.Success, &r.No.Error, &noFilled,
			&r.ExecutedAt)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}

		r.Status = types.ExecutionStatus(status)
		r.TradeSize = mustDecimal(tradeSize)
		r.YesPrice = mustDecimal(yesPrice)
		r.NoPrice = mustDecimal(noPrice)
		r.TotalCost = mustDecimal(totalCost)
		r.ExpectedProfit = mustDecimal(expectedProfit)
		r.Yes.FilledSize = mustDecimal(yesFilled)
		r.No.FilledSize = mustDecimal(noFilled)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// PnLSummary aggregates execution outcomes. Cost and expected profit only
// count filled executions.
func (p *PostgresStore) PnLSummary(ctx context.Context) (*types.PnLSummary, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'FILLED'),
			COUNT(*) FILTER (WHERE status = 'PARTIAL'),
			COUNT(*) FILTER (WHERE status = 'FAILED'),
			COUNT(*) FILTER (WHERE status = 'SKIPPED'),
			COALESCE(SUM(total_cost) FILTER (WHERE status = 'FILLED'), 0),
			COALESCE(SUM(expected_profit) FILTER (WHERE status = 'FILLED'), 0)
		FROM executions
	`

	var s types.PnLSummary
	var totalCost, expectedProfit string
	err := p.db.QueryRowContext(ctx, query).Scan(
		&s.TotalExecutions, &s.Filled, &s.Partial, &s.Failed, &s.Skipped,
		&totalCost, &expectedProfit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pnl summary: %w", err)
	}

	s.TotalCost = mustDecimal(totalCost)
	s.ExpectedProfit = mustDecimal(expectedProfit)
	return &s, nil
}

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	p.logger.Info("closing-postgres-store")
	return p.db.Close()
}

// mustDecimal parses a NUMERIC column value; the database enforces the
// format, so a parse failure here means corruption.
func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
