package execution

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rarb-labs/rarb/internal/worker"
	"github.com/rarb-labs/rarb/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BalanceReserver is the executor's view of the balance cache.
type BalanceReserver interface {
	Balance() decimal.Decimal
	Reserve(cost decimal.Decimal) bool
	RequestRefresh()
}

// Recorder persists execution results and sizing near-misses.
type Recorder interface {
	InsertExecution(ctx context.Context, rec *types.ExecutionRecord) error
	InsertNearMiss(ctx context.Context, miss *types.NearMissAlert) error
}

// Notifier is told about unhedged fills; a PARTIAL leaves real exposure and
// somebody should look at it.
type Notifier interface {
	PartialFill(ctx context.Context, rec *types.ExecutionRecord)
}

// NegRiskSource resolves the neg_risk flag for a token when the alert's
// market metadata may be stale.
type NegRiskSource interface {
	FetchNegRisk(ctx context.Context, tokenID string) (bool, error)
}

// Config holds executor settings.
type Config struct {
	Submitter OrderSubmitter
	Balance   BalanceReserver
	Recorder  Recorder
	Notifier  Notifier
	NegRisk   NegRiskSource
	Pool      *worker.Pool

	MaxPositionSize decimal.Decimal
	OrderTimeout    time.Duration
	DryRun          bool

	Logger *zap.Logger
}

// Executor turns an alert into a pair of GTC BUY orders. One execution
// runs at a time; the orchestrator holds that lock, not the executor.
type Executor struct {
	config Config
	logger *zap.Logger

	attempted atomic.Int64
	filled    atomic.Int64
}

// New creates an executor.
func New(cfg Config) *Executor {
	return &Executor{config: cfg, logger: cfg.Logger}
}

// Execute sizes, funds and submits both legs for an alert. The returned
// record is always non-nil; errors are reserved for infrastructure failures
// that prevented a classification.
func (e *Executor) Execute(ctx context.Context, alert *types.Alert) (*types.ExecutionRecord, error) {
	rec := &types.ExecutionRecord{
		ID:       uuid.New().String(),
		AlertID:  alert.ID,
		MarketID: alert.MarketID,
		Question: alert.Question,
		YesPrice: alert.YesAsk,
		NoPrice:  alert.NoAsk,
	}

	sizing := ComputeSize(alert, e.config.MaxPositionSize)
	if sizing.Outcome == SizingNearMiss {
		return e.skip(rec, alert, sizing), nil
	}

	sizing = ShrinkToBalance(sizing, alert, e.config.Balance.Balance())
	if sizing.Outcome == SizingNearMiss {
		return e.skip(rec, alert, sizing), nil
	}

	rec.TradeSize = sizing.Shares
	rec.TotalCost = sizing.Cost
	rec.ExpectedProfit = sizing.Shares.Mul(alert.Profit)

	if e.config.DryRun {
		rec.Status = types.ExecutionDryRun
		rec.ExecutedAt = time.Now()
		e.logger.Info("dry-run-execution",
			zap.String("market", alert.MarketID),
			zap.String("shares", sizing.Shares.String()),
			zap.String("cost", sizing.Cost.String()),
			zap.String("expected-profit", rec.ExpectedProfit.String()))
		e.finish(rec)
		return rec, nil
	}

	negRisk := e.resolveNegRisk(ctx, alert)

	// Sign both legs before spending anything; a signing failure must not
	// burn the reservation.
	yesOrder, err := e.config.Submitter.BuildOrder(&OrderRequest{
		TokenID: alert.YesTokenID,
		Side:    "YES",
		Price:   alert.YesAsk,
		Shares:  sizing.Shares,
		NegRisk: negRisk,
	})
	if err != nil {
		return nil, err
	}
	noOrder, err := e.config.Submitter.BuildOrder(&OrderRequest{
		TokenID: alert.NoTokenID,
		Side:    "NO",
		Price:   alert.NoAsk,
		Shares:  sizing.Shares,
		NegRisk: negRisk,
	})
	if err != nil {
		return nil, err
	}

	if !e.config.Balance.Reserve(sizing.Cost) {
		// Balance moved between the shrink check and the reservation.
		sizing.Outcome = SizingNearMiss
		sizing.Reason = types.NearMissInsufficientBalance
		return e.skip(rec, alert, sizing), nil
	}

	submitCtx := ctx
	if e.config.OrderTimeout > 0 {
		var cancel context.CancelFunc
		submitCtx, cancel = context.WithTimeout(ctx, e.config.OrderTimeout)
		defer cancel()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		rec.Yes = e.submitLeg(submitCtx, yesOrder)
	}()
	go func() {
		defer wg.Done()
		rec.No = e.submitLeg(submitCtx, noOrder)
	}()
	wg.Wait()

	rec.ExecutedAt = time.Now()

	switch {
	case rec.Yes.Success && rec.No.Success:
		rec.Status = types.ExecutionFilled
		TradeCost.Observe(sizing.Cost.InexactFloat64())
	case rec.Yes.Success || rec.No.Success:
		rec.Status = types.ExecutionPartial
	default:
		rec.Status = types.ExecutionFailed
	}

	if rec.Status != types.ExecutionFilled {
		// The reservation assumed both legs landed; resync with the chain
		// rather than guessing what to credit back.
		e.config.Balance.RequestRefresh()
	}

	if rec.Status == types.ExecutionPartial && e.config.Notifier != nil && e.config.Pool != nil {
		notifyRec := *rec
		e.config.Pool.Submit("notify-partial-fill", func(ctx context.Context) {
			e.config.Notifier.PartialFill(ctx, &notifyRec)
		})
	}

	e.logger.Info("execution-complete",
		zap.String("market", alert.MarketID),
		zap.String("status", string(rec.Status)),
		zap.String("shares", sizing.Shares.String()),
		zap.String("cost", sizing.Cost.String()),
		zap.Bool("yes-leg", rec.Yes.Success),
		zap.Bool("no-leg", rec.No.Success))

	e.finish(rec)
	return rec, nil
}

func (e *Executor) submitLeg(ctx context.Context, order *PreparedOrder) types.OrderOutcome {
	outcome := types.OrderOutcome{
		TokenID: order.Request.TokenID,
		Side:    order.Request.Side,
	}

	resp, err := e.config.Submitter.Submit(ctx, order)
	if err != nil {
		outcome.Error = err.Error()
		e.logger.Warn("order-submission-failed",
			zap.String("side", order.Request.Side),
			zap.Error(err))
		return outcome
	}

	outcome.OrderID = resp.OrderID
	outcome.Success = resp.Success
	if resp.ErrorMsg != "" {
		outcome.Error = resp.ErrorMsg
	}
	if resp.TakingAmount != "" {
		// For a BUY the taking amount is the share count received.
		filled, err := decimal.NewFromString(resp.TakingAmount)
		if err == nil {
			outcome.FilledSize = filled
		}
	}
	return outcome
}

// skip records a sizing near-miss and returns a SKIPPED record.
func (e *Executor) skip(rec *types.ExecutionRecord, alert *types.Alert, sizing Sizing) *types.ExecutionRecord {
	rec.Status = types.ExecutionSkipped
	rec.Reason = sizing.Reason
	rec.ExecutedAt = time.Now()

	NearMissesTotal.WithLabelValues(sizing.Reason).Inc()

	e.logger.Info("execution-skipped",
		zap.String("market", alert.MarketID),
		zap.String("reason", sizing.Reason),
		zap.String("min-shares", sizing.MinShares.String()),
		zap.String("available", sizing.Available.String()))

	if e.config.Recorder != nil && e.config.Pool != nil {
		miss := &types.NearMissAlert{
			ID:              uuid.New().String(),
			MarketID:        alert.MarketID,
			Question:        alert.Question,
			Reason:          sizing.Reason,
			YesAsk:          alert.YesAsk,
			NoAsk:           alert.NoAsk,
			Combined:        alert.Combined,
			Profit:          alert.Profit,
			RequiredShares:  sizing.MinShares,
			AvailableShares: sizing.Available,
			DetectedAt:      time.Now(),
		}
		e.config.Pool.Submit("persist-near-miss", func(ctx context.Context) {
			err := e.config.Recorder.InsertNearMiss(ctx, miss)
			if err != nil {
				e.logger.Warn("persist-near-miss-failed", zap.Error(err))
			}
		})
	}

	e.finish(rec)
	return rec
}

// AttemptedCount reports how many executions reached order submission
// (including dry runs; skips never count).
func (e *Executor) AttemptedCount() int64 { return e.attempted.Load() }

// FilledCount reports how many executions filled both legs.
func (e *Executor) FilledCount() int64 { return e.filled.Load() }

// finish bumps metrics and hands the record to the persistence pool.
func (e *Executor) finish(rec *types.ExecutionRecord) {
	ExecutionsTotal.WithLabelValues(string(rec.Status)).Inc()

	if rec.Status != types.ExecutionSkipped {
		e.attempted.Add(1)
	}
	if rec.Status == types.ExecutionFilled {
		e.filled.Add(1)
	}

	if e.config.Recorder == nil || e.config.Pool == nil {
		return
	}
	persistRec := *rec
	e.config.Pool.Submit("persist-execution", func(ctx context.Context) {
		err := e.config.Recorder.InsertExecution(ctx, &persistRec)
		if err != nil {
			e.logger.Warn("persist-execution-failed", zap.Error(err))
		}
	})
}

// resolveNegRisk prefers live metadata, falling back to what the alert
// captured at detection time.
func (e *Executor) resolveNegRisk(ctx context.Context, alert *types.Alert) bool {
	if e.config.NegRisk == nil {
		return alert.NegRisk
	}
	negRisk, err := e.config.NegRisk.FetchNegRisk(ctx, alert.YesTokenID)
	if err != nil {
		e.logger.Debug("neg-risk-lookup-failed", zap.Error(err))
		return alert.NegRisk
	}
	return negRisk
}
