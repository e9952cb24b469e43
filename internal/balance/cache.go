package balance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rarb-labs/rarb/internal/worker"
	"github.com/rarb-labs/rarb/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ChainSource reads wallet truth: free USDC and open positions.
type ChainSource interface {
	USDCBalance(ctx context.Context) (decimal.Decimal, error)
	Positions(ctx context.Context) ([]types.Position, error)
}

// Recorder persists portfolio snapshots taken on refresh.
type Recorder interface {
	InsertPortfolioSnapshot(ctx context.Context, snap *types.PortfolioSnapshot) error
}

// Config holds balance cache settings.
type Config struct {
	Source   ChainSource
	Recorder Recorder
	Pool     *worker.Pool
	Interval time.Duration
	Logger   *zap.Logger
}

// Cache is the reservation ledger between executions and the chain. A
// reservation deducts immediately and money is never credited back: failed or
// partial executions trigger a full refresh from chain truth instead, so the
// cache only ever errs low.
type Cache struct {
	config Config
	logger *zap.Logger

	mu          sync.Mutex
	cached      decimal.Decimal
	lastRefresh time.Time

	refreshCh chan struct{}
}

// New creates a balance cache. The cache starts at zero; call Refresh before
// trading.
func New(cfg Config) *Cache {
	return &Cache{
		config:    cfg,
		logger:    cfg.Logger,
		refreshCh: make(chan struct{}, 1),
	}
}

// Balance returns the current cached balance.
func (c *Cache) Balance() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached
}

// Reserve atomically checks and deducts cost. Returns false without touching
// the cache when funds are insufficient; after a granted reservation the
// cached balance is never negative.
func (c *Cache) Reserve(cost decimal.Decimal) bool {
	if cost.LessThanOrEqual(decimal.Zero) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached.LessThan(cost) {
		ReservationsTotal.WithLabelValues("denied").Inc()
		return false
	}

	c.cached = c.cached.Sub(cost)
	ReservationsTotal.WithLabelValues("granted").Inc()
	CachedBalance.Set(c.cached.InexactFloat64())

	c.logger.Debug("balance-reserved",
		zap.String("cost", cost.String()),
		zap.String("remaining", c.cached.String()))

	return true
}

// Refresh replaces the cached balance from chain truth and records a
// portfolio snapshot. Reservations made mid-query are intentionally
// overwritten: the chain is authoritative.
func (c *Cache) Refresh(ctx context.Context) (decimal.Decimal, error) {
	usdc, err := c.config.Source.USDCBalance(ctx)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("fetch usdc balance: %w", err)
	}

	positions, err := c.config.Source.Positions(ctx)
	if err != nil {
		c.logger.Warn("fetch-positions-failed", zap.Error(err))
		positions = nil
	}

	positionsValue := decimal.Zero
	for i := range positions {
		positionsValue = positionsValue.Add(positions[i].Value())
	}

	now := time.Now()

	c.mu.Lock()
	c.cached = usdc
	c.lastRefresh = now
	c.mu.Unlock()

	RefreshesTotal.Inc()
	CachedBalance.Set(usdc.InexactFloat64())

	c.logger.Info("balance-refreshed",
		zap.String("usdc", usdc.String()),
		zap.String("positions-value", positionsValue.String()),
		zap.Int("positions", len(positions)))

	if c.config.Recorder != nil && c.config.Pool != nil {
		snap := &types.PortfolioSnapshot{
			USDCBalance:    usdc,
			PositionsValue: positionsValue,
			TotalValue:     usdc.Add(positionsValue),
			PositionCount:  len(positions),
			TakenAt:        now,
		}
		c.config.Pool.Submit("persist-portfolio-snapshot", func(ctx context.Context) {
			err := c.config.Recorder.InsertPortfolioSnapshot(ctx, snap)
			if err != nil {
				c.logger.Warn("persist-portfolio-snapshot-failed", zap.Error(err))
			}
		})
	}

	return usdc, nil
}

// RequestRefresh schedules an out-of-band refresh on the background loop
// without blocking the caller. Used after failed or partial executions.
func (c *Cache) RequestRefresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// LastRefresh returns when the cache last synced with the chain.
func (c *Cache) LastRefresh() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRefresh
}

// Run refreshes on the configured interval and on demand until the context
// is cancelled.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-c.refreshCh:
		}

		_, err := c.Refresh(ctx)
		if err != nil {
			c.logger.Error("balance-refresh-failed", zap.Error(err))
		}
	}
}
