package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rarb-labs/rarb/internal/markets"
	"github.com/rarb-labs/rarb/pkg/types"
	"go.uber.org/zap"
)

// Run starts every component and blocks until a shutdown signal.
func (a *App) Run() error {
	mode := "live"
	if a.cfg.DryRun {
		mode = "dry-run"
	}
	transport := "realtime"
	if a.opts.Polling {
		transport = "polling"
	}

	a.logger.Info("application-starting",
		zap.String("mode", mode),
		zap.String("transport", transport),
		zap.String("threshold", a.cfg.MinProfitThreshold.String()),
		zap.Int("ws-connections", a.cfg.NumWSConnections))

	a.wg.Add(1)
	go a.runHTTPServer()

	tradable, err := a.markets.FetchTradableMarkets(a.ctx, a.selection())
	if err != nil {
		return fmt.Errorf("initial market fetch: %w", err)
	}
	a.markets.CacheNegRisk(tradable)
	a.scanner.SetMarkets(tradable)

	if a.opts.Polling {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.poller.Run(a.ctx)
		}()
	} else {
		err = a.mux.Start(assetList(tradable))
		if err != nil {
			return fmt.Errorf("start stream multiplexer: %w", err)
		}
	}

	a.startLoops()

	a.health.SetReady(true)
	a.slack.Startup(a.ctx, len(tradable), len(tradable)*2, a.cfg.DryRun)

	a.logger.Info("application-ready",
		zap.Int("markets", len(tradable)),
		zap.String("http-addr", ":"+a.cfg.HTTPPort))

	return a.waitForShutdown()
}

func (a *App) startLoops() {
	a.wg.Add(1)
	go a.executionLoop()

	a.wg.Add(1)
	go a.metadataRefreshLoop()

	a.wg.Add(1)
	go a.statsHistoryLoop()

	a.wg.Add(1)
	go a.minuteStatsLoop()

	if !a.cfg.DryRun {
		if a.balance != nil {
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				_, err := a.balance.Refresh(a.ctx)
				if err != nil {
					a.logger.Error("initial-balance-refresh-failed", zap.Error(err))
				}
				a.balance.Run(a.ctx)
			}()
		}
		if a.redeemer != nil {
			a.wg.Add(1)
			go a.redemptionLoop()
		}
	}
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

// executionLoop is the single execution lock: alerts are traded one at a
// time, in arrival order, detections racing a live trade are dropped at the
// channel.
func (a *App) executionLoop() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case alert := <-a.alertCh:
			_, err := a.executor.Execute(a.ctx, alert)
			if err != nil {
				a.logger.Error("execution-error",
					zap.String("market-id", alert.MarketID),
					zap.Error(err))
			}
		}
	}
}

// metadataRefreshLoop re-fetches tradable markets and resubscribes every
// connection when the set drifts past resubscribeDelta.
func (a *App) metadataRefreshLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.MetadataRefreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
		}

		tradable, err := a.markets.FetchTradableMarkets(a.ctx, a.selection())
		if err != nil {
			a.logger.Warn("metadata-refresh-failed", zap.Error(err))
			continue
		}

		current := a.scanner.MarketCount()
		if !shouldResubscribe(current, len(tradable)) {
			a.logger.Debug("metadata-refresh-no-change",
				zap.Int("current", current),
				zap.Int("fetched", len(tradable)))
			continue
		}

		a.markets.CacheNegRisk(tradable)
		a.scanner.SetMarkets(tradable)

		if a.mux != nil {
			err = a.mux.Resubscribe(assetList(tradable))
			if err != nil {
				a.logger.Error("resubscribe-failed", zap.Error(err))
				continue
			}
		}

		a.logger.Info("market-set-refreshed",
			zap.Int("previous", current),
			zap.Int("markets", len(tradable)))
	}
}

// statsHistoryLoop samples hourly activity; price updates are recorded as a
// delta since the previous sample.
func (a *App) statsHistoryLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.StatsHistoryEvery)
	defer ticker.Stop()

	lastPriceUpdates := a.scanner.PriceUpdateCount()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
		}

		current := a.scanner.PriceUpdateCount()
		_, connected, _ := a.connInfo()
		row := &types.StatsHistoryRow{
			PriceUpdates:        current - lastPriceUpdates,
			AlertsTotal:         a.scanner.AlertCount(),
			MarketCount:         a.scanner.MarketCount(),
			ExecutionsAttempted: a.executor.AttemptedCount(),
			ExecutionsFilled:    a.executor.FilledCount(),
			WSConnected:         connected,
			RecordedAt:          time.Now(),
		}
		lastPriceUpdates = current

		err := a.store.InsertStatsHistory(a.ctx, row)
		if err != nil {
			a.logger.Warn("persist-stats-history-failed", zap.Error(err))
		}
	}
}

// minuteStatsLoop samples per-minute deltas for the rate charts, updates the
// singleton stats row and logs the best near-miss seen in the window. The
// first tick only establishes the baseline.
func (a *App) minuteStatsLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.MinuteStatsEvery)
	defer ticker.Stop()

	var baselineSet bool
	var lastPriceUpdates, lastAlerts int64

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
		}

		priceUpdates := a.scanner.PriceUpdateCount()
		alerts := a.scanner.AlertCount()

		if baselineSet {
			_, connected, _ := a.connInfo()
			row := &types.MinuteStatsRow{
				PriceUpdates: priceUpdates - lastPriceUpdates,
				Alerts:       alerts - lastAlerts,
				WSConnected:  connected,
				RecordedAt:   time.Now(),
			}
			err := a.store.InsertMinuteStats(a.ctx, row)
			if err != nil {
				a.logger.Warn("persist-minute-stats-failed", zap.Error(err))
			}
		}
		baselineSet = true
		lastPriceUpdates = priceUpdates
		lastAlerts = alerts

		stats := a.scanner.Stats(a.connInfo)
		err := a.store.UpsertScannerStats(a.ctx, &stats)
		if err != nil {
			a.logger.Warn("upsert-scanner-stats-failed", zap.Error(err))
		}

		if miss := a.scanner.TakeBestNearMiss(); miss != nil {
			a.logger.Info("best-near-miss",
				zap.String("market-id", miss.MarketID),
				zap.String("reason", miss.Reason),
				zap.String("combined", miss.Combined.String()),
				zap.String("profit", miss.Profit.String()))
		}
	}
}

// redemptionLoop sweeps resolved positions back into USDC.
func (a *App) redemptionLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.RedemptionEvery)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
		}

		redeemed, err := a.redeemer.Sweep(a.ctx)
		if err != nil {
			a.logger.Warn("redemption-sweep-failed", zap.Error(err))
			continue
		}
		if redeemed > 0 {
			a.logger.Info("positions-redeemed", zap.Int("count", redeemed))
			a.balance.RequestRefresh()
		}
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}

// selection builds the market filter from configuration.
func (a *App) selection() markets.Selection {
	return markets.Selection{
		MinLiquidity: a.cfg.MinLiquidityUSD,
		MaxDays:      a.cfg.MaxDaysUntilResolution,
		MaxConns:     a.cfg.NumWSConnections,
	}
}

// shouldResubscribe reports whether the tradable market set drifted far
// enough to justify tearing every connection down.
func shouldResubscribe(current, fetched int) bool {
	delta := fetched - current
	if delta < 0 {
		delta = -delta
	}
	return delta > resubscribeDelta
}

// assetList flattens markets into the ordered YES/NO token list the
// multiplexer shards.
func assetList(tradable []*types.Market) []string {
	assets := make([]string, 0, len(tradable)*2)
	for _, m := range tradable {
		assets = append(assets, m.YesTokenID, m.NoTokenID)
	}
	return assets
}
