package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown stops every component in dependency order: stop taking traffic,
// stop the stream, flush final stats, drain the worker pool, close storage.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.health.SetReady(false)
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	a.slack.Shutdown(shutdownCtx)

	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	if a.mux != nil {
		err = a.mux.Close()
		if err != nil {
			a.logger.Error("multiplexer-close-error", zap.Error(err))
		}
	}

	a.wg.Wait()

	// Final stats snapshot before the store goes away.
	stats := a.scanner.Stats(a.connInfo)
	err = a.store.UpsertScannerStats(shutdownCtx, &stats)
	if err != nil {
		a.logger.Warn("final-stats-flush-failed", zap.Error(err))
	}

	// Drains queued persistence tasks.
	a.pool.Close()

	err = a.store.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.logger.Info("application-shutdown-complete")
	return nil
}
