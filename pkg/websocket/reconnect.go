package websocket

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReconnectConfig holds the backoff schedule for reconnection. The delay
// doubles per failure with each individual wait capped at WaitCap and the
// stored delay capped at MaxDelay, so a long outage settles into steady
// WaitCap-spaced attempts.
type ReconnectConfig struct {
	InitialDelay time.Duration
	WaitCap      time.Duration
	MaxDelay     time.Duration
}

// ReconnectManager drives exponential-backoff reconnection for one
// connection.
type ReconnectManager struct {
	config  ReconnectConfig
	logger  *zap.Logger
	mu      sync.Mutex
	current time.Duration
}

// NewReconnectManager creates a reconnection manager with the given schedule.
func NewReconnectManager(cfg ReconnectConfig, logger *zap.Logger) *ReconnectManager {
	return &ReconnectManager{
		config:  cfg,
		logger:  logger,
		current: cfg.InitialDelay,
	}
}

// Reconnect retries connectFunc until it succeeds or the context is
// cancelled, sleeping the scheduled backoff before each attempt.
func (rm *ReconnectManager) Reconnect(ctx context.Context, connectFunc func(context.Context) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		wait := rm.NextWait()

		rm.logger.Info("attempting-reconnection", zap.Duration("backoff", wait))
		ReconnectAttemptsTotal.Inc()

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}

		err := connectFunc(ctx)
		if err == nil {
			rm.Reset()
			rm.logger.Info("reconnection-successful")
			return nil
		}

		rm.logger.Warn("reconnection-failed", zap.Error(err))
		ReconnectFailuresTotal.Inc()
	}
}

// NextWait returns the wait before the next attempt and advances the
// schedule: wait = min(current, WaitCap), next current = min(wait*2,
// MaxDelay).
func (rm *ReconnectManager) NextWait() time.Duration {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	wait := rm.current
	if wait > rm.config.WaitCap {
		wait = rm.config.WaitCap
	}

	next := wait * 2
	if next > rm.config.MaxDelay {
		next = rm.config.MaxDelay
	}
	rm.current = next

	return wait
}

// Reset restores the schedule to the initial delay after a successful
// connection.
func (rm *ReconnectManager) Reset() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.current = rm.config.InitialDelay
}
