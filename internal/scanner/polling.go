package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/rarb-labs/rarb/internal/markets"
	"github.com/rarb-labs/rarb/pkg/types"
	"go.uber.org/zap"
)

// pollBatchSize bounds concurrent REST book fetches per cycle.
const pollBatchSize = 20

// Poller is the legacy REST scan loop: fetch both books per market and run
// them through the same detector the stream path uses.
type Poller struct {
	scanner  *Scanner
	client   *markets.Client
	interval time.Duration
	logger   *zap.Logger
}

// NewPoller creates a polling scanner.
func NewPoller(s *Scanner, client *markets.Client, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		scanner:  s,
		client:   client,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("polling-scanner-starting", zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.ScanOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ScanOnce runs one full pass over the tracked markets.
func (p *Poller) ScanOnce(ctx context.Context) {
	tracked := p.scanner.Markets()

	for start := 0; start < len(tracked); start += pollBatchSize {
		if ctx.Err() != nil {
			return
		}

		end := start + pollBatchSize
		if end > len(tracked) {
			end = len(tracked)
		}

		var wg sync.WaitGroup
		for _, m := range tracked[start:end] {
			wg.Add(1)
			go func(m *types.Market) {
				defer wg.Done()
				p.scanMarket(ctx, m)
			}(m)
		}
		wg.Wait()
	}
}

func (p *Poller) scanMarket(ctx context.Context, m *types.Market) {
	yesBook, err := p.client.FetchBook(ctx, m.YesTokenID)
	if err != nil {
		p.logger.Debug("fetch-yes-book-failed",
			zap.String("market-id", m.ID),
			zap.Error(err))
		return
	}

	noBook, err := p.client.FetchBook(ctx, m.NoTokenID)
	if err != nil {
		p.logger.Debug("fetch-no-book-failed",
			zap.String("market-id", m.ID),
			zap.Error(err))
		return
	}

	p.scanner.EvaluateBooks(m, yesBook, noBook)
}
