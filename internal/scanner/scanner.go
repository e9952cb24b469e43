package scanner

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

// nearMissBand is how far under the threshold an opportunity still gets a
// near-miss trace: (threshold - 0.5%, threshold].
var nearMissBand = decimal.RequireFromString("0.005")

// Ladder provides best-price lookups against the connection-local level
// caches, keyed by asset id regardless of which connection owns the asset.
type Ladder interface {
	BestAsk(assetID string) (price, size decimal.Decimal, ok bool)
	BestBid(assetID string) (price, size decimal.Decimal, ok bool)
}

// Recorder is the persistence surface the scanner writes through. Calls are
// made from the worker pool, never from the detection path.
type Recorder interface {
	InsertAlert(ctx context.Context, alert *types.Alert) error
	UpdateAlertDuration(ctx context.Context, alertID string, seconds float64) error
}

// Notifier announces opened opportunities. Implementations must swallow
// their own errors.
type Notifier interface {
	ArbitrageAlert(alert *types.Alert)
}

// Config holds scanner settings.
type Config struct {
	Threshold              decimal.Decimal
	MaxDaysUntilResolution int

	Ladder   Ladder
	Recorder Recorder
	Notifier Notifier
	Pool     *worker.Pool

	// OnAlert is invoked inline for every executable detection with the
	// full price tuple. The callback must not block.
	OnAlert func(alert *types.Alert)

	Logger *zap.Logger
}

// Scanner keeps per-market top-of-book state and runs arbitrage detection
// inline on every stream update.
type Scanner struct {
	config Config
	logger *zap.Logger

	mu      sync.RWMutex
	states  map[string]*marketState // market id -> state
	byToken map[string]*marketState // asset id -> owning market state

	activeMu sync.Mutex
	active   map[string]*openOpportunity // market id -> open lifetime

	nearMu       sync.Mutex
	bestNearMiss *types.NearMissAlert

	priceUpdates atomic.Int64
	alertsTotal  atomic.Int64
	startedAt    time.Time
}

// openOpportunity is an arbitrage window that has been alerted and not yet
// closed.
type openOpportunity struct {
	alertID   string
	firstSeen time.Time
}

// marketState is the consistent price tuple for one market. All four sides
// are read and written under the state mutex, so the detector never sees a
// torn (yes_ask, no_ask, yes_size, no_size) combination.
type marketState struct {
	mu     sync.Mutex
	market *types.Market
	yes    types.TopOfBook
	no     types.TopOfBook
}

// tuple is an immutable detection snapshot taken under the state mutex.
type tuple struct {
	market     *types.Market
	yesAsk     decimal.Decimal
	noAsk      decimal.Decimal
	yesAskSize decimal.Decimal
	noAskSize  decimal.Decimal
	valid      bool
}

// New creates a scanner.
func New(cfg Config) *Scanner {
	return &Scanner{
		config:    cfg,
		logger:    cfg.Logger,
		states:    make(map[string]*marketState),
		byToken:   make(map[string]*marketState),
		active:    make(map[string]*openOpportunity),
		startedAt: time.Now(),
	}
}

// SetMarkets replaces the tracked market set, preserving state for markets
// that survive the refresh.
func (s *Scanner) SetMarkets(markets []*types.Market) {
	states := make(map[string]*marketState, len(markets))
	byToken := make(map[string]*marketState, len(markets)*2)

	s.mu.Lock()
	for _, m := range markets {
		st, ok := s.states[m.ID]
		if !ok {
			st = &marketState{market: m}
		} else {
			st.mu.Lock()
			st.market = m
			st.mu.Unlock()
		}
		states[m.ID] = st
		byToken[m.YesTokenID] = st
		byToken[m.NoTokenID] = st
	}
	s.states = states
	s.byToken = byToken
	s.mu.Unlock()

	TrackedMarkets.Set(float64(len(markets)))

	s.logger.Info("scanner-markets-updated", zap.Int("markets", len(markets)))
}

// Markets returns the currently tracked markets.
func (s *Scanner) Markets() []*types.Market {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]*types.Market, 0, len(s.states))
	for _, st := range s.states {
		markets = append(markets, st.market)
	}
	return markets
}

// MarketCount returns the number of tracked markets.
func (s *Scanner) MarketCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// HandleMessage is the stream handler. It runs inline on the connection read
// loops: refresh the touched side from the ladder, snapshot the tuple, and
// detect. No blocking work happens here.
func (s *Scanner) HandleMessage(msg *types.StreamMessage) {
	switch msg.EventType {
	case types.EventBook:
		s.touchAsset(msg.AssetID)
	case types.EventPriceChange:
		if len(msg.Changes) == 0 {
			s.touchAsset(msg.AssetID)
			return
		}

		touched := make(map[string]struct{}, len(msg.Changes))
		for _, change := range msg.Changes {
			assetID := change.AssetID
			if assetID == "" {
				assetID = msg.AssetID
			}
			touched[assetID] = struct{}{}
		}
		for assetID := range touched {
			s.touchAsset(assetID)
		}
	}
}

// touchAsset refreshes one side of a market from the ladder and re-runs
// detection on the resulting tuple.
func (s *Scanner) touchAsset(assetID string) {
	if assetID == "" || s.config.Ladder == nil {
		return
	}

	s.mu.RLock()
	st := s.byToken[assetID]
	s.mu.RUnlock()

	if st == nil {
		return
	}

	s.priceUpdates.Add(1)
	PriceUpdatesTotal.Inc()

	askPrice, askSize, askOK := s.config.Ladder.BestAsk(assetID)
	bidPrice, _, bidOK := s.config.Ladder.BestBid(assetID)

	st.mu.Lock()
	side := &st.yes
	if assetID == st.market.NoTokenID {
		side = &st.no
	}

	side.BestAsk = nullDecimal(askPrice, askOK)
	side.BestAskSize = nullDecimal(askSize, askOK)
	side.BestBid = nullDecimal(bidPrice, bidOK)
	side.Revision++
	side.UpdatedAt = time.Now()

	snap := snapshotLocked(st)
	st.mu.Unlock()

	s.evaluate(snap)
}

// EvaluateBooks feeds REST book snapshots through the same detection math.
// Used by the polling scan path.
func (s *Scanner) EvaluateBooks(market *types.Market, yesBook, noBook *types.BookSnapshot) {
	s.mu.RLock()
	st := s.states[market.ID]
	s.mu.RUnlock()

	if st == nil {
		return
	}

	s.priceUpdates.Add(1)
	PriceUpdatesTotal.Inc()

	st.mu.Lock()
	applyBookLocked(&st.yes, yesBook)
	applyBookLocked(&st.no, noBook)
	snap := snapshotLocked(st)
	st.mu.Unlock()

	s.evaluate(snap)
}

func applyBookLocked(side *types.TopOfBook, book *types.BookSnapshot) {
	askPrice, askSize, askOK := book.BestAsk()
	bidPrice, _, bidOK := book.BestBid()

	side.BestAsk = nullDecimal(askPrice, askOK)
	side.BestAskSize = nullDecimal(askSize, askOK)
	side.BestBid = nullDecimal(bidPrice, bidOK)
	side.Revision++
	side.UpdatedAt = time.Now()
}

func snapshotLocked(st *marketState) tuple {
	if !st.yes.HasAsk() || !st.no.HasAsk() {
		return tuple{market: st.market}
	}

	return tuple{
		market:     st.market,
		yesAsk:     st.yes.BestAsk.Decimal,
		noAsk:      st.no.BestAsk.Decimal,
		yesAskSize: st.yes.BestAskSize.Decimal,
		noAskSize:  st.no.BestAskSize.Decimal,
		valid:      true,
	}
}

// evaluate is the detector: profit = 1 - (yes_ask + no_ask).
func (s *Scanner) evaluate(snap tuple) {
	if !snap.valid {
		return
	}

	combined := snap.yesAsk.Add(snap.noAsk)
	profit := decimal.NewFromInt(1).Sub(combined)

	if profit.LessThanOrEqual(decimal.Zero) {
		s.closeOpportunity(snap.market.ID)
		return
	}

	if profit.LessThanOrEqual(s.config.Threshold) {
		if profit.GreaterThan(s.config.Threshold.Sub(nearMissBand)) {
			s.recordNearMiss(snap, combined, profit)
		}
		return
	}

	if !snap.market.ResolvesWithinDays(s.config.MaxDaysUntilResolution, time.Now()) {
		return
	}

	s.alert(snap, combined, profit)
}

func (s *Scanner) recordNearMiss(snap tuple, combined, profit decimal.Decimal) {
	NearMissesTotal.Inc()

	s.logger.Debug("near-miss",
		zap.String("market-id", snap.market.ID),
		zap.String("question", snap.market.Question),
		zap.String("combined", combined.String()),
		zap.String("profit", profit.String()))

	s.nearMu.Lock()
	if s.bestNearMiss == nil || profit.GreaterThan(s.bestNearMiss.Profit) {
		s.bestNearMiss = &types.NearMissAlert{
			ID:         uuid.New().String(),
			MarketID:   snap.market.ID,
			Question:   snap.market.Question,
			Reason:     types.NearMissBelowThreshold,
			YesAsk:     snap.yesAsk,
			NoAsk:      snap.noAsk,
			Combined:   combined,
			Profit:     profit,
			DetectedAt: time.Now(),
		}
	}
	s.nearMu.Unlock()
}

// alert opens the opportunity lifetime on first sight and invokes the
// execution callback on every detection.
func (s *Scanner) alert(snap tuple, combined, profit decimal.Decimal) {
	now := time.Now()

	s.activeMu.Lock()
	opp, open := s.active[snap.market.ID]
	if !open {
		opp = &openOpportunity{
			alertID:   uuid.New().String(),
			firstSeen: now,
		}
		s.active[snap.market.ID] = opp
	}
	s.activeMu.Unlock()

	alert := &types.Alert{
		ID:         opp.alertID,
		MarketID:   snap.market.ID,
		Question:   snap.market.Question,
		Slug:       snap.market.Slug,
		YesTokenID: snap.market.YesTokenID,
		NoTokenID:  snap.market.NoTokenID,
		NegRisk:    snap.market.NegRisk,
		YesAsk:     snap.yesAsk,
		NoAsk:      snap.noAsk,
		YesAskSize: snap.yesAskSize,
		NoAskSize:  snap.noAskSize,
		Combined:   combined,
		Profit:     profit,
		EndDate:    snap.market.EndDate,
		DetectedAt: now,
	}

	if !open {
		s.alertsTotal.Add(1)
		AlertsTotal.Inc()
		OpenOpportunities.Inc()

		s.logger.Info("arbitrage-opportunity",
			zap.String("market-id", alert.MarketID),
			zap.String("question", alert.Question),
			zap.String("yes-ask", alert.YesAsk.String()),
			zap.String("no-ask", alert.NoAsk.String()),
			zap.String("profit", alert.Profit.String()))

		// Persistence and notification stay off the read-loop path.
		if s.config.Recorder != nil && s.config.Pool != nil {
			persisted := *alert
			s.config.Pool.Submit("persist-alert", func(ctx context.Context) {
				err := s.config.Recorder.InsertAlert(ctx, &persisted)
				if err != nil {
					s.logger.Warn("persist-alert-failed", zap.Error(err))
				}
			})
		}
		if s.config.Notifier != nil && s.config.Pool != nil {
			notified := *alert
			s.config.Pool.Submit("notify-alert", func(ctx context.Context) {
				s.config.Notifier.ArbitrageAlert(&notified)
			})
		}
	}

	if s.config.OnAlert != nil {
		s.config.OnAlert(alert)
	}
}

// closeOpportunity ends an open lifetime, backfilling the duration onto the
// persisted alert exactly once.
func (s *Scanner) closeOpportunity(marketID string) {
	s.activeMu.Lock()
	opp, open := s.active[marketID]
	if open {
		delete(s.active, marketID)
	}
	s.activeMu.Unlock()

	if !open {
		return
	}

	duration := time.Since(opp.firstSeen)
	OpenOpportunities.Dec()
	OpportunityDurationSeconds.Observe(duration.Seconds())

	s.logger.Info("opportunity-closed",
		zap.String("market-id", marketID),
		zap.Duration("duration", duration))

	if s.config.Recorder != nil && s.config.Pool != nil {
		alertID := opp.alertID
		seconds := duration.Seconds()
		s.config.Pool.Submit("backfill-alert-duration", func(ctx context.Context) {
			err := s.config.Recorder.UpdateAlertDuration(ctx, alertID, seconds)
			if err != nil {
				s.logger.Warn("backfill-alert-duration-failed", zap.Error(err))
			}
		})
	}
}

// OpenOpportunityCount returns the number of currently open lifetimes.
func (s *Scanner) OpenOpportunityCount() int {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	return len(s.active)
}

// TakeBestNearMiss returns and clears the best near-miss seen since the last
// call.
func (s *Scanner) TakeBestNearMiss() *types.NearMissAlert {
	s.nearMu.Lock()
	defer s.nearMu.Unlock()

	best := s.bestNearMiss
	s.bestNearMiss = nil
	return best
}

func nullDecimal(d decimal.Decimal, ok bool) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}
