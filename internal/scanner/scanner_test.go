package scanner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rarb-labs/rarb/internal/worker"
	"github.com/rarb-labs/rarb/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeQuote struct {
	ask     string
	askSize string
	bid     string
}

// fakeLadder serves scripted quotes per asset.
type fakeLadder struct {
	mu     sync.Mutex
	quotes map[string]fakeQuote
}

func newFakeLadder() *fakeLadder {
	return &fakeLadder{quotes: make(map[string]fakeQuote)}
}

func (f *fakeLadder) set(assetID, ask, askSize string) {
	f.mu.Lock()
	f.quotes[assetID] = fakeQuote{ask: ask, askSize: askSize, bid: "0.01"}
	f.mu.Unlock()
}

func (f *fakeLadder) clear(assetID string) {
	f.mu.Lock()
	delete(f.quotes, assetID)
	f.mu.Unlock()
}

func (f *fakeLadder) BestAsk(assetID string) (decimal.Decimal, decimal.Decimal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q, ok := f.quotes[assetID]
	if !ok || q.ask == "" {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	return decimal.RequireFromString(q.ask), decimal.RequireFromString(q.askSize), true
}

func (f *fakeLadder) BestBid(assetID string) (decimal.Decimal, decimal.Decimal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q, ok := f.quotes[assetID]
	if !ok {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	return decimal.RequireFromString(q.bid), decimal.NewFromInt(1), true
}

type recordedDuration struct {
	alertID string
	seconds float64
}

type mockRecorder struct {
	mu        sync.Mutex
	alerts    []*types.Alert
	durations []recordedDuration
}

func (m *mockRecorder) InsertAlert(ctx context.Context, alert *types.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *mockRecorder) UpdateAlertDuration(ctx context.Context, alertID string, seconds float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations = append(m.durations, recordedDuration{alertID: alertID, seconds: seconds})
	return nil
}

type mockNotifier struct {
	mu     sync.Mutex
	alerts []*types.Alert
}

func (m *mockNotifier) ArbitrageAlert(alert *types.Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
}

func testMarket() *types.Market {
	return &types.Market{
		ID:         "m1",
		Question:   "Will it settle above?",
		Slug:       "will-it-settle-above",
		YesTokenID: "yes-1",
		NoTokenID:  "no-1",
	}
}

type scannerFixture struct {
	scanner  *Scanner
	ladder   *fakeLadder
	recorder *mockRecorder
	notifier *mockNotifier
	pool     *worker.Pool
	alerts   []*types.Alert
	mu       sync.Mutex
}

func newFixture(t *testing.T, threshold string) *scannerFixture {
	t.Helper()

	fx := &scannerFixture{
		ladder:   newFakeLadder(),
		recorder: &mockRecorder{},
		notifier: &mockNotifier{},
		pool:     worker.NewPool(worker.PoolConfig{Workers: 1, QueueSize: 64, Logger: zap.NewNop()}),
	}

	fx.scanner = New(Config{
		Threshold:              decimal.RequireFromString(threshold),
		MaxDaysUntilResolution: 30,
		Ladder:                 fx.ladder,
		Recorder:               fx.recorder,
		Notifier:               fx.notifier,
		Pool:                   fx.pool,
		OnAlert: func(alert *types.Alert) {
			fx.mu.Lock()
			fx.alerts = append(fx.alerts, alert)
			fx.mu.Unlock()
		},
		Logger: zap.NewNop(),
	})
	fx.scanner.SetMarkets([]*types.Market{testMarket()})

	return fx
}

func (fx *scannerFixture) callbackAlerts() []*types.Alert {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	return append([]*types.Alert(nil), fx.alerts...)
}

func (fx *scannerFixture) touch(assetID string) {
	fx.scanner.HandleMessage(&types.StreamMessage{EventType: types.EventBook, AssetID: assetID})
}

func TestDetectorAlertsAboveThreshold(t *testing.T) {
	fx := newFixture(t, "0.01")

	fx.ladder.set("yes-1", "0.45", "120")
	fx.touch("yes-1")
	// Only one side live yet: no detection.
	assert.Empty(t, fx.callbackAlerts())

	fx.ladder.set("no-1", "0.48", "100")
	fx.touch("no-1")

	alerts := fx.callbackAlerts()
	require.Len(t, alerts, 1)

	alert := alerts[0]
	assert.Equal(t, "m1", alert.MarketID)
	assert.Equal(t, "0.45", alert.YesAsk.String())
	assert.Equal(t, "0.48", alert.NoAsk.String())
	assert.Equal(t, "120", alert.YesAskSize.String())
	assert.Equal(t, "100", alert.NoAskSize.String())
	assert.Equal(t, "0.93", alert.Combined.String())
	assert.Equal(t, "0.07", alert.Profit.String())
	assert.False(t, alert.DetectedAt.IsZero())

	fx.pool.Close()
	assert.Len(t, fx.recorder.alerts, 1)
	assert.Len(t, fx.notifier.alerts, 1)
	assert.Equal(t, 1, fx.scanner.OpenOpportunityCount())
	assert.Equal(t, int64(1), fx.scanner.AlertCount())
}

func TestDetectorNoAlertWhenCombinedTooHigh(t *testing.T) {
	fx := newFixture(t, "0.01")

	// combined = 0.995, profit 0.005 <= threshold band upper edge... still
	// under threshold: no executable alert.
	fx.ladder.set("yes-1", "0.50", "50")
	fx.ladder.set("no-1", "0.495", "50")
	fx.touch("yes-1")
	fx.touch("no-1")

	assert.Empty(t, fx.callbackAlerts())
	assert.Zero(t, fx.scanner.OpenOpportunityCount())
}

func TestDetectorOpensLifetimeOnce(t *testing.T) {
	fx := newFixture(t, "0.01")

	fx.ladder.set("yes-1", "0.45", "120")
	fx.ladder.set("no-1", "0.48", "100")
	fx.touch("yes-1")
	fx.touch("no-1")
	fx.touch("yes-1")
	fx.touch("no-1")

	alerts := fx.callbackAlerts()
	require.Len(t, alerts, 3) // every detection invokes the callback

	// Same lifetime: one alert ID, one persisted row, one notification.
	assert.Equal(t, alerts[0].ID, alerts[1].ID)
	assert.Equal(t, alerts[0].ID, alerts[2].ID)

	fx.pool.Close()
	assert.Len(t, fx.recorder.alerts, 1)
	assert.Len(t, fx.notifier.alerts, 1)
	assert.Equal(t, int64(1), fx.scanner.AlertCount())
}

func TestDetectorClosesOpportunityWithDurationBackfill(t *testing.T) {
	fx := newFixture(t, "0.01")

	fx.ladder.set("yes-1", "0.45", "120")
	fx.ladder.set("no-1", "0.48", "100")
	fx.touch("yes-1")
	fx.touch("no-1")

	alerts := fx.callbackAlerts()
	require.Len(t, alerts, 1)
	openedID := alerts[0].ID

	time.Sleep(10 * time.Millisecond)

	// Asks widen until the edge is gone.
	fx.ladder.set("yes-1", "0.55", "120")
	fx.ladder.set("no-1", "0.47", "100")
	fx.touch("yes-1")

	assert.Zero(t, fx.scanner.OpenOpportunityCount())

	// A second unprofitable update must not backfill again.
	fx.touch("no-1")

	fx.pool.Close()
	require.Len(t, fx.recorder.durations, 1)
	assert.Equal(t, openedID, fx.recorder.durations[0].alertID)
	assert.Greater(t, fx.recorder.durations[0].seconds, 0.0)
}

func TestDetectorNearMissBand(t *testing.T) {
	fx := newFixture(t, "0.02")

	// profit = 0.016: inside (threshold-0.005, threshold].
	fx.ladder.set("yes-1", "0.49", "50")
	fx.ladder.set("no-1", "0.494", "50")
	fx.touch("yes-1")
	fx.touch("no-1")

	assert.Empty(t, fx.callbackAlerts())

	best := fx.scanner.TakeBestNearMiss()
	require.NotNil(t, best)
	assert.Equal(t, types.NearMissBelowThreshold, best.Reason)
	assert.Equal(t, "0.016", best.Profit.String())

	// The summary is cleared on read.
	assert.Nil(t, fx.scanner.TakeBestNearMiss())
	fx.pool.Close()
}

func TestDetectorKeepsBestNearMiss(t *testing.T) {
	fx := newFixture(t, "0.02")

	fx.ladder.set("yes-1", "0.49", "50")
	fx.ladder.set("no-1", "0.494", "50") // profit 0.016
	fx.touch("yes-1")
	fx.touch("no-1")

	fx.ladder.set("no-1", "0.492", "50") // profit 0.018, better
	fx.touch("no-1")

	fx.ladder.set("no-1", "0.494", "50") // back to 0.016, keep 0.018
	fx.touch("no-1")

	best := fx.scanner.TakeBestNearMiss()
	require.NotNil(t, best)
	assert.Equal(t, "0.018", best.Profit.String())
	fx.pool.Close()
}

func TestDetectorSkipsDistantResolution(t *testing.T) {
	fx := newFixture(t, "0.01")

	far := time.Now().UTC().AddDate(0, 0, 90)
	m := testMarket()
	m.EndDate = &far
	fx.scanner.SetMarkets([]*types.Market{m})

	fx.ladder.set("yes-1", "0.45", "120")
	fx.ladder.set("no-1", "0.48", "100")
	fx.touch("yes-1")
	fx.touch("no-1")

	assert.Empty(t, fx.callbackAlerts())
	assert.Zero(t, fx.scanner.OpenOpportunityCount())
	fx.pool.Close()
}

func TestDetectorIgnoresUnknownAssets(t *testing.T) {
	fx := newFixture(t, "0.01")

	fx.touch("not-tracked")

	assert.Empty(t, fx.callbackAlerts())
	assert.Zero(t, fx.scanner.PriceUpdateCount())
	fx.pool.Close()
}

func TestDetectorSideGoesNull(t *testing.T) {
	fx := newFixture(t, "0.01")

	fx.ladder.set("yes-1", "0.45", "120")
	fx.ladder.set("no-1", "0.48", "100")
	fx.touch("yes-1")
	fx.touch("no-1")
	require.Len(t, fx.callbackAlerts(), 1)

	// The NO ladder empties; detection halts but the lifetime stays open
	// until prices actually say the edge is gone.
	fx.ladder.clear("no-1")
	fx.touch("no-1")

	assert.Len(t, fx.callbackAlerts(), 1)
	assert.Equal(t, 1, fx.scanner.OpenOpportunityCount())
	fx.pool.Close()
}

func TestEvaluateBooksRestatement(t *testing.T) {
	fx := newFixture(t, "0.01")

	yesBook := &types.BookSnapshot{
		AssetID: "yes-1",
		Asks:    []types.PriceLevel{{Price: "0.45", Size: "120"}},
		Bids:    []types.PriceLevel{{Price: "0.40", Size: "10"}},
	}
	noBook := &types.BookSnapshot{
		AssetID: "no-1",
		Asks:    []types.PriceLevel{{Price: "0.48", Size: "100"}},
		Bids:    []types.PriceLevel{{Price: "0.42", Size: "10"}},
	}

	fx.scanner.EvaluateBooks(testMarket(), yesBook, noBook)
	fx.scanner.EvaluateBooks(testMarket(), yesBook, noBook)

	alerts := fx.callbackAlerts()
	require.Len(t, alerts, 2)
	assert.Equal(t, alerts[0].ID, alerts[1].ID)
	assert.Equal(t, "0.93", alerts[1].Combined.String())

	fx.pool.Close()
	assert.Len(t, fx.recorder.alerts, 1)
}

func TestScannerStats(t *testing.T) {
	fx := newFixture(t, "0.01")

	fx.ladder.set("yes-1", "0.45", "120")
	fx.ladder.set("no-1", "0.48", "100")
	fx.touch("yes-1")
	fx.touch("no-1")

	stats := fx.scanner.Stats(func() (int, int, int) { return 3, 2, 1400 })

	assert.Equal(t, 1, stats.MarketCount)
	assert.Equal(t, int64(2), stats.PriceUpdates)
	assert.Equal(t, int64(1), stats.AlertsTotal)
	assert.Equal(t, 3, stats.ConnCount)
	assert.Equal(t, 2, stats.ConnectedConns)
	assert.Equal(t, 1400, stats.AssetCount)
	fx.pool.Close()
}
