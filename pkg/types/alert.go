package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Alert is a detected arbitrage opportunity: both asks are live and their sum
// leaves more than the configured profit threshold on the table.
type Alert struct {
	ID         string
	MarketID   string
	Question   string
	Slug       string
	YesTokenID string
	NoTokenID  string
	NegRisk    bool

	YesAsk     decimal.Decimal
	NoAsk      decimal.Decimal
	YesAskSize decimal.Decimal
	NoAskSize  decimal.Decimal

	Combined decimal.Decimal // yes_ask + no_ask
	Profit   decimal.Decimal // 1 - combined, per share

	EndDate    *time.Time
	DetectedAt time.Time

	// DurationSeconds is backfilled onto the persisted row when the
	// opportunity closes. Zero while the opportunity is still open.
	DurationSeconds float64
}

// Near-miss reasons.
const (
	NearMissBelowThreshold        = "below_threshold"
	NearMissInsufficientLiquidity = "insufficient_liquidity"
	NearMissInsufficientBalance   = "insufficient_balance"
	NearMissPositionLimit         = "position_limit"
)

// NearMissAlert records an opportunity that looked executable but fell short:
// profit just under the threshold, or sizing that could not clear the
// minimum order.
type NearMissAlert struct {
	ID       string
	MarketID string
	Question string
	Reason   string

	YesAsk   decimal.Decimal
	NoAsk    decimal.Decimal
	Combined decimal.Decimal
	Profit   decimal.Decimal

	// Sizing context, zero when the reason is below_threshold.
	RequiredShares  decimal.Decimal
	AvailableShares decimal.Decimal

	DetectedAt time.Time
}
