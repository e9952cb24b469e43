package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionStatus classifies the outcome of a paired execution attempt.
type ExecutionStatus string

const (
	// ExecutionFilled means both legs were accepted and matched.
	ExecutionFilled ExecutionStatus = "FILLED"
	// ExecutionPartial means exactly one leg went through, leaving an
	// unhedged position.
	ExecutionPartial ExecutionStatus = "PARTIAL"
	// ExecutionFailed means neither leg went through.
	ExecutionFailed ExecutionStatus = "FAILED"
	// ExecutionSkipped means sizing rejected the opportunity before any
	// order was sent.
	ExecutionSkipped ExecutionStatus = "SKIPPED"
	// ExecutionDryRun means the full pipeline ran but submission was
	// suppressed.
	ExecutionDryRun ExecutionStatus = "DRY_RUN"
)

// OrderOutcome is the per-leg result of an order submission.
type OrderOutcome struct {
	TokenID    string
	Side       string // "YES" or "NO"
	OrderID    string
	Success    bool
	FilledSize decimal.Decimal
	Error      string
}

// ExecutionRecord is the persisted result of one execution attempt against
// an alert.
type ExecutionRecord struct {
	ID       string
	AlertID  string
	MarketID string
	Question string

	Status ExecutionStatus
	Reason string // populated for SKIPPED

	TradeSize      decimal.Decimal // shares per leg
	YesPrice       decimal.Decimal
	NoPrice        decimal.Decimal
	TotalCost      decimal.Decimal
	ExpectedProfit decimal.Decimal

	Yes OrderOutcome
	No  OrderOutcome

	ExecutedAt time.Time
}

// PortfolioSnapshot is a point-in-time valuation of the wallet: free USDC
// plus the marked value of open positions.
type PortfolioSnapshot struct {
	USDCBalance    decimal.Decimal
	PositionsValue decimal.Decimal
	TotalValue     decimal.Decimal
	PositionCount  int
	TakenAt        time.Time
}

// Position is an open outcome-token position from the Data API.
type Position struct {
	AssetID      string          `json:"asset"`
	ConditionID  string          `json:"conditionId"`
	Title        string          `json:"title"`
	Outcome      string          `json:"outcome"`
	Size         decimal.Decimal `json:"size"`
	AvgPrice     decimal.Decimal `json:"avgPrice"`
	CurPrice     decimal.Decimal `json:"curPrice"`
	CurrentValue decimal.Decimal `json:"currentValue"`
	Redeemable   bool            `json:"redeemable"`
	NegRisk      bool            `json:"negativeRisk"`
}

// Value returns the marked value of the position, preferring the API-supplied
// currentValue when present.
func (p *Position) Value() decimal.Decimal {
	if !p.CurrentValue.IsZero() {
		return p.CurrentValue
	}
	return p.Size.Mul(p.CurPrice)
}
