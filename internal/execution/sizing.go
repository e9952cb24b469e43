package execution

import (
	"github.com/rarb-labs/rarb/pkg/types"
	"github.com/shopspring/decimal"
)

var (
	// liquiditySafetyMargin is the fraction of displayed top-of-book size
	// assumed still fillable by submission time.
	liquiditySafetyMargin = decimal.RequireFromString("0.5")

	// minOrderValueUSD is the exchange's minimum notional per order.
	minOrderValueUSD = decimal.RequireFromString("1.10")

	// minOrderShares is the exchange's minimum share count per order.
	minOrderShares = decimal.NewFromInt(5)
)

// SizingOutcome classifies the sizing decision.
type SizingOutcome int

const (
	// SizingProceed means the trade clears every constraint.
	SizingProceed SizingOutcome = iota
	// SizingNearMiss means the opportunity was real but could not clear a
	// minimum; worth recording, not an error.
	SizingNearMiss
)

// Sizing is the result of the sizing pipeline. Shares is a whole number of
// shares per leg; Cost is shares x (yes_ask + no_ask).
type Sizing struct {
	Outcome SizingOutcome
	Reason  string // near-miss reason when Outcome != SizingProceed

	Shares    decimal.Decimal
	Cost      decimal.Decimal
	MinShares decimal.Decimal
	Available decimal.Decimal
}

// ComputeSize runs the balance-independent sizing steps:
//
//	available  = floor(min(yes_size, no_size) * 0.5)
//	min_shares = max(ceil(1.10/yes_ask), ceil(1.10/no_ask), 5)
//	shares     = min(available, floor(max_position / combined))
//
// The caller applies the balance constraint afterwards, under the execution
// lock.
func ComputeSize(alert *types.Alert, maxPosition decimal.Decimal) Sizing {
	available := decimal.Min(alert.YesAskSize, alert.NoAskSize).
		Mul(liquiditySafetyMargin).
		Floor()

	minShares := decimal.Max(
		minOrderValueUSD.Div(alert.YesAsk).Ceil(),
		minOrderValueUSD.Div(alert.NoAsk).Ceil(),
		minOrderShares,
	)

	if available.LessThan(minShares) {
		return Sizing{
			Outcome:   SizingNearMiss,
			Reason:    types.NearMissInsufficientLiquidity,
			MinShares: minShares,
			Available: available,
		}
	}

	combined := alert.YesAsk.Add(alert.NoAsk)
	shares := decimal.Min(available, maxPosition.Div(combined).Floor())

	if shares.LessThan(minShares) {
		return Sizing{
			Outcome:   SizingNearMiss,
			Reason:    types.NearMissPositionLimit,
			MinShares: minShares,
			Available: available,
		}
	}

	return Sizing{
		Outcome:   SizingProceed,
		Shares:    shares,
		Cost:      shares.Mul(combined),
		MinShares: minShares,
		Available: available,
	}
}

// ShrinkToBalance caps a sized trade to the available balance:
// shares = floor(balance / combined). Returns a near-miss when the shrunken
// trade falls under the exchange minimum.
func ShrinkToBalance(s Sizing, alert *types.Alert, balance decimal.Decimal) Sizing {
	if s.Outcome != SizingProceed || s.Cost.LessThanOrEqual(balance) {
		return s
	}

	combined := alert.YesAsk.Add(alert.NoAsk)
	shares := balance.Div(combined).Floor()

	if shares.LessThan(s.MinShares) {
		return Sizing{
			Outcome:   SizingNearMiss,
			Reason:    types.NearMissInsufficientBalance,
			MinShares: s.MinShares,
			Available: s.Available,
		}
	}

	return Sizing{
		Outcome:   SizingProceed,
		Shares:    shares,
		Cost:      shares.Mul(combined),
		MinShares: s.MinShares,
		Available: s.Available,
	}
}
