package execution

import (
	"testing"

	"github.com/rarb-labs/rarb/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func sizingAlert(yesAsk, noAsk, yesSize, noSize string) *types.Alert {
	ya := decimal.RequireFromString(yesAsk)
	na := decimal.RequireFromString(noAsk)
	return &types.Alert{
		MarketID:   "0xmkt",
		YesAsk:     ya,
		NoAsk:      na,
		YesAskSize: decimal.RequireFromString(yesSize),
		NoAskSize:  decimal.RequireFromString(noSize),
		Combined:   ya.Add(na),
		Profit:     decimal.NewFromInt(1).Sub(ya.Add(na)),
	}
}

func TestComputeSizeHappyPath(t *testing.T) {
	alert := sizingAlert("0.45", "0.48", "100", "120")

	s := ComputeSize(alert, decimal.RequireFromString("100"))

	assert.Equal(t, SizingProceed, s.Outcome)
	// available = floor(min(100, 120) * 0.5) = 50, under the position cap
	// floor(100 / 0.93) = 107.
	assert.Equal(t, "50", s.Shares.String())
	assert.Equal(t, "46.5", s.Cost.String())
	assert.Equal(t, "5", s.MinShares.String())
	assert.Equal(t, "50", s.Available.String())
}

func TestComputeSizeThinLiquidity(t *testing.T) {
	alert := sizingAlert("0.45", "0.48", "8", "9")

	s := ComputeSize(alert, decimal.RequireFromString("100"))

	assert.Equal(t, SizingNearMiss, s.Outcome)
	assert.Equal(t, types.NearMissInsufficientLiquidity, s.Reason)
	assert.Equal(t, "4", s.Available.String())
	assert.True(t, s.Shares.IsZero())
}

func TestComputeSizeMinNotionalRaisesFloor(t *testing.T) {
	// ceil(1.10 / 0.10) = 11 shares to clear the exchange minimum notional.
	alert := sizingAlert("0.10", "0.85", "20", "20")

	s := ComputeSize(alert, decimal.RequireFromString("100"))

	assert.Equal(t, SizingNearMiss, s.Outcome)
	assert.Equal(t, types.NearMissInsufficientLiquidity, s.Reason)
	assert.Equal(t, "11", s.MinShares.String())
	assert.Equal(t, "10", s.Available.String())
}

func TestComputeSizePositionLimit(t *testing.T) {
	alert := sizingAlert("0.45", "0.48", "200", "200")

	s := ComputeSize(alert, decimal.RequireFromString("4"))

	assert.Equal(t, SizingNearMiss, s.Outcome)
	assert.Equal(t, types.NearMissPositionLimit, s.Reason)
}

func TestComputeSizePositionCapBinds(t *testing.T) {
	alert := sizingAlert("0.45", "0.48", "400", "400")

	s := ComputeSize(alert, decimal.RequireFromString("100"))

	assert.Equal(t, SizingProceed, s.Outcome)
	// floor(100 / 0.93) = 107 beats available = 200.
	assert.Equal(t, "107", s.Shares.String())
	assert.Equal(t, "99.51", s.Cost.String())
}

func TestShrinkToBalanceCapsShares(t *testing.T) {
	alert := sizingAlert("0.45", "0.48", "100", "120")
	s := ComputeSize(alert, decimal.RequireFromString("100"))

	shrunk := ShrinkToBalance(s, alert, decimal.RequireFromString("20"))

	assert.Equal(t, SizingProceed, shrunk.Outcome)
	// floor(20 / 0.93) = 21 shares at 0.93 combined.
	assert.Equal(t, "21", shrunk.Shares.String())
	assert.Equal(t, "19.53", shrunk.Cost.String())
}

func TestShrinkToBalanceNoOpWhenFunded(t *testing.T) {
	alert := sizingAlert("0.45", "0.48", "100", "120")
	s := ComputeSize(alert, decimal.RequireFromString("100"))

	shrunk := ShrinkToBalance(s, alert, decimal.RequireFromString("50"))

	assert.Equal(t, s, shrunk)
}

func TestShrinkToBalanceBelowMinimum(t *testing.T) {
	alert := sizingAlert("0.45", "0.48", "100", "120")
	s := ComputeSize(alert, decimal.RequireFromString("100"))

	shrunk := ShrinkToBalance(s, alert, decimal.RequireFromString("4"))

	assert.Equal(t, SizingNearMiss, shrunk.Outcome)
	assert.Equal(t, types.NearMissInsufficientBalance, shrunk.Reason)
	assert.True(t, shrunk.Shares.IsZero())
}

func TestShrinkToBalancePassesThroughNearMiss(t *testing.T) {
	alert := sizingAlert("0.45", "0.48", "8", "9")
	s := ComputeSize(alert, decimal.RequireFromString("100"))

	shrunk := ShrinkToBalance(s, alert, decimal.RequireFromString("1000"))

	assert.Equal(t, s, shrunk)
}
