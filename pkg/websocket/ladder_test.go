package websocket

import (
	"testing"

	"github.com/rarb-labs/rarb/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLadderApplyBook(t *testing.T) {
	l := newLadder()
	l.applyBook(
		[]types.PriceLevel{{Price: "0.40", Size: "10"}, {Price: "0.44", Size: "25"}},
		[]types.PriceLevel{{Price: "0.47", Size: "80"}, {Price: "0.55", Size: "100"}},
	)

	price, size, ok := l.bestAsk()
	require.True(t, ok)
	assert.Equal(t, "0.47", price.String())
	assert.Equal(t, "80", size.String())

	price, _, ok = l.bestBid()
	require.True(t, ok)
	assert.Equal(t, "0.44", price.String())
}

func TestLadderBookReplacesPreviousState(t *testing.T) {
	l := newLadder()
	l.applyBook(nil, []types.PriceLevel{{Price: "0.30", Size: "5"}})
	l.applyBook(nil, []types.PriceLevel{{Price: "0.47", Size: "80"}})

	price, _, ok := l.bestAsk()
	require.True(t, ok)
	assert.Equal(t, "0.47", price.String())
}

func TestLadderPriceChangeUpdatesLevel(t *testing.T) {
	l := newLadder()
	l.applyBook(nil, []types.PriceLevel{{Price: "0.47", Size: "80"}})

	// Restating the same level must not move the top of book.
	l.applyChange("SELL", "0.47", "80")
	price, size, ok := l.bestAsk()
	require.True(t, ok)
	assert.Equal(t, "0.47", price.String())
	assert.Equal(t, "80", size.String())

	// An improvement becomes the new best.
	l.applyChange("SELL", "0.46", "15")
	price, size, _ = l.bestAsk()
	assert.Equal(t, "0.46", price.String())
	assert.Equal(t, "15", size.String())

	// Size zero removes the level and the previous best reappears.
	l.applyChange("SELL", "0.46", "0")
	price, _, _ = l.bestAsk()
	assert.Equal(t, "0.47", price.String())
}

func TestLadderSizeAtExactPrice(t *testing.T) {
	l := newLadder()
	l.applyBook(nil, []types.PriceLevel{{Price: "0.47", Size: "80"}})

	size, ok := l.sizeAt(decimal.RequireFromString("0.47"))
	require.True(t, ok)
	assert.Equal(t, "80", size.String())

	_, ok = l.sizeAt(decimal.RequireFromString("0.48"))
	assert.False(t, ok)
}

func TestLadderNormalisesPriceKeys(t *testing.T) {
	l := newLadder()
	l.applyBook(nil, []types.PriceLevel{{Price: "0.470", Size: "80"}})

	// "0.470" and "0.47" are the same level.
	size, ok := l.sizeAt(decimal.RequireFromString("0.47"))
	require.True(t, ok)
	assert.Equal(t, "80", size.String())
}

func TestLadderIgnoresZeroSizeBookLevels(t *testing.T) {
	l := newLadder()
	l.applyBook(nil, []types.PriceLevel{{Price: "0.47", Size: "0"}})

	_, _, ok := l.bestAsk()
	assert.False(t, ok)
}
