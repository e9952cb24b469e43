package websocket

import (
	"sync"

	"github.com/rarb-labs/rarb/pkg/types"
	"github.com/shopspring/decimal"
)

// ladder is the per-asset level cache for one connection. A book snapshot
// replaces it wholesale; price_change deltas mutate single levels. Reads come
// from the detection path and the executor, so every access is under the
// mutex.
type ladder struct {
	mu   sync.Mutex
	bids map[string]decimal.Decimal // normalised price string -> size
	asks map[string]decimal.Decimal
}

func newLadder() *ladder {
	return &ladder{
		bids: make(map[string]decimal.Decimal),
		asks: make(map[string]decimal.Decimal),
	}
}

// priceKey renders a price with a fixed exponent so "0.47" and "0.470" land
// on the same level.
func priceKey(p decimal.Decimal) string {
	return p.StringFixed(6)
}

// applyBook replaces both sides from a full snapshot. Zero-size levels are
// dropped on ingest.
func (l *ladder) applyBook(bids, asks []types.PriceLevel) {
	newBids := make(map[string]decimal.Decimal, len(bids))
	newAsks := make(map[string]decimal.Decimal, len(asks))

	for _, lvl := range bids {
		if p, s, ok := parseLevel(lvl); ok {
			newBids[priceKey(p)] = s
		}
	}
	for _, lvl := range asks {
		if p, s, ok := parseLevel(lvl); ok {
			newAsks[priceKey(p)] = s
		}
	}

	l.mu.Lock()
	l.bids = newBids
	l.asks = newAsks
	l.mu.Unlock()
}

// applyChange applies one price_change delta. A zero size removes the level;
// any other size is authoritative for that price.
func (l *ladder) applyChange(side string, price, size string) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return
	}
	s, err := decimal.NewFromString(size)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	levels := l.asks
	if side == "BUY" {
		levels = l.bids
	}

	if s.IsZero() {
		delete(levels, priceKey(p))
		return
	}
	levels[priceKey(p)] = s
}

// bestAsk returns the lowest ask with its size.
func (l *ladder) bestAsk() (price, size decimal.Decimal, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return bestOf(l.asks, false)
}

// bestBid returns the highest bid with its size.
func (l *ladder) bestBid() (price, size decimal.Decimal, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return bestOf(l.bids, true)
}

// sizeAt returns the resting size at an exact price on the ask side.
func (l *ladder) sizeAt(price decimal.Decimal) (decimal.Decimal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.asks[priceKey(price)]
	return s, ok
}

func parseLevel(lvl types.PriceLevel) (price, size decimal.Decimal, ok bool) {
	p, err := decimal.NewFromString(lvl.Price)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	s, err := decimal.NewFromString(lvl.Size)
	if err != nil || s.IsZero() {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	return p, s, true
}

func bestOf(levels map[string]decimal.Decimal, wantMax bool) (price, size decimal.Decimal, ok bool) {
	for key, s := range levels {
		p, err := decimal.NewFromString(key)
		if err != nil {
			continue
		}
		if !ok || (wantMax && p.GreaterThan(price)) || (!wantMax && p.LessThan(price)) {
			price, size, ok = p, s, true
		}
	}
	return price, size, ok
}
