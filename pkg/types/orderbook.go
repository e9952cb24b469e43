package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// TopOfBook is the best-price view of one outcome token. Sides start out
// invalid and only become valid once the stream has delivered a level for
// them; detection never runs on an invalid side.
type TopOfBook struct {
	BestBid     decimal.NullDecimal
	BestAsk     decimal.NullDecimal
	BestAskSize decimal.NullDecimal

	// Revision increments on every accepted update so readers can tell
	// whether a snapshot went stale between observations.
	Revision  uint64
	UpdatedAt time.Time
}

// HasAsk reports whether the ask side is populated.
func (t *TopOfBook) HasAsk() bool {
	return t.BestAsk.Valid && t.BestAskSize.Valid
}

// BookSnapshot is a REST orderbook response from the CLOB, used by the
// polling scan path and the orderbook CLI command.
type BookSnapshot struct {
	AssetID string       `json:"asset_id"`
	Market  string       `json:"market"`
	Bids    []PriceLevel `json:"bids"`
	Asks    []PriceLevel `json:"asks"`
}

// BestAsk returns the lowest ask with its size. CLOB REST books list asks in
// descending price order, so the best ask is the last entry.
func (b *BookSnapshot) BestAsk() (price, size decimal.Decimal, ok bool) {
	return bestLevel(b.Asks, false)
}

// BestBid returns the highest bid with its size.
func (b *BookSnapshot) BestBid() (price, size decimal.Decimal, ok bool) {
	return bestLevel(b.Bids, true)
}

func bestLevel(levels []PriceLevel, wantMax bool) (price, size decimal.Decimal, ok bool) {
	for _, lvl := range levels {
		p, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			continue
		}
		s, err := decimal.NewFromString(lvl.Size)
		if err != nil || s.IsZero() {
			continue
		}

		if !ok || (wantMax && p.GreaterThan(price)) || (!wantMax && p.LessThan(price)) {
			price, size, ok = p, s, true
		}
	}
	return price, size, ok
}
