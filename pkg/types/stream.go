package types

import (
	"strconv"

	json "github.com/goccy/go-json"
)

// Stream event types sent by the market data WebSocket.
const (
	EventBook           = "book"
	EventPriceChange    = "price_change"
	EventLastTradePrice = "last_trade_price"
	EventTickSizeChange = "tick_size_change"
)

// StreamMessage is a single message from the market data WebSocket. The feed
// delivers arrays of these; book messages carry full ladders, price_change
// messages carry deltas.
type StreamMessage struct {
	EventType string        `json:"event_type"`
	AssetID   string        `json:"asset_id"`
	Market    string        `json:"market"`
	Timestamp int64         `json:"-"` // parsed from string via UnmarshalJSON
	Hash      string        `json:"hash,omitempty"`
	Bids      []PriceLevel  `json:"bids,omitempty"`
	Asks      []PriceLevel  `json:"asks,omitempty"`
	Changes   []PriceChange `json:"changes,omitempty"`
}

// UnmarshalJSON handles the string-encoded timestamp.
func (m *StreamMessage) UnmarshalJSON(data []byte) error {
	type Alias StreamMessage
	aux := &struct {
		TimestampStr string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.TimestampStr != "" {
		timestamp, err := strconv.ParseInt(aux.TimestampStr, 10, 64)
		if err != nil {
			return err
		}
		m.Timestamp = timestamp
	}

	return nil
}

// PriceLevel is a single ladder level. Prices and sizes arrive as strings and
// stay strings until the ladder parses them.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// PriceChange is one delta inside a price_change message. A size of "0"
// removes the level. Some feed versions scope the asset per change rather
// than per message.
type PriceChange struct {
	AssetID string `json:"asset_id,omitempty"`
	Price   string `json:"price"`
	Side    string `json:"side"` // "BUY" or "SELL"
	Size    string `json:"size"`
}
