package httpserver

import (
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ladder is the cross-connection top-of-book lookup behind /api/orderbook.
type Ladder interface {
	BestAsk(assetID string) (price, size decimal.Decimal, ok bool)
	BestBid(assetID string) (price, size decimal.Decimal, ok bool)
}

type orderbookResponse struct {
	TokenID     string `json:"token_id"`
	BestBid     string `json:"best_bid,omitempty"`
	BestBidSize string `json:"best_bid_size,omitempty"`
	BestAsk     string `json:"best_ask,omitempty"`
	BestAskSize string `json:"best_ask_size,omitempty"`
}

// orderbookHandler serves the live top of book for one token:
// GET /api/orderbook?token_id=...
func orderbookHandler(ladder Ladder, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenID := r.URL.Query().Get("token_id")
		if tokenID == "" {
			http.Error(w, `{"error":"token_id is required"}`, http.StatusBadRequest)
			return
		}

		resp := orderbookResponse{TokenID: tokenID}

		askPrice, askSize, hasAsk := ladder.BestAsk(tokenID)
		if hasAsk {
			resp.BestAsk = askPrice.String()
			resp.BestAskSize = askSize.String()
		}

		bidPrice, bidSize, hasBid := ladder.BestBid(tokenID)
		if hasBid {
			resp.BestBid = bidPrice.String()
			resp.BestBidSize = bidSize.String()
		}

		if !hasAsk && !hasBid {
			http.Error(w, `{"error":"unknown or empty book"}`, http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
