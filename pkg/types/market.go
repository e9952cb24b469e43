package types

import (
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Market represents a binary market from the Gamma API. A market carries two
// complementary outcome tokens (YES/NO) whose payouts sum to $1.
type Market struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Slug      string `json:"slug"`
	Closed    bool   `json:"closed"`
	Active    bool   `json:"active"`
	NegRisk   bool   `json:"negRisk"`
	EndDate   *time.Time
	Liquidity decimal.Decimal

	// Raw JSON-string fields from Gamma; parsed into the token IDs below.
	Outcomes   string `json:"outcomes"`
	ClobTokens string `json:"clobTokenIds"`

	YesTokenID string `json:"-"`
	NoTokenID  string `json:"-"`
}

// UnmarshalJSON parses the Gamma payload, including the embedded JSON-string
// outcome/token-id arrays and the string-or-number liquidity field.
func (m *Market) UnmarshalJSON(data []byte) error {
	type Alias Market
	aux := &struct {
		EndDateStr   string          `json:"endDate"`
		LiquidityNum json.RawMessage `json:"liquidityNum"`
		LiquidityStr string          `json:"liquidity"`
		*Alias
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.EndDateStr != "" {
		t, err := time.Parse(time.RFC3339, aux.EndDateStr)
		if err == nil {
			utc := t.UTC()
			m.EndDate = &utc
		}
	}

	if len(aux.LiquidityNum) > 0 {
		if d, err := decimal.NewFromString(strings.Trim(string(aux.LiquidityNum), `"`)); err == nil {
			m.Liquidity = d
		}
	} else if aux.LiquidityStr != "" {
		if d, err := decimal.NewFromString(aux.LiquidityStr); err == nil {
			m.Liquidity = d
		}
	}

	if m.Outcomes != "" && m.ClobTokens != "" {
		var outcomes []string
		var tokenIDs []string

		if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err == nil {
			if err := json.Unmarshal([]byte(m.ClobTokens), &tokenIDs); err == nil {
				for i, outcome := range outcomes {
					if i >= len(tokenIDs) {
						break
					}
					switch strings.ToUpper(outcome) {
					case "YES":
						m.YesTokenID = tokenIDs[i]
					case "NO":
						m.NoTokenID = tokenIDs[i]
					}
				}
			}
		}
	}

	return nil
}

// IsBinary reports whether both outcome token IDs were resolved.
func (m *Market) IsBinary() bool {
	return m.YesTokenID != "" && m.NoTokenID != ""
}

// TokenIDs returns the YES and NO token IDs in order.
func (m *Market) TokenIDs() []string {
	return []string{m.YesTokenID, m.NoTokenID}
}

// ResolvesWithinDays reports whether the market resolves within the given
// horizon. Markets with an unknown end date pass the filter. The comparison
// is UTC-normalised on both sides.
func (m *Market) ResolvesWithinDays(days int, now time.Time) bool {
	if m.EndDate == nil {
		return true
	}

	horizon := now.UTC().AddDate(0, 0, days)
	return !m.EndDate.UTC().After(horizon)
}
