package types

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketUnmarshalTokens(t *testing.T) {
	payload := `{
		"id": "512345",
		"question": "Will it rain tomorrow?",
		"slug": "will-it-rain-tomorrow",
		"active": true,
		"closed": false,
		"negRisk": false,
		"endDate": "2026-09-01T12:00:00Z",
		"liquidityNum": 15230.55,
		"outcomes": "[\"Yes\", \"No\"]",
		"clobTokenIds": "[\"111\", \"222\"]"
	}`

	var m Market
	require.NoError(t, json.Unmarshal([]byte(payload), &m))

	assert.Equal(t, "512345", m.ID)
	assert.Equal(t, "111", m.YesTokenID)
	assert.Equal(t, "222", m.NoTokenID)
	assert.True(t, m.IsBinary())
	require.NotNil(t, m.EndDate)
	assert.Equal(t, time.September, m.EndDate.Month())
	assert.Equal(t, "15230.55", m.Liquidity.String())
}

func TestMarketUnmarshalMissingTokens(t *testing.T) {
	payload := `{"id": "9", "question": "q", "outcomes": "", "clobTokenIds": ""}`

	var m Market
	require.NoError(t, json.Unmarshal([]byte(payload), &m))

	assert.False(t, m.IsBinary())
	assert.Nil(t, m.EndDate)
}

func TestMarketUnmarshalLiquidityString(t *testing.T) {
	payload := `{"id": "9", "liquidity": "750.25"}`

	var m Market
	require.NoError(t, json.Unmarshal([]byte(payload), &m))

	assert.Equal(t, "750.25", m.Liquidity.String())
}

func TestResolvesWithinDays(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	inHorizon := now.AddDate(0, 0, 10)
	outHorizon := now.AddDate(0, 0, 40)

	tests := []struct {
		name    string
		endDate *time.Time
		days    int
		want    bool
	}{
		{"unknown end date passes", nil, 30, true},
		{"inside horizon", &inHorizon, 30, true},
		{"outside horizon", &outHorizon, 30, false},
		{"exactly at horizon", &inHorizon, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Market{EndDate: tt.endDate}
			assert.Equal(t, tt.want, m.ResolvesWithinDays(tt.days, now))
		})
	}
}

func TestResolvesWithinDaysNormalisesZones(t *testing.T) {
	now := time.Date(2026, 8, 1, 23, 0, 0, 0, time.FixedZone("UTC-5", -5*3600))
	end := time.Date(2026, 8, 3, 1, 0, 0, 0, time.UTC)

	m := Market{EndDate: &end}
	assert.True(t, m.ResolvesWithinDays(2, now))
}
