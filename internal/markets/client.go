package markets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rarb-labs/rarb/pkg/cache"
	"github.com/rarb-labs/rarb/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaxBatchSize is the page size for Gamma pagination.
const MaxBatchSize = 100

// MarketsPerConn caps how many markets one WebSocket connection can carry
// (two assets per market, 500 assets per connection).
const MarketsPerConn = 250

// Config holds market discovery settings.
type Config struct {
	GammaURL string
	ClobURL  string
	Logger   *zap.Logger
	Cache    cache.Cache // neg_risk lookups; optional
}

// Client talks to the Gamma API for market metadata and the CLOB REST API
// for books and neg_risk flags.
type Client struct {
	gammaURL   string
	clobURL    string
	httpClient *http.Client
	logger     *zap.Logger
	cache      cache.Cache
}

// NewClient creates a market discovery client.
func NewClient(cfg Config) *Client {
	return &Client{
		gammaURL: cfg.GammaURL,
		clobURL:  cfg.ClobURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: cfg.Logger,
		cache:  cfg.Cache,
	}
}

// Selection filters candidate markets for scanning.
type Selection struct {
	MinLiquidity decimal.Decimal
	MaxDays      int
	MaxConns     int
}

// FetchTradableMarkets pages through active markets, keeps binary markets
// passing the liquidity and resolution-horizon filters, sorts by liquidity
// descending, and caps the result so the asset list fits MaxConns
// connections.
func (c *Client) FetchTradableMarkets(ctx context.Context, sel Selection) ([]*types.Market, error) {
	raw, err := c.fetchAllActive(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	markets := make([]*types.Market, 0, len(raw))

	for i := range raw {
		m := &raw[i]
		if !m.IsBinary() {
			continue
		}
		if m.Liquidity.LessThan(sel.MinLiquidity) {
			continue
		}
		if !m.ResolvesWithinDays(sel.MaxDays, now) {
			continue
		}
		markets = append(markets, m)
	}

	sort.Slice(markets, func(i, j int) bool {
		return markets[i].Liquidity.GreaterThan(markets[j].Liquidity)
	})

	limit := sel.MaxConns * MarketsPerConn
	if limit > 0 && len(markets) > limit {
		c.logger.Info("capping-market-list",
			zap.Int("candidates", len(markets)),
			zap.Int("cap", limit))
		markets = markets[:limit]
	}

	MarketsFetchedTotal.Add(float64(len(raw)))
	TrackedMarkets.Set(float64(len(markets)))

	c.logger.Info("fetched-tradable-markets",
		zap.Int("raw", len(raw)),
		zap.Int("tradable", len(markets)))

	return markets, nil
}

// fetchAllActive pages through /markets until a short page.
func (c *Client) fetchAllActive(ctx context.Context) ([]types.Market, error) {
	var all []types.Market
	offset := 0

	for {
		page, err := c.fetchPage(ctx, MaxBatchSize, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch page at offset %d: %w", offset, err)
		}

		all = append(all, page...)

		if len(page) < MaxBatchSize {
			break
		}
		offset += MaxBatchSize
	}

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, limit, offset int) ([]types.Market, error) {
	params := url.Values{}
	params.Add("active", "true")
	params.Add("closed", "false")
	params.Add("limit", strconv.Itoa(limit))
	params.Add("offset", strconv.Itoa(offset))

	requestURL := fmt.Sprintf("%s/markets?%s", c.gammaURL, params.Encode())

	body, err := c.get(ctx, requestURL)
	if err != nil {
		return nil, err
	}

	// Gamma returns a bare array.
	var markets []types.Market
	err = json.Unmarshal(body, &markets)
	if err != nil {
		return nil, fmt.Errorf("unmarshal markets: %w", err)
	}

	c.logger.Debug("fetched-markets-page",
		zap.Int("offset", offset),
		zap.Int("count", len(markets)))

	return markets, nil
}

// FetchBook fetches a REST orderbook snapshot from the CLOB. Used by the
// polling scan path and the orderbook command.
func (c *Client) FetchBook(ctx context.Context, tokenID string) (*types.BookSnapshot, error) {
	requestURL := fmt.Sprintf("%s/book?token_id=%s", c.clobURL, url.QueryEscape(tokenID))

	body, err := c.get(ctx, requestURL)
	if err != nil {
		return nil, err
	}

	var book types.BookSnapshot
	err = json.Unmarshal(body, &book)
	if err != nil {
		return nil, fmt.Errorf("unmarshal book: %w", err)
	}

	if book.AssetID == "" {
		book.AssetID = tokenID
	}

	return &book, nil
}

// FetchNegRisk returns whether a token trades on the neg-risk exchange.
// Results are cached; a wrong contract route makes the CLOB reject the
// order, so the flag is fetched rather than guessed on cache miss.
func (c *Client) FetchNegRisk(ctx context.Context, tokenID string) (bool, error) {
	cacheKey := "negrisk:" + tokenID

	if c.cache != nil {
		if v, ok := c.cache.Get(cacheKey); ok {
			if negRisk, ok := v.(bool); ok {
				return negRisk, nil
			}
		}
	}

	requestURL := fmt.Sprintf("%s/neg-risk?token_id=%s", c.clobURL, url.QueryEscape(tokenID))

	body, err := c.get(ctx, requestURL)
	if err != nil {
		return false, err
	}

	var resp struct {
		NegRisk bool `json:"neg_risk"`
	}
	err = json.Unmarshal(body, &resp)
	if err != nil {
		return false, fmt.Errorf("unmarshal neg-risk: %w", err)
	}

	if c.cache != nil {
		c.cache.Set(cacheKey, resp.NegRisk, 24*time.Hour)
	}

	return resp.NegRisk, nil
}

// CacheNegRisk seeds the neg_risk cache from market metadata, sparing the
// executor a REST lookup on the hot path.
func (c *Client) CacheNegRisk(markets []*types.Market) {
	if c.cache == nil {
		return
	}

	for _, m := range markets {
		for _, tokenID := range m.TokenIDs() {
			c.cache.Set("negrisk:"+tokenID, m.NegRisk, 24*time.Hour)
		}
	}

	c.logger.Debug("seeded-negrisk-cache", zap.Int("markets", len(markets)))
}

func (c *Client) get(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "rarb/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		APIErrorsTotal.Inc()
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		APIErrorsTotal.Inc()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return body, nil
}
