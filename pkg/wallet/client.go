package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	json "github.com/goccy/go-json"
	"github.com/rarb-labs/rarb/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Polygon mainnet contracts.
const (
	PolygonUSDC        = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	PolygonCTFExchange = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	PolygonCTF         = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"
)

const usdcDecimals = 6

// Client reads wallet truth: on-chain balances via JSON-RPC and open
// positions via the Data API. It is the chain source behind the balance
// cache.
type Client struct {
	rpcURL     string
	dataAPIURL string
	address    common.Address
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds wallet client settings.
type Config struct {
	RPCURL     string
	DataAPIURL string
	Address    string
	Logger     *zap.Logger
}

// Balances holds on-chain balances relevant to trading.
type Balances struct {
	MATIC         decimal.Decimal
	USDC          decimal.Decimal
	USDCAllowance decimal.Decimal
}

// NewClient creates a wallet client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, errors.New("rpc url cannot be empty")
	}
	if !common.IsHexAddress(cfg.Address) {
		return nil, fmt.Errorf("invalid wallet address %q", cfg.Address)
	}

	return &Client{
		rpcURL:     cfg.RPCURL,
		dataAPIURL: strings.TrimSuffix(cfg.DataAPIURL, "/"),
		address:    common.HexToAddress(cfg.Address),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     cfg.Logger,
	}, nil
}

// Address returns the tracked wallet address.
func (c *Client) Address() common.Address {
	return c.address
}

// USDCBalance fetches the free USDC balance.
func (c *Client) USDCBalance(ctx context.Context) (decimal.Decimal, error) {
	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("dial rpc: %w", err)
	}
	defer client.Close()

	raw, err := c.erc20BalanceOf(ctx, client, PolygonUSDC, c.address)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("usdc balance: %w", err)
	}

	balance := decimal.NewFromBigInt(raw, -usdcDecimals)
	USDCBalanceGauge.Set(balance.InexactFloat64())
	return balance, nil
}

// Balances fetches MATIC, USDC and the USDC allowance granted to the CTF
// Exchange in one connection.
func (c *Client) Balances(ctx context.Context) (*Balances, error) {
	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	defer client.Close()

	matic, err := client.BalanceAt(ctx, c.address, nil)
	if err != nil {
		return nil, fmt.Errorf("matic balance: %w", err)
	}

	usdc, err := c.erc20BalanceOf(ctx, client, PolygonUSDC, c.address)
	if err != nil {
		return nil, fmt.Errorf("usdc balance: %w", err)
	}

	allowance, err := c.erc20Allowance(ctx, client, PolygonUSDC, c.address, PolygonCTFExchange)
	if err != nil {
		return nil, fmt.Errorf("usdc allowance: %w", err)
	}

	balances := &Balances{
		MATIC:         decimal.NewFromBigInt(matic, -18),
		USDC:          decimal.NewFromBigInt(usdc, -usdcDecimals),
		USDCAllowance: decimal.NewFromBigInt(allowance, -usdcDecimals),
	}

	MATICBalanceGauge.Set(balances.MATIC.InexactFloat64())
	USDCBalanceGauge.Set(balances.USDC.InexactFloat64())

	return balances, nil
}

// Positions fetches open positions from the Data API, dropping dust.
func (c *Client) Positions(ctx context.Context) ([]types.Position, error) {
	url := fmt.Sprintf("%s/positions?user=%s&sizeThreshold=0.01", c.dataAPIURL, c.address.Hex())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("data api status %d", resp.StatusCode)
	}

	var all []types.Position
	err = json.NewDecoder(resp.Body).Decode(&all)
	if err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}

	positions := make([]types.Position, 0, len(all))
	for _, pos := range all {
		if pos.Size.IsPositive() {
			positions = append(positions, pos)
		}
	}

	ActivePositionsGauge.Set(float64(len(positions)))
	return positions, nil
}

// RedeemablePositions returns open positions whose market has resolved.
func (c *Client) RedeemablePositions(ctx context.Context) ([]types.Position, error) {
	positions, err := c.Positions(ctx)
	if err != nil {
		return nil, err
	}

	redeemable := positions[:0]
	for _, pos := range positions {
		if pos.Redeemable {
			redeemable = append(redeemable, pos)
		}
	}
	return redeemable, nil
}

func (c *Client) erc20BalanceOf(ctx context.Context, client *ethclient.Client, token string, owner common.Address) (*big.Int, error) {
	const balanceOfABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

	parsedABI, err := abi.JSON(strings.NewReader(balanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}

	data, err := parsedABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack abi: %w", err)
	}

	tokenAddress := common.HexToAddress(token)
	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddress, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call contract: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}

func (c *Client) erc20Allowance(ctx context.Context, client *ethclient.Client, token string, owner common.Address, spender string) (*big.Int, error) {
	const allowanceABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

	parsedABI, err := abi.JSON(strings.NewReader(allowanceABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}

	data, err := parsedABI.Pack("allowance", owner, common.HexToAddress(spender))
	if err != nil {
		return nil, fmt.Errorf("pack abi: %w", err)
	}

	tokenAddress := common.HexToAddress(token)
	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddress, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call contract: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}
