package execution

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	json "github.com/goccy/go-json"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"github.com/rarb-labs/rarb/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// zeroTaker is the public taker address (anyone may fill).
const zeroTaker = "0x0000000000000000000000000000000000000000"

// OrderRequest describes one BUY leg before signing.
type OrderRequest struct {
	TokenID string
	Side    string // "YES" or "NO", for logging and outcome records
	Price   decimal.Decimal
	Shares  decimal.Decimal // whole shares
	NegRisk bool
}

// PreparedOrder is a signed order ready for submission.
type PreparedOrder struct {
	Request OrderRequest
	Body    types.OrderSubmissionRequest
}

// OrderSubmitter builds and submits signed orders. Split in two so both legs
// can be fully signed before the first byte goes over the wire.
type OrderSubmitter interface {
	BuildOrder(req *OrderRequest) (*PreparedOrder, error)
	Submit(ctx context.Context, order *PreparedOrder) (*types.OrderSubmissionResponse, error)
}

// OrderClientConfig holds order client settings.
type OrderClientConfig struct {
	BaseURL       string
	APIKey        string
	Secret        string
	Passphrase    string
	PrivateKey    string
	FunderAddress string // proxy/funder; empty means the EOA funds directly
	SignatureType int
	ChainID       int64
	ProxyURL      string // socks5 proxy for order traffic; empty disables
	Timeout       time.Duration
	Logger        *zap.Logger
}

// OrderClient signs EIP-712 orders and submits them to the CLOB with L2
// (HMAC) authentication. Order traffic optionally rides a SOCKS5 tunnel;
// nothing else in the process does.
type OrderClient struct {
	baseURL       string
	apiKey        string
	secret        string
	passphrase    string
	privateKey    *ecdsa.PrivateKey
	address       string // EOA (signer)
	funderAddress string
	signatureType model.SignatureType
	orderBuilder  builder.ExchangeOrderBuilder
	httpClient    *http.Client
	logger        *zap.Logger
}

// NewOrderClient creates an order client.
func NewOrderClient(cfg *OrderClientConfig) (*OrderClient, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKey, _ := privateKey.Public().(*ecdsa.PublicKey)
	address := crypto.PubkeyToAddress(*publicKey).Hex()

	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = 137
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		httpClient.Transport = &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		}
		cfg.Logger.Info("order-traffic-proxied", zap.String("scheme", proxyURL.Scheme))
	}

	return &OrderClient{
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		secret:        cfg.Secret,
		passphrase:    cfg.Passphrase,
		privateKey:    privateKey,
		address:       address,
		funderAddress: cfg.FunderAddress,
		signatureType: model.SignatureType(cfg.SignatureType),
		orderBuilder:  builder.NewExchangeOrderBuilderImpl(big.NewInt(chainID), nil),
		httpClient:    httpClient,
		logger:        cfg.Logger,
	}, nil
}

// BuildOrder signs one BUY leg. The neg_risk flag routes the signature to
// the right exchange contract; the CLOB rejects orders signed against the
// wrong one.
func (c *OrderClient) BuildOrder(req *OrderRequest) (*PreparedOrder, error) {
	makerAddress := c.address
	if c.funderAddress != "" {
		makerAddress = c.funderAddress
	}

	// BUY: maker pays USDC (shares x price), taker delivers shares.
	makerAmount := rawBaseUnits(req.Shares.Mul(req.Price))
	takerAmount := rawBaseUnits(req.Shares)

	orderData := &model.OrderData{
		Maker:         makerAddress,
		Taker:         zeroTaker,
		TokenId:       req.TokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Side:          model.BUY,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        c.address,
		Expiration:    "0",
		SignatureType: c.signatureType,
	}

	contract := model.CTFExchange
	if req.NegRisk {
		contract = model.NegRiskCTFExchange
	}

	signed, err := c.orderBuilder.BuildSignedOrder(c.privateKey, orderData, contract)
	if err != nil {
		return nil, fmt.Errorf("build %s order: %w", req.Side, err)
	}

	sideStr := "BUY"
	if signed.Side.Uint64() == uint64(model.SELL) {
		sideStr = "SELL"
	}

	body := types.OrderSubmissionRequest{
		Order: types.SignedOrderJSON{
			Salt:          signed.Salt.Int64(),
			Maker:         signed.Maker.Hex(),
			Signer:        signed.Signer.Hex(),
			Taker:         signed.Taker.Hex(),
			TokenID:       signed.TokenId.String(),
			MakerAmount:   signed.MakerAmount.String(),
			TakerAmount:   signed.TakerAmount.String(),
			Side:          sideStr,
			Expiration:    signed.Expiration.String(),
			Nonce:         signed.Nonce.String(),
			FeeRateBps:    signed.FeeRateBps.String(),
			SignatureType: int(signed.SignatureType.Int64()),
			Signature:     "0x" + common.Bytes2Hex(signed.Signature),
		},
		Owner:     c.apiKey,
		OrderType: "GTC",
	}

	return &PreparedOrder{Request: *req, Body: body}, nil
}

// Submit posts a prepared order with L2 authentication headers.
func (c *OrderClient) Submit(ctx context.Context, order *PreparedOrder) (*types.OrderSubmissionResponse, error) {
	reqBody, err := json.Marshal(order.Body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	const method = http.MethodPost
	const requestPath = "/order"

	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signature, err := c.sign(timestamp + method + requestPath + string(reqBody))
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, strings.NewReader(string(reqBody)))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// POLY_ADDRESS is always the EOA behind the API key, even when a
	// funder proxy is the maker.
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_API_KEY", c.apiKey)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.passphrase)
	req.Header.Set("POLY_ADDRESS", c.address)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		OrdersSubmittedTotal.WithLabelValues(order.Request.Side, "transport_error").Inc()
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	OrderSubmitLatency.Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		OrdersSubmittedTotal.WithLabelValues(order.Request.Side, "rejected").Inc()
		return nil, &types.OrderError{
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message: string(body),
			Side:    order.Request.Side,
		}
	}

	var orderResp types.OrderSubmissionResponse
	err = json.Unmarshal(body, &orderResp)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	status := orderResp.Status
	if status == "" {
		status = "unknown"
	}
	OrdersSubmittedTotal.WithLabelValues(order.Request.Side, status).Inc()

	c.logger.Info("order-submitted",
		zap.String("side", order.Request.Side),
		zap.String("order-id", orderResp.OrderID),
		zap.String("status", orderResp.Status),
		zap.Bool("success", orderResp.Success))

	return &orderResp, nil
}

// sign computes the URL-safe base64 HMAC-SHA256 over the request payload.
func (c *OrderClient) sign(payload string) (string, error) {
	secretBytes, err := base64.URLEncoding.DecodeString(c.secret)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(payload))
	return base64.URLEncoding.EncodeToString(h.Sum(nil)), nil
}

// rawBaseUnits converts a decimal amount to integer 1e6 base units.
func rawBaseUnits(d decimal.Decimal) string {
	return d.Shift(6).Truncate(0).BigInt().String()
}
