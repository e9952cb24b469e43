package redemption

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rarb-labs/rarb/pkg/types"
	"github.com/rarb-labs/rarb/pkg/wallet"
	"go.uber.org/zap"
)

const (
	// txWait bounds how long we watch a redemption transaction before
	// giving up on confirmation. The next sweep will pick up whatever is
	// still redeemable.
	txWait = 120 * time.Second

	ctfABI = `[{"inputs":[{"name":"collateralToken","type":"address"},{"name":"parentCollectionId","type":"bytes32"},{"name":"conditionId","type":"bytes32"},{"name":"indexSets","type":"uint256[]"}],"name":"redeemPositions","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

	negRiskAdapterABI = `[{"inputs":[{"name":"_conditionId","type":"bytes32"},{"name":"_amounts","type":"uint256[]"}],"name":"redeemPositions","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

	erc20ApproveABI = `[{"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}]`
)

// PolygonNegRiskAdapter redeems positions in negative-risk markets.
const PolygonNegRiskAdapter = "0xd91E80cF2E7be2e162c6513ceD06f1dD0dA35296"

// PositionSource lists positions whose market has resolved.
type PositionSource interface {
	RedeemablePositions(ctx context.Context) ([]types.Position, error)
}

// Config holds redeemer settings.
type Config struct {
	RPCURL     string
	PrivateKey string
	ChainID    int64
	Source     PositionSource
	Logger     *zap.Logger
}

// Redeemer sweeps resolved positions back into USDC via the CTF contract.
type Redeemer struct {
	rpcURL  string
	chainID *big.Int
	source  PositionSource
	logger  *zap.Logger

	key     *bind.TransactOpts
	address common.Address
}

// New creates a redeemer.
func New(cfg *Config) (*Redeemer, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = 137
	}

	opts, err := bind.NewKeyedTransactorWithChainID(privateKey, big.NewInt(chainID))
	if err != nil {
		return nil, fmt.Errorf("create transactor: %w", err)
	}

	return &Redeemer{
		rpcURL:  cfg.RPCURL,
		chainID: big.NewInt(chainID),
		source:  cfg.Source,
		logger:  cfg.Logger,
		key:     opts,
		address: crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// Sweep redeems every resolved position once. Individual failures are logged
// and skipped so one stuck condition cannot block the rest.
func (r *Redeemer) Sweep(ctx context.Context) (int, error) {
	positions, err := r.source.RedeemablePositions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list redeemable positions: %w", err)
	}
	if len(positions) == 0 {
		return 0, nil
	}

	client, err := ethclient.DialContext(ctx, r.rpcURL)
	if err != nil {
		return 0, fmt.Errorf("dial rpc: %w", err)
	}
	defer client.Close()

	// One tx per condition; both outcomes of a condition redeem together.
	seen := make(map[string]bool)
	redeemed := 0
	for _, pos := range positions {
		if seen[pos.ConditionID] {
			continue
		}
		seen[pos.ConditionID] = true

		err = r.redeemCondition(ctx, client, &pos)
		if err != nil {
			r.logger.Warn("redeem-failed",
				zap.String("condition-id", pos.ConditionID),
				zap.String("title", pos.Title),
				zap.Error(err))
			RedemptionsTotal.WithLabelValues("failed").Inc()
			continue
		}

		r.logger.Info("position-redeemed",
			zap.String("condition-id", pos.ConditionID),
			zap.String("title", pos.Title),
			zap.String("size", pos.Size.String()))
		RedemptionsTotal.WithLabelValues("confirmed").Inc()
		redeemed++
	}

	return redeemed, nil
}

func (r *Redeemer) redeemCondition(ctx context.Context, client *ethclient.Client, pos *types.Position) error {
	var to common.Address
	var data []byte
	var err error

	conditionID := common.HexToHash(pos.ConditionID)

	if pos.NegRisk {
		parsed, abiErr := abi.JSON(strings.NewReader(negRiskAdapterABI))
		if abiErr != nil {
			return fmt.Errorf("parse abi: %w", abiErr)
		}
		// The adapter wants raw amounts per index set; the Data API size is
		// in shares, so shift to 1e6 base units.
		amount := pos.Size.Shift(6).Truncate(0).BigInt()
		data, err = parsed.Pack("redeemPositions", conditionID, []*big.Int{amount, big.NewInt(0)})
		to = common.HexToAddress(PolygonNegRiskAdapter)
	} else {
		parsed, abiErr := abi.JSON(strings.NewReader(ctfABI))
		if abiErr != nil {
			return fmt.Errorf("parse abi: %w", abiErr)
		}
		data, err = parsed.Pack("redeemPositions",
			common.HexToAddress(wallet.PolygonUSDC),
			common.Hash{}, // parent collection is always the root
			conditionID,
			[]*big.Int{big.NewInt(1), big.NewInt(2)},
		)
		to = common.HexToAddress(wallet.PolygonCTF)
	}
	if err != nil {
		return fmt.Errorf("pack abi: %w", err)
	}

	return r.sendAndWait(ctx, client, to, data)
}

// ApproveUSDC grants the CTF Exchange an unlimited USDC allowance. Run once
// before live trading.
func (r *Redeemer) ApproveUSDC(ctx context.Context) error {
	client, err := ethclient.DialContext(ctx, r.rpcURL)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	defer client.Close()

	parsed, err := abi.JSON(strings.NewReader(erc20ApproveABI))
	if err != nil {
		return fmt.Errorf("parse abi: %w", err)
	}

	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	data, err := parsed.Pack("approve", common.HexToAddress(wallet.PolygonCTFExchange), maxUint256)
	if err != nil {
		return fmt.Errorf("pack abi: %w", err)
	}

	err = r.sendAndWait(ctx, client, common.HexToAddress(wallet.PolygonUSDC), data)
	if err != nil {
		return err
	}

	r.logger.Info("usdc-allowance-approved",
		zap.String("spender", wallet.PolygonCTFExchange))
	return nil
}

func (r *Redeemer) sendAndWait(ctx context.Context, client *ethclient.Client, to common.Address, data []byte) error {
	nonce, err := client.PendingNonceAt(ctx, r.address)
	if err != nil {
		return fmt.Errorf("fetch nonce: %w", err)
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From: r.address,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("estimate gas: %w", err)
	}

	tx := ethtypes.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signedTx, err := r.key.Signer(r.address, tx)
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}

	err = client.SendTransaction(ctx, signedTx)
	if err != nil {
		return fmt.Errorf("send tx: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, txWait)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, client, signedTx)
	if err != nil {
		return fmt.Errorf("wait for tx %s: %w", signedTx.Hash().Hex(), err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("tx %s reverted", signedTx.Hash().Hex())
	}

	return nil
}
