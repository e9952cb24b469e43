package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rarb-labs/rarb/pkg/config"
	"github.com/rarb-labs/rarb/pkg/wallet"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show on-chain balances for the trading wallet",
	RunE:  runBalance,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balanceCmd)
}

// tradingAddress resolves the address holding funds: the configured funder
// (proxy wallet) when set, otherwise the EOA derived from the private key.
func tradingAddress(cfg *config.Config) (string, error) {
	if cfg.FunderAddress != "" {
		return cfg.FunderAddress, nil
	}
	if cfg.PrivateKey == "" {
		return "", fmt.Errorf("set POLYMARKET_FUNDER_ADDRESS or POLYMARKET_PRIVATE_KEY")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

func runBalance(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	address, err := tradingAddress(cfg)
	if err != nil {
		return err
	}

	client, err := wallet.NewClient(&wallet.Config{
		RPCURL:     cfg.RPCURL,
		DataAPIURL: cfg.DataAPIURL,
		Address:    address,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("create wallet client: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	balances, err := client.Balances(ctx)
	if err != nil {
		return fmt.Errorf("fetch balances: %w", err)
	}

	fmt.Printf("Wallet %s\n", address)
	fmt.Printf("  MATIC:          %s\n", balances.MATIC.StringFixed(4))
	fmt.Printf("  USDC:           %s\n", balances.USDC.StringFixed(2))
	fmt.Printf("  USDC allowance: %s\n", balances.USDCAllowance.StringFixed(2))

	positions, err := client.Positions(ctx)
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}

	if len(positions) == 0 {
		fmt.Printf("\nNo open positions.\n")
		return nil
	}

	total := balances.USDC
	fmt.Printf("\nOpen positions (%d):\n", len(positions))
	for _, p := range positions {
		value := p.Value()
		total = total.Add(value)
		fmt.Printf("  %s [%s]: %s @ %s = $%s\n",
			p.Title, p.Outcome, p.Size.String(), p.CurPrice.String(), value.StringFixed(2))
	}

	fmt.Printf("\nTotal portfolio value: $%s\n", total.StringFixed(2))
	return nil
}
