package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rarb-labs/rarb/internal/redemption"
	"github.com/rarb-labs/rarb/pkg/wallet"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var redeemCmd = &cobra.Command{
	Use:   "redeem",
	Short: "Redeem resolved positions back into USDC",
	Long: `Runs one redemption sweep: fetches redeemable positions and submits
a redeemPositions transaction per resolved condition. Requires
POLYMARKET_PRIVATE_KEY and a funded gas wallet.`,
	RunE: runRedeem,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(redeemCmd)
}

func newRedeemer(cmd *cobra.Command) (*redemption.Redeemer, error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, err
	}

	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("POLYMARKET_PRIVATE_KEY is required")
	}

	address, err := tradingAddress(cfg)
	if err != nil {
		return nil, err
	}

	walletClient, err := wallet.NewClient(&wallet.Config{
		RPCURL:     cfg.RPCURL,
		DataAPIURL: cfg.DataAPIURL,
		Address:    address,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create wallet client: %w", err)
	}

	return redemption.New(&redemption.Config{
		RPCURL:     cfg.RPCURL,
		PrivateKey: cfg.PrivateKey,
		ChainID:    cfg.ChainID,
		Source:     walletClient,
		Logger:     logger,
	})
}

func runRedeem(cmd *cobra.Command, args []string) error {
	redeemer, err := newRedeemer(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	fmt.Println("Sweeping redeemable positions...")

	redeemed, err := redeemer.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	if redeemed == 0 {
		fmt.Println("Nothing to redeem.")
		return nil
	}

	fmt.Printf("Redeemed %d conditions.\n", redeemed)
	return nil
}
