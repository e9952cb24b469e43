package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rarb-labs/rarb/pkg/wallet"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List open outcome-token positions",
	RunE:  runPositions,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(positionsCmd)
	positionsCmd.Flags().Bool("redeemable", false, "Only show resolved, redeemable positions")
}

func runPositions(cmd *cobra.Command, args []string) error {
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

	redeemableOnly, _ := cmd.Flags().GetBool("redeemable")

	list, err := client.Positions(ctx)
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}

	shown := 0
	for _, p := range list {
		if redeemableOnly && !p.Redeemable {
			continue
		}
		shown++

		tag := ""
		if p.Redeemable {
			tag = "  [redeemable]"
		}

		fmt.Printf("%s [%s]%s\n", p.Title, p.Outcome, tag)
		fmt.Printf("  size: %s  avg: %s  now: %s  value: $%s\n",
			p.Size.String(), p.AvgPrice.String(), p.CurPrice.String(), p.Value().StringFixed(2))
		fmt.Printf("  condition: %s\n\n", p.ConditionID)
	}

	if shown == 0 {
		fmt.Println("No positions.")
	}
	return nil
}
