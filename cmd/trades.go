package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rarb-labs/rarb/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List recent execution attempts",
	RunE:  runTrades,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(tradesCmd)
	tradesCmd.Flags().Int("limit", 20, "Maximum records to print")
}

func runTrades(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	limit, _ := cmd.Flags().GetInt("limit")

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	records, err := store.RecentExecutions(ctx, limit)
	if err != nil {
		return fmt.Errorf("query executions: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No executions recorded.")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("[%s] %s  %s\n", rec.Status, rec.ExecutedAt.Format(time.RFC3339), rec.Question)

		if rec.Status == types.ExecutionSkipped {
			fmt.Printf("  reason: %s\n\n", rec.Reason)
			continue
		}

		fmt.Printf("  %s shares @ yes %s / no %s  cost $%s  expected profit $%s\n",
			rec.TradeSize.String(), rec.YesPrice.String(), rec.NoPrice.String(),
			rec.TotalCost.StringFixed(2), rec.ExpectedProfit.StringFixed(2))

		printLeg("yes", rec.Yes)
		printLeg("no ", rec.No)
		fmt.Println()
	}

	return nil
}

func printLeg(label string, leg types.OrderOutcome) {
	if leg.Success {
		fmt.Printf("  %s leg: filled %s (order %s)\n", label, leg.FilledSize.String(), leg.OrderID)
		return
	}
	if leg.Error != "" {
		fmt.Printf("  %s leg: failed: %s\n", label, leg.Error)
	}
}
