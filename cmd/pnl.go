package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var hundred = decimal.NewFromInt(100)

//nolint:gochecknoglobals // Cobra boilerplate
var pnlCmd = &cobra.Command{
	Use:   "pnl",
	Short: "Summarise execution outcomes from storage",
	RunE:  runPnL,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(pnlCmd)
}

func runPnL(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	summary, err := store.PnLSummary(ctx)
	if err != nil {
		return fmt.Errorf("query pnl: %w", err)
	}

	fmt.Printf("Execution summary\n")
	fmt.Printf("  total attempts: %d\n", summary.TotalExecutions)
	fmt.Printf("  filled:  %d\n", summary.Filled)
	fmt.Printf("  partial: %d\n", summary.Partial)
	fmt.Printf("  failed:  %d\n", summary.Failed)
	fmt.Printf("  skipped: %d\n", summary.Skipped)
	fmt.Printf("\nFilled trades\n")
	fmt.Printf("  total cost:      $%s\n", summary.TotalCost.StringFixed(2))
	fmt.Printf("  expected profit: $%s\n", summary.ExpectedProfit.StringFixed(2))

	if summary.TotalCost.IsPositive() {
		ret := summary.ExpectedProfit.Div(summary.TotalCost).Mul(hundred)
		fmt.Printf("  expected return: %s%%\n", ret.StringFixed(2))
	}

	return nil
}
