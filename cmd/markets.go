package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rarb-labs/rarb/internal/markets"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "List the markets the scanner would track",
	RunE:  runMarkets,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(marketsCmd)
	marketsCmd.Flags().Int("limit", 50, "Maximum markets to print")
}

func runMarkets(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	limit, _ := cmd.Flags().GetInt("limit")

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	client := markets.NewClient(markets.Config{
		GammaURL: cfg.GammaURL,
		ClobURL:  cfg.ClobURL,
		Logger:   logger,
	})

	tradable, err := client.FetchTradableMarkets(ctx, markets.Selection{
		MinLiquidity: cfg.MinLiquidityUSD,
		MaxDays:      cfg.MaxDaysUntilResolution,
		MaxConns:     cfg.NumWSConnections,
	})
	if err != nil {
		return fmt.Errorf("fetch markets: %w", err)
	}

	fmt.Printf("%d tradable markets (min liquidity %s, resolving within %d days)\n\n",
		len(tradable), cfg.MinLiquidityUSD.String(), cfg.MaxDaysUntilResolution)

	for i, m := range tradable {
		if i >= limit {
			fmt.Printf("... and %d more\n", len(tradable)-limit)
			break
		}

		end := "unknown"
		if m.EndDate != nil {
			end = m.EndDate.Format("2006-01-02")
		}
		negRisk := ""
		if m.NegRisk {
			negRisk = "  [neg-risk]"
		}

		fmt.Printf("%s%s\n", m.Question, negRisk)
		fmt.Printf("  id: %s  liquidity: %s  ends: %s\n", m.ID, m.Liquidity.String(), end)
		fmt.Printf("  yes: %s\n  no:  %s\n\n", m.YesTokenID, m.NoTokenID)
	}

	return nil
}
