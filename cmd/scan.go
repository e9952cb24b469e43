package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rarb-labs/rarb/internal/markets"
	"github.com/rarb-labs/rarb/internal/scanner"
	"github.com/rarb-labs/rarb/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single REST scan over tradable markets",
	Long: `Fetches the tradable market set, pulls both order books for each
market over REST and prints every opportunity and near-miss found. No
orders are submitted and nothing is persisted.`,
	RunE: runScan,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
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

	fmt.Printf("Scanning %d markets (threshold %s, max %d days to resolution)...\n\n",
		len(tradable), cfg.MinProfitThreshold.String(), cfg.MaxDaysUntilResolution)

	found := 0
	s := scanner.New(scanner.Config{
		Threshold:              cfg.MinProfitThreshold,
		MaxDaysUntilResolution: cfg.MaxDaysUntilResolution,
		OnAlert: func(alert *types.Alert) {
			found++
			fmt.Printf("ARBITRAGE  %s\n", alert.Question)
			fmt.Printf("  yes ask: %s (size %s)\n", alert.YesAsk.String(), alert.YesAskSize.String())
			fmt.Printf("  no ask:  %s (size %s)\n", alert.NoAsk.String(), alert.NoAskSize.String())
			fmt.Printf("  combined: %s  profit/share: %s\n\n", alert.Combined.String(), alert.Profit.String())
		},
		Logger: logger,
	})
	s.SetMarkets(tradable)

	poller := scanner.NewPoller(s, client, cfg.PollInterval, logger)
	poller.ScanOnce(ctx)

	if miss := s.TakeBestNearMiss(); miss != nil {
		fmt.Printf("Best near-miss: %s (combined %s, profit %s)\n",
			miss.Question, miss.Combined.String(), miss.Profit.String())
	}

	fmt.Printf("Done. %d opportunities found across %d markets.\n", found, len(tradable))
	return nil
}
