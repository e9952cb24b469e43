package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rarb-labs/rarb/internal/markets"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var orderbookCmd = &cobra.Command{
	Use:   "orderbook <token_id>",
	Short: "Fetch the REST order book for an outcome token",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrderbook,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(orderbookCmd)
}

func runOrderbook(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	client := markets.NewClient(markets.Config{
		GammaURL: cfg.GammaURL,
		ClobURL:  cfg.ClobURL,
		Logger:   logger,
	})

	book, err := client.FetchBook(ctx, args[0])
	if err != nil {
		return fmt.Errorf("fetch book: %w", err)
	}

	fmt.Printf("Order book for %s (market %s)\n\n", book.AssetID, book.Market)

	fmt.Printf("Asks (%d levels):\n", len(book.Asks))
	for _, lvl := range book.Asks {
		fmt.Printf("  %s x %s\n", lvl.Price, lvl.Size)
	}

	fmt.Printf("\nBids (%d levels):\n", len(book.Bids))
	for _, lvl := range book.Bids {
		fmt.Printf("  %s x %s\n", lvl.Price, lvl.Size)
	}

	if price, size, ok := book.BestAsk(); ok {
		fmt.Printf("\nBest ask: %s (size %s)\n", price.String(), size.String())
	}
	if price, size, ok := book.BestBid(); ok {
		fmt.Printf("Best bid: %s (size %s)\n", price.String(), size.String())
	}

	return nil
}
