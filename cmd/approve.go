package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var approveCmd = &cobra.Command{
	Use:     "approve-redemption",
	Aliases: []string{"approve"},
	Short:   "Approve the exchange to spend the wallet's USDC",
	Long: `Submits an unlimited USDC approval for the CTF Exchange contract.
Required once before trading with a fresh wallet.`,
	RunE: runApprove,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(approveCmd)
}

func runApprove(cmd *cobra.Command, args []string) error {
	redeemer, err := newRedeemer(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	fmt.Println("Submitting USDC approval for the CTF Exchange...")

	err = redeemer.ApproveUSDC(ctx)
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}

	fmt.Println("Approval confirmed.")
	return nil
}
