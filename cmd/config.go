package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE:  runConfig,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	mode := "live"
	if cfg.DryRun {
		mode = "dry-run"
	}

	fmt.Printf("Mode: %s\n", mode)
	fmt.Printf("Log level: %s\n", cfg.LogLevel)
	fmt.Printf("HTTP port: %s\n\n", cfg.HTTPPort)

	fmt.Printf("Endpoints:\n")
	fmt.Printf("  gamma:    %s\n", cfg.GammaURL)
	fmt.Printf("  clob:     %s\n", cfg.ClobURL)
	fmt.Printf("  data-api: %s\n", cfg.DataAPIURL)
	fmt.Printf("  ws:       %s\n", cfg.WSURL)
	fmt.Printf("  rpc:      %s (chain %d)\n\n", cfg.RPCURL, cfg.ChainID)

	fmt.Printf("Scanner:\n")
	fmt.Printf("  profit threshold:   %s\n", cfg.MinProfitThreshold.String())
	fmt.Printf("  min liquidity:      $%s\n", cfg.MinLiquidityUSD.String())
	fmt.Printf("  max days to close:  %d\n", cfg.MaxDaysUntilResolution)
	fmt.Printf("  ws connections:     %d\n", cfg.NumWSConnections)
	fmt.Printf("  metadata refresh:   %s\n\n", cfg.MetadataRefreshEvery)

	fmt.Printf("Execution:\n")
	fmt.Printf("  max position size:  $%s\n", cfg.MaxPositionSize.String())
	fmt.Printf("  order timeout:      %s\n", cfg.OrderTimeout)
	fmt.Printf("  balance refresh:    %s\n", cfg.BalanceRefreshEvery)
	fmt.Printf("  redemption sweep:   %s\n\n", cfg.RedemptionEvery)

	fmt.Printf("Storage: %s\n", cfg.StorageMode)
	if cfg.StorageMode == "postgres" {
		fmt.Printf("  %s:%s/%s (sslmode=%s)\n", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB, cfg.PostgresSSL)
	}

	fmt.Printf("Credentials: ")
	if cfg.HasAPICredentials() {
		fmt.Printf("present\n")
	} else {
		fmt.Printf("missing (dry-run only)\n")
	}
	if cfg.ProxyURL != "" {
		fmt.Printf("Order proxy: %s\n", cfg.OrderProxyURL())
	}
	if cfg.SlackWebhookURL != "" {
		fmt.Printf("Slack notifications: enabled\n")
	}

	return nil
}
