package cmd

import (
	"fmt"
	"os"

	"github.com/rarb-labs/rarb/internal/storage"
	"github.com/rarb-labs/rarb/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "rarb",
	Short: "Polymarket cross-side arbitrage bot",
	Long: `rarb scans Polymarket binary markets for cross-side arbitrage:
moments when ask(YES) + ask(NO) < 1.00, so buying both sides locks in
the difference at resolution.

The bot streams order books over fanned-out WebSocket connections,
detects opportunities inline, and (in live mode) submits paired GTC
orders against both sides.`,
}

// Execute runs the root command. Called once from main.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by every command.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	return cfg, logger, nil
}

// openStore opens the configured store for query commands.
func openStore(cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	if cfg.StorageMode != "postgres" {
		return nil, fmt.Errorf("this command requires STORAGE_MODE=postgres")
	}

	return storage.NewPostgresStore(&storage.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPass,
		Database: cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSL,
		Logger:   logger,
	})
}
