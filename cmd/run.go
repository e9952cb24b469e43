package cmd

import (
	"fmt"

	"github.com/rarb-labs/rarb/internal/app"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the arbitrage scanner",
	Long: `Starts the scanner: fetches tradable binary markets, subscribes to
their order books, and detects cross-side arbitrage inline.

Dry-run mode (the default) sizes and records every opportunity without
submitting orders. Live mode requires full CLOB credentials and exits
immediately when they are missing.`,
	RunE: runBot,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("dry-run", false, "Force dry-run mode (default unless --live)")
	runCmd.Flags().Bool("live", false, "Enable live order submission")
	runCmd.Flags().Bool("realtime", false, "Use the WebSocket stream (default)")
	runCmd.Flags().Bool("polling", false, "Use the legacy REST polling loop")
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	live, _ := cmd.Flags().GetBool("live")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	polling, _ := cmd.Flags().GetBool("polling")

	if live && dryRun {
		return fmt.Errorf("--live and --dry-run are mutually exclusive")
	}
	if live {
		cfg.DryRun = false
		cfg.Live = true
		err = cfg.RequireLiveCredentials()
		if err != nil {
			return err
		}
	}
	if dryRun {
		cfg.DryRun = true
		cfg.Live = false
	}

	application, err := app.New(cfg, logger, app.Options{Polling: polling})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
