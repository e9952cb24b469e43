package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List recently detected opportunities",
	RunE:  runAlerts,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.Flags().Int("limit", 20, "Maximum alerts to print")
}

func runAlerts(cmd *cobra.Command, args []string) error {
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

	alerts, err := store.RecentAlerts(ctx, limit)
	if err != nil {
		return fmt.Errorf("query alerts: %w", err)
	}

	if len(alerts) == 0 {
		fmt.Println("No alerts recorded.")
		return nil
	}

	for _, a := range alerts {
		fmt.Printf("%s  %s\n", a.DetectedAt.Format(time.RFC3339), a.Question)
		fmt.Printf("  yes %s + no %s = %s  profit/share %s\n",
			a.YesAsk.String(), a.NoAsk.String(), a.Combined.String(), a.Profit.String())
		if a.DurationSeconds > 0 {
			fmt.Printf("  open for %.1fs\n", a.DurationSeconds)
		} else {
			fmt.Printf("  still open (or never closed)\n")
		}
		fmt.Println()
	}

	return nil
}
