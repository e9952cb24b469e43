package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show live stats from a running scanner",
	Long:  `Queries the status endpoint of a scanner running on this host.`,
	RunE:  runStatus,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusReply struct {
	MarketCount    int     `json:"market_count"`
	AssetCount     int     `json:"asset_count"`
	ConnCount      int     `json:"conn_count"`
	ConnectedConns int     `json:"connected_conns"`
	PriceUpdates   int64   `json:"price_updates"`
	AlertsTotal    int64   `json:"alerts_total"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	StartedAt      string  `json:"started_at"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://localhost:%s/api/status", cfg.HTTPPort)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("is the scanner running on port %s? %w", cfg.HTTPPort, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	var reply statusReply
	err = json.NewDecoder(resp.Body).Decode(&reply)
	if err != nil {
		return fmt.Errorf("decode status: %w", err)
	}

	uptime := time.Duration(reply.UptimeSeconds * float64(time.Second)).Round(time.Second)

	fmt.Printf("Scanner status\n")
	fmt.Printf("  markets:      %d (%d assets)\n", reply.MarketCount, reply.AssetCount)
	fmt.Printf("  connections:  %d/%d connected\n", reply.ConnectedConns, reply.ConnCount)
	fmt.Printf("  price updates: %d\n", reply.PriceUpdates)
	fmt.Printf("  alerts:       %d\n", reply.AlertsTotal)
	fmt.Printf("  uptime:       %s (since %s)\n", uptime, reply.StartedAt)

	return nil
}
