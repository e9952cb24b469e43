package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rarb-labs/rarb/pkg/types"
	"go.uber.org/zap"
)

// Slack posts operational events to a Slack incoming webhook. Delivery is
// best-effort: a dead webhook must never slow down the trading path, so
// failures are logged at debug and dropped.
type Slack struct {
	webhookURL string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSlack creates a Slack notifier. An empty webhook URL yields a notifier
// that silently discards everything.
func NewSlack(webhookURL string, logger *zap.Logger) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// ArbitrageAlert announces a newly opened opportunity.
func (s *Slack) ArbitrageAlert(ctx context.Context, alert *types.Alert) {
	var b strings.Builder
	fmt.Fprintf(&b, ":dart: *Arbitrage detected*\n")
	fmt.Fprintf(&b, "> %s\n", alert.Question)
	fmt.Fprintf(&b, "YES %s + NO %s = %s (profit %s/share)",
		alert.YesAsk.String(), alert.NoAsk.String(),
		alert.Combined.String(), alert.Profit.String())

	s.post(ctx, b.String())
}

// PartialFill warns that one leg filled and the other did not, leaving an
// unhedged position that needs a human.
func (s *Slack) PartialFill(ctx context.Context, rec *types.ExecutionRecord) {
	filled, failed := "YES", "NO"
	failedErr := rec.No.Error
	if rec.No.Success {
		filled, failed = "NO", "YES"
		failedErr = rec.Yes.Error
	}

	var b strings.Builder
	fmt.Fprintf(&b, ":warning: *Partial fill: unhedged position*\n")
	fmt.Fprintf(&b, "> %s\n", rec.Question)
	fmt.Fprintf(&b, "%s leg filled, %s leg failed: %s\n", filled, failed, failedErr)
	fmt.Fprintf(&b, "Size %s shares, committed $%s", rec.TradeSize.String(), rec.TotalCost.String())

	s.post(ctx, b.String())
}

// Startup announces that the bot came up.
func (s *Slack) Startup(ctx context.Context, markets, assets int, dryRun bool) {
	mode := "LIVE"
	if dryRun {
		mode = "DRY RUN"
	}
	s.post(ctx, fmt.Sprintf(":rocket: rarb started (%s): %d markets, %d assets", mode, markets, assets))
}

// Shutdown announces a graceful stop.
func (s *Slack) Shutdown(ctx context.Context) {
	s.post(ctx, ":octagonal_sign: rarb shutting down")
}

func (s *Slack) post(ctx context.Context, text string) {
	if s.webhookURL == "" {
		return
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		s.logger.Debug("slack-marshal-failed", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, strings.NewReader(string(payload)))
	if err != nil {
		s.logger.Debug("slack-request-failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Debug("slack-post-failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Debug("slack-post-rejected", zap.Int("status", resp.StatusCode))
	}
}
