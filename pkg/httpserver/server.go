package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rarb-labs/rarb/pkg/healthprobe"
	"github.com/rarb-labs/rarb/pkg/types"
	"go.uber.org/zap"
)

// StatusSource supplies the live scanner snapshot for /api/status.
type StatusSource func() types.ScannerStats

// Server provides the operational HTTP surface: metrics, health and the
// status API the dashboard polls.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config holds server configuration.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker
	Status        StatusSource
	Ladder        Ladder // optional; enables /api/orderbook
}

// New creates an HTTP server.
func New(cfg *Config) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	if cfg.Status != nil {
		r.Get("/api/status", statusHandler(cfg.Status))
	}
	if cfg.Ladder != nil {
		r.Get("/api/orderbook", orderbookHandler(cfg.Ladder, cfg.Logger))
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server: server,
		logger: cfg.Logger,
	}
}

type statusResponse struct {
	MarketCount    int    `json:"market_count"`
	AssetCount     int    `json:"asset_count"`
	ConnCount      int    `json:"conn_count"`
	ConnectedConns int    `json:"connected_conns"`
	PriceUpdates   int64  `json:"price_updates"`
	AlertsTotal    int64  `json:"alerts_total"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	StartedAt      string `json:"started_at"`
}

func statusHandler(status StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := status()
		resp := statusResponse{
			MarketCount:    stats.MarketCount,
			AssetCount:     stats.AssetCount,
			ConnCount:      stats.ConnCount,
			ConnectedConns: stats.ConnectedConns,
			PriceUpdates:   stats.PriceUpdates,
			AlertsTotal:    stats.AlertsTotal,
			UptimeSeconds:  int64(time.Since(stats.StartedAt).Seconds()),
			StartedAt:      stats.StartedAt.UTC().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
