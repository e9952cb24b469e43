package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rarb-labs/rarb/internal/balance"
	"github.com/rarb-labs/rarb/internal/execution"
	"github.com/rarb-labs/rarb/internal/markets"
	"github.com/rarb-labs/rarb/internal/notify"
	"github.com/rarb-labs/rarb/internal/redemption"
	"github.com/rarb-labs/rarb/internal/scanner"
	"github.com/rarb-labs/rarb/internal/storage"
	"github.com/rarb-labs/rarb/internal/worker"
	"github.com/rarb-labs/rarb/pkg/cache"
	"github.com/rarb-labs/rarb/pkg/config"
	"github.com/rarb-labs/rarb/pkg/healthprobe"
	"github.com/rarb-labs/rarb/pkg/httpserver"
	"github.com/rarb-labs/rarb/pkg/types"
	"github.com/rarb-labs/rarb/pkg/wallet"
	"github.com/rarb-labs/rarb/pkg/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// resubscribeDelta is how far the tradable market count may drift before a
// metadata refresh tears down and resubscribes every connection.
const resubscribeDelta = 10

// Options selects the scan transport.
type Options struct {
	// Polling uses the legacy REST polling loop instead of websockets.
	Polling bool
}

// App wires the scanner, executor, balance cache and background loops
// together and owns their lifecycles.
type App struct {
	cfg    *config.Config
	opts   Options
	logger *zap.Logger

	health     *healthprobe.HealthChecker
	httpServer *httpserver.Server
	store      storage.Store
	markets    *markets.Client
	mux        *websocket.Multiplexer
	poller     *scanner.Poller
	scanner    *scanner.Scanner
	balance    *balance.Cache
	executor   *execution.Executor
	redeemer   *redemption.Redeemer
	slack      *notify.Slack
	pool       *worker.Pool

	// alertCh carries detections to the single execution loop. Capacity 1
	// plus a non-blocking send is the execution lock: anything detected
	// while a trade is in flight is dropped, not queued.
	alertCh chan *types.Alert

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds the application from configuration.
func New(cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:     cfg,
		opts:    opts,
		logger:  logger,
		health:  healthprobe.New(),
		alertCh: make(chan *types.Alert, 1),
		ctx:     ctx,
		cancel:  cancel,
	}

	a.pool = worker.NewPool(worker.PoolConfig{
		Workers:   cfg.WorkerCount,
		QueueSize: cfg.WorkerQueueSize,
		Logger:    logger,
	})

	metaCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 100000,
		MaxCost:     10000,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	a.store, err = setupStore(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	a.markets = markets.NewClient(markets.Config{
		GammaURL: cfg.GammaURL,
		ClobURL:  cfg.ClobURL,
		Logger:   logger,
		Cache:    metaCache,
	})

	a.slack = notify.NewSlack(cfg.SlackWebhookURL, logger)

	if !opts.Polling {
		a.mux = websocket.NewMultiplexer(websocket.MultiplexerConfig{
			URL:              cfg.WSURL,
			MaxConns:         cfg.NumWSConnections,
			DialTimeout:      cfg.WSDialTimeout,
			PingInterval:     cfg.WSPingInterval,
			WatchdogInterval: cfg.WatchdogInterval,
			StaleConnTimeout: cfg.StaleConnTimeout,
			Reconnect: websocket.ReconnectConfig{
				InitialDelay: cfg.WSReconnectInitialDelay,
				WaitCap:      cfg.WSReconnectWaitCap,
				MaxDelay:     cfg.WSReconnectMaxDelay,
			},
			Handler: func(msg *types.StreamMessage) { a.scanner.HandleMessage(msg) },
			Logger:  logger,
		})
	}

	var ladder scanner.Ladder
	if a.mux != nil {
		ladder = a.mux
	}
	a.scanner = scanner.New(scanner.Config{
		Threshold:              cfg.MinProfitThreshold,
		MaxDaysUntilResolution: cfg.MaxDaysUntilResolution,
		Ladder:                 ladder,
		Recorder:               a.store,
		Notifier:               &slackAlerts{slack: a.slack},
		Pool:                   a.pool,
		OnAlert:                a.enqueueAlert,
		Logger:                 logger,
	})

	if opts.Polling {
		a.poller = scanner.NewPoller(a.scanner, a.markets, cfg.PollInterval, logger)
	}

	err = a.setupTrading()
	if err != nil {
		cancel()
		return nil, err
	}

	serverCfg := &httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: a.health,
		Status:        func() types.ScannerStats { return a.scanner.Stats(a.connInfo) },
	}
	if a.mux != nil {
		serverCfg.Ladder = a.mux
	}
	a.httpServer = httpserver.New(serverCfg)

	return a, nil
}

// setupTrading builds the balance cache, executor and redeemer. Live mode
// requires real credentials; dry-run mode trades against a paper balance.
func (a *App) setupTrading() error {
	balanceSource, err := a.setupBalanceSource()
	if err != nil {
		return err
	}

	if balanceSource != nil {
		a.balance = balance.New(balance.Config{
			Source:   balanceSource,
			Recorder: a.store,
			Pool:     a.pool,
			Interval: a.cfg.BalanceRefreshEvery,
			Logger:   a.logger,
		})
	}

	execCfg := execution.Config{
		Recorder:        a.store,
		Notifier:        a.slack,
		NegRisk:         a.markets,
		Pool:            a.pool,
		MaxPositionSize: a.cfg.MaxPositionSize,
		OrderTimeout:    a.cfg.OrderTimeout,
		DryRun:          a.cfg.DryRun,
		Logger:          a.logger,
	}

	if a.cfg.DryRun {
		execCfg.Balance = &paperBalance{funds: a.cfg.MaxPositionSize}
		a.executor = execution.New(execCfg)
		return nil
	}

	err = a.cfg.RequireLiveCredentials()
	if err != nil {
		return err
	}

	orderClient, err := execution.NewOrderClient(&execution.OrderClientConfig{
		BaseURL:       a.cfg.ClobURL,
		APIKey:        a.cfg.APIKey,
		Secret:        a.cfg.APISecret,
		Passphrase:    a.cfg.APIPassphrase,
		PrivateKey:    a.cfg.PrivateKey,
		FunderAddress: a.cfg.FunderAddress,
		ChainID:       a.cfg.ChainID,
		ProxyURL:      a.cfg.OrderProxyURL(),
		Timeout:       a.cfg.OrderTimeout,
		Logger:        a.logger,
	})
	if err != nil {
		return fmt.Errorf("setup order client: %w", err)
	}

	execCfg.Submitter = orderClient
	execCfg.Balance = a.balance
	a.executor = execution.New(execCfg)

	walletClient := balanceSource.(*wallet.Client)
	a.redeemer, err = redemption.New(&redemption.Config{
		RPCURL:     a.cfg.RPCURL,
		PrivateKey: a.cfg.PrivateKey,
		ChainID:    a.cfg.ChainID,
		Source:     walletClient,
		Logger:     a.logger,
	})
	if err != nil {
		return fmt.Errorf("setup redeemer: %w", err)
	}

	return nil
}

// setupBalanceSource builds the chain source for the balance cache. Returns
// nil in dry-run mode when no key is configured.
func (a *App) setupBalanceSource() (balance.ChainSource, error) {
	address, err := tradingAddress(a.cfg)
	if err != nil {
		if a.cfg.DryRun {
			return nil, nil
		}
		return nil, err
	}

	client, err := wallet.NewClient(&wallet.Config{
		RPCURL:     a.cfg.RPCURL,
		DataAPIURL: a.cfg.DataAPIURL,
		Address:    address,
		Logger:     a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("setup wallet client: %w", err)
	}
	return client, nil
}

// tradingAddress resolves the address whose balance funds trades: the funder
// proxy when configured, otherwise the EOA behind the private key.
func tradingAddress(cfg *config.Config) (string, error) {
	if cfg.FunderAddress != "" {
		return cfg.FunderAddress, nil
	}
	if cfg.PrivateKey == "" {
		return "", fmt.Errorf("no private key or funder address configured")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	return crypto.PubkeyToAddress(privateKey.PublicKey).Hex(), nil
}

func setupStore(cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	if cfg.StorageMode == "postgres" {
		store, err := storage.NewPostgresStore(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres store: %w", err)
		}
		return store, nil
	}

	return storage.NewConsoleStore(logger), nil
}

// enqueueAlert hands a detection to the execution loop without blocking the
// read path.
func (a *App) enqueueAlert(alert *types.Alert) {
	select {
	case a.alertCh <- alert:
	default:
		// A trade is already in flight; the next detection for this
		// market will land once the loop drains.
	}
}

// connInfo adapts the multiplexer state for the stats snapshot.
func (a *App) connInfo() (conns, connected, assets int) {
	if a.mux == nil {
		return 0, 0, 0
	}
	return len(a.mux.States()), a.mux.ConnectedCount(), a.mux.AssetCount()
}

// slackAlerts adapts the Slack notifier to the scanner's notifier shape;
// the worker pool supplies no per-call context.
type slackAlerts struct {
	slack *notify.Slack
}

func (s *slackAlerts) ArbitrageAlert(alert *types.Alert) {
	s.slack.ArbitrageAlert(context.Background(), alert)
}

// paperBalance funds dry-run sizing without touching the chain. Reservations
// always pass; nothing is ever submitted against them.
type paperBalance struct {
	funds decimal.Decimal
}

func (p *paperBalance) Balance() decimal.Decimal          { return p.funds }
func (p *paperBalance) Reserve(cost decimal.Decimal) bool { return true }
func (p *paperBalance) RequestRefresh()                   {}
