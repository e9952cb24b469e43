package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaxAssetsPerConn is the subscription limit the feed enforces per
// connection.
const MaxAssetsPerConn = 500

// MultiplexerConfig holds fan-out settings.
type MultiplexerConfig struct {
	URL          string
	MaxConns     int
	DialTimeout  time.Duration
	PingInterval time.Duration

	WatchdogInterval time.Duration
	StaleConnTimeout time.Duration

	Reconnect ReconnectConfig

	Handler Handler
	Logger  *zap.Logger
}

// ConnState is the observable health of one connection.
type ConnState struct {
	ID        int
	Assets    int
	Connected bool
	SilentFor time.Duration
}

// Multiplexer fans an asset list out over multiple connections, 500 assets
// each, and indexes every asset to its owning connection so ladder lookups
// work across shards.
type Multiplexer struct {
	config MultiplexerConfig
	logger *zap.Logger

	mu        sync.RWMutex
	conns     []*Conn
	assetConn map[string]*Conn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMultiplexer creates a multiplexer; Start subscribes the initial asset
// list.
func NewMultiplexer(cfg MultiplexerConfig) *Multiplexer {
	ctx, cancel := context.WithCancel(context.Background())

	return &Multiplexer{
		config:    cfg,
		logger:    cfg.Logger,
		assetConn: make(map[string]*Conn),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// ShardAssets slices an ordered asset list into contiguous shards of at most
// MaxAssetsPerConn. Assets beyond maxConns shards are dropped; each retained
// asset lands in exactly one shard.
func ShardAssets(assetIDs []string, maxConns int) [][]string {
	var shards [][]string

	for start := 0; start < len(assetIDs); start += MaxAssetsPerConn {
		if len(shards) == maxConns {
			break
		}

		end := start + MaxAssetsPerConn
		if end > len(assetIDs) {
			end = len(assetIDs)
		}
		shards = append(shards, assetIDs[start:end])
	}

	return shards
}

// Start shards the asset list and brings up one connection per non-empty
// shard, plus the zombie watchdog.
func (m *Multiplexer) Start(assetIDs []string) error {
	err := m.subscribe(assetIDs)
	if err != nil {
		return err
	}

	m.wg.Add(1)
	go m.watchdog()

	return nil
}

func (m *Multiplexer) subscribe(assetIDs []string) error {
	shards := ShardAssets(assetIDs, m.config.MaxConns)

	if dropped := len(assetIDs) - m.config.MaxConns*MaxAssetsPerConn; dropped > 0 {
		m.logger.Warn("asset-list-truncated",
			zap.Int("dropped", dropped),
			zap.Int("max-conns", m.config.MaxConns))
	}

	connCfg := ConnConfig{
		URL:          m.config.URL,
		DialTimeout:  m.config.DialTimeout,
		PingInterval: m.config.PingInterval,
		Reconnect:    m.config.Reconnect,
		Logger:       m.logger,
	}

	conns := make([]*Conn, 0, len(shards))
	assetConn := make(map[string]*Conn, len(assetIDs))

	for i, shard := range shards {
		conn := NewConn(i, shard, connCfg, m.config.Handler)

		err := conn.Start()
		if err != nil {
			for _, c := range conns {
				c.Close()
			}
			return fmt.Errorf("start conn %d: %w", i, err)
		}

		conns = append(conns, conn)
		for _, assetID := range shard {
			assetConn[assetID] = conn
		}
	}

	m.mu.Lock()
	m.conns = conns
	m.assetConn = assetConn
	m.mu.Unlock()

	SubscribedAssets.Set(float64(len(assetConn)))

	m.logger.Info("multiplexer-subscribed",
		zap.Int("assets", len(assetConn)),
		zap.Int("connections", len(conns)))

	return nil
}

// Resubscribe tears every connection down and rebuilds the fan-out with a
// new asset list. Used when the tracked market set changes materially.
func (m *Multiplexer) Resubscribe(assetIDs []string) error {
	m.mu.Lock()
	old := m.conns
	m.conns = nil
	m.assetConn = make(map[string]*Conn)
	m.mu.Unlock()

	for _, conn := range old {
		conn.Close()
	}

	m.logger.Info("resubscribing-all-connections", zap.Int("assets", len(assetIDs)))

	return m.subscribe(assetIDs)
}

// watchdog force-closes connections that have gone silent; the per-conn
// reconnect loop then restores them.
func (m *Multiplexer) watchdog() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			conns := m.conns
			m.mu.RUnlock()

			for _, conn := range conns {
				if !conn.Connected() {
					continue
				}
				if silent := conn.SilentFor(); silent > m.config.StaleConnTimeout {
					conn.ForceClose(StaleCloseCode,
						fmt.Sprintf("no messages for %s", silent.Truncate(time.Second)))
				}
			}
		}
	}
}

// BestAsk resolves the owning connection for an asset and returns its best
// ask.
func (m *Multiplexer) BestAsk(assetID string) (price, size decimal.Decimal, ok bool) {
	m.mu.RLock()
	conn := m.assetConn[assetID]
	m.mu.RUnlock()

	if conn == nil {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	return conn.BestAsk(assetID)
}

// BestBid resolves the owning connection for an asset and returns its best
// bid.
func (m *Multiplexer) BestBid(assetID string) (price, size decimal.Decimal, ok bool) {
	m.mu.RLock()
	conn := m.assetConn[assetID]
	m.mu.RUnlock()

	if conn == nil {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	return conn.BestBid(assetID)
}

// AskSizeAt returns the resting ask size at an exact price for an asset.
func (m *Multiplexer) AskSizeAt(assetID string, price decimal.Decimal) (decimal.Decimal, bool) {
	m.mu.RLock()
	conn := m.assetConn[assetID]
	m.mu.RUnlock()

	if conn == nil {
		return decimal.Decimal{}, false
	}
	return conn.AskSizeAt(assetID, price)
}

// States returns per-connection health for stats reporting.
func (m *Multiplexer) States() []ConnState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make([]ConnState, 0, len(m.conns))
	for _, conn := range m.conns {
		states = append(states, ConnState{
			ID:        conn.id,
			Assets:    len(conn.shard),
			Connected: conn.Connected(),
			SilentFor: conn.SilentFor(),
		})
	}
	return states
}

// ConnectedCount returns the number of live connections.
func (m *Multiplexer) ConnectedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, conn := range m.conns {
		if conn.Connected() {
			count++
		}
	}
	return count
}

// AssetCount returns the number of subscribed assets.
func (m *Multiplexer) AssetCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.assetConn)
}

// Close shuts down the watchdog and every connection.
func (m *Multiplexer) Close() error {
	m.cancel()

	m.mu.Lock()
	conns := m.conns
	m.conns = nil
	m.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}

	m.wg.Wait()
	SubscribedAssets.Set(0)

	m.logger.Info("multiplexer-closed")

	return nil
}
