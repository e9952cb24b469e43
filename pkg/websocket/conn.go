package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rarb-labs/rarb/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StaleCloseCode is sent when the watchdog force-closes a connection that
// stopped delivering messages.
const StaleCloseCode = 4000

// Handler consumes stream messages inline from the read loop. It must not
// block; detection runs synchronously on this path.
type Handler func(msg *types.StreamMessage)

// ConnConfig holds per-connection settings.
type ConnConfig struct {
	URL          string
	DialTimeout  time.Duration
	PingInterval time.Duration
	Reconnect    ReconnectConfig
	Logger       *zap.Logger
}

// Conn is one physical WebSocket connection owning a fixed shard of assets.
// It maintains a ladder per asset so best-ask lookups never need a REST
// round trip, and hands every decoded message to the handler inline.
type Conn struct {
	id      int
	shard   []string
	handler Handler
	logger  *zap.Logger
	config  ConnConfig

	reconnectMgr *ReconnectManager

	conn  *websocket.Conn
	mu    sync.RWMutex
	books map[string]*ladder

	connected       atomic.Bool
	lastMessageAt   atomic.Int64 // unix nano
	connectionStart atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConn creates a connection for the given asset shard.
func NewConn(id int, shard []string, cfg ConnConfig, handler Handler) *Conn {
	ctx, cancel := context.WithCancel(context.Background())

	books := make(map[string]*ladder, len(shard))
	for _, assetID := range shard {
		books[assetID] = newLadder()
	}

	logger := cfg.Logger.With(zap.Int("conn-id", id))

	return &Conn{
		id:           id,
		shard:        shard,
		handler:      handler,
		logger:       logger,
		config:       cfg,
		reconnectMgr: NewReconnectManager(cfg.Reconnect, logger),
		books:        books,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start dials, subscribes the shard and launches the read, ping and
// reconnect loops.
func (c *Conn) Start() error {
	err := c.connect(c.ctx)
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	c.wg.Add(3)
	go c.readLoop()
	go c.pingLoop()
	go c.reconnectLoop()

	return nil
}

// connect dials the endpoint and subscribes the shard.
func (c *Conn) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.DialTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	subscribeMsg := map[string]interface{}{
		"assets_ids": c.shard,
		"type":       "market",
	}

	err = conn.WriteJSON(subscribeMsg)
	if err != nil {
		conn.Close()
		return fmt.Errorf("write subscribe message: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	now := time.Now()
	c.connected.Store(true)
	c.lastMessageAt.Store(now.UnixNano())
	c.connectionStart.Store(now.Unix())
	ActiveConnections.Inc()

	c.logger.Info("websocket-connected", zap.Int("assets", len(c.shard)))

	return nil
}

// readLoop reads and decodes messages until the connection drops.
func (c *Conn) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil || !c.connected.Load() {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			c.logger.Warn("read-error", zap.Error(err))
			c.markDisconnected(conn)
			return
		}

		c.lastMessageAt.Store(time.Now().UnixNano())

		var msgs []types.StreamMessage
		err = json.Unmarshal(message, &msgs)
		if err != nil {
			// The feed occasionally delivers a bare object instead of
			// an array.
			var single types.StreamMessage
			if json.Unmarshal(message, &single) == nil && single.EventType != "" {
				msgs = []types.StreamMessage{single}
			} else {
				if len(message) >= 10 {
					c.logger.Debug("unparseable-message", zap.Int("bytes", len(message)))
				}
				continue
			}
		}

		for i := range msgs {
			msg := &msgs[i]

			MessagesReceivedTotal.WithLabelValues(msg.EventType).Inc()

			c.applyToLadder(msg)
			c.handler(msg)
		}
	}
}

// applyToLadder folds the message into the per-asset ladder before the
// handler observes it, so handler-side lookups see a book consistent with
// the message.
func (c *Conn) applyToLadder(msg *types.StreamMessage) {
	switch msg.EventType {
	case types.EventBook:
		if book, ok := c.books[msg.AssetID]; ok {
			book.applyBook(msg.Bids, msg.Asks)
		}
	case types.EventPriceChange:
		for _, change := range msg.Changes {
			assetID := change.AssetID
			if assetID == "" {
				assetID = msg.AssetID
			}
			if book, ok := c.books[assetID]; ok {
				book.applyChange(change.Side, change.Price, change.Size)
			}
		}
	}
}

// pingLoop sends periodic PING control frames.
func (c *Conn) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.connected.Load() {
				continue
			}

			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()

			if conn == nil {
				continue
			}

			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
			if err != nil {
				c.logger.Warn("ping-error", zap.Error(err))
			}
		}
	}
}

// reconnectLoop redials and resubscribes the shard whenever the connection
// drops.
func (c *Conn) reconnectLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if c.connected.Load() {
			time.Sleep(time.Second)
			continue
		}

		c.logger.Warn("connection-lost-initiating-reconnect")

		err := c.reconnectMgr.Reconnect(c.ctx, c.connect)
		if err != nil {
			if err == context.Canceled {
				return
			}
			c.logger.Error("reconnection-failed", zap.Error(err))
			continue
		}

		c.wg.Add(1)
		go c.readLoop()
	}
}

// ForceClose closes the underlying connection with the given close code.
// The reconnect loop takes over from there.
func (c *Conn) ForceClose(code int, reason string) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return
	}

	c.logger.Warn("force-closing-connection",
		zap.Int("code", code),
		zap.String("reason", reason))

	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	conn.Close()

	c.markDisconnected(conn)
	StaleConnectionsClosedTotal.Inc()
}

// markDisconnected flips the connected flag, but only when observed is still
// the current connection. A read loop that lost the race with a reconnect
// reports an error against the old socket; acting on it would tear down the
// replacement. A nil observed marks unconditionally.
func (c *Conn) markDisconnected(observed *websocket.Conn) {
	if observed != nil {
		c.mu.RLock()
		current := c.conn
		c.mu.RUnlock()
		if current != observed {
			return
		}
	}

	if !c.connected.CompareAndSwap(true, false) {
		return
	}

	startTime := c.connectionStart.Load()
	if startTime > 0 {
		ConnectionDuration.Observe(time.Since(time.Unix(startTime, 0)).Seconds())
	}

	ActiveConnections.Dec()
}

// Connected reports whether the connection is currently up.
func (c *Conn) Connected() bool {
	return c.connected.Load()
}

// SilentFor returns how long ago the last message arrived.
func (c *Conn) SilentFor() time.Duration {
	last := c.lastMessageAt.Load()
	if last == 0 {
		return 0
	}
	return time.Since(time.Unix(0, last))
}

// Assets returns the shard owned by this connection.
func (c *Conn) Assets() []string {
	return c.shard
}

// BestAsk returns the best ask for an asset in this shard.
func (c *Conn) BestAsk(assetID string) (price, size decimal.Decimal, ok bool) {
	book, found := c.books[assetID]
	if !found {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	return book.bestAsk()
}

// BestBid returns the best bid for an asset in this shard.
func (c *Conn) BestBid(assetID string) (price, size decimal.Decimal, ok bool) {
	book, found := c.books[assetID]
	if !found {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	return book.bestBid()
}

// AskSizeAt returns the resting ask size at an exact price.
func (c *Conn) AskSizeAt(assetID string, price decimal.Decimal) (decimal.Decimal, bool) {
	book, found := c.books[assetID]
	if !found {
		return decimal.Decimal{}, false
	}
	return book.sizeAt(price)
}

// Close shuts the connection down for good.
func (c *Conn) Close() error {
	c.cancel()

	c.mu.RLock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.RUnlock()

	c.markDisconnected(nil)
	c.wg.Wait()

	return nil
}
