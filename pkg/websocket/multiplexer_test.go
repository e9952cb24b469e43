package websocket

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/rarb-labs/rarb/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestShardAssetsContiguous(t *testing.T) {
	assets := make([]string, 1250)
	for i := range assets {
		assets[i] = fmt.Sprintf("asset-%04d", i)
	}

	shards := ShardAssets(assets, 10)

	require.Len(t, shards, 3)
	assert.Len(t, shards[0], 500)
	assert.Len(t, shards[1], 500)
	assert.Len(t, shards[2], 250)

	// Contiguous slices: every asset appears exactly once, in order.
	seen := make(map[string]int)
	var flattened []string
	for _, shard := range shards {
		for _, id := range shard {
			seen[id]++
			flattened = append(flattened, id)
		}
	}
	assert.Len(t, seen, 1250)
	assert.Equal(t, assets, flattened)
}

func TestShardAssetsTruncatesAtMaxConns(t *testing.T) {
	assets := make([]string, 1600)
	for i := range assets {
		assets[i] = fmt.Sprintf("asset-%04d", i)
	}

	shards := ShardAssets(assets, 3)

	require.Len(t, shards, 3)
	total := 0
	for _, shard := range shards {
		assert.LessOrEqual(t, len(shard), MaxAssetsPerConn)
		total += len(shard)
	}

	// min(2M, N*500) assets subscribed.
	assert.Equal(t, 1500, total)
}

func TestShardAssetsSmallList(t *testing.T) {
	shards := ShardAssets([]string{"a", "b"}, 10)

	require.Len(t, shards, 1)
	assert.Equal(t, []string{"a", "b"}, shards[0])
}

func TestShardAssetsEmpty(t *testing.T) {
	assert.Empty(t, ShardAssets(nil, 10))
}

// testFeed is a local WebSocket endpoint that records subscriptions and lets
// the test push messages to the most recent client.
type testFeed struct {
	srv        *httptest.Server
	mu         sync.Mutex
	subscribes []map[string]interface{}
	conn       *gws.Conn
}

func newTestFeed(t *testing.T) *testFeed {
	t.Helper()

	feed := &testFeed{}
	upgrader := gws.Upgrader{}

	feed.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		var sub map[string]interface{}
		if err := conn.ReadJSON(&sub); err != nil {
			conn.Close()
			return
		}

		feed.mu.Lock()
		feed.subscribes = append(feed.subscribes, sub)
		feed.conn = conn
		feed.mu.Unlock()

		// Drain further frames so close handshakes complete.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(feed.srv.Close)

	return feed
}

func (f *testFeed) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *testFeed) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribes)
}

func (f *testFeed) send(t *testing.T, payload string) {
	t.Helper()

	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()

	require.NotNil(t, conn)
	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte(payload)))
}

func testConnConfig(url string) ConnConfig {
	return ConnConfig{
		URL:          url,
		DialTimeout:  time.Second,
		PingInterval: time.Hour,
		Reconnect: ReconnectConfig{
			InitialDelay: 5 * time.Millisecond,
			WaitCap:      20 * time.Millisecond,
			MaxDelay:     40 * time.Millisecond,
		},
		Logger: zap.NewNop(),
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestConnSubscribesShardAndDeliversInline(t *testing.T) {
	feed := newTestFeed(t)

	var mu sync.Mutex
	var received []string

	conn := NewConn(0, []string{"111", "222"}, testConnConfig(feed.url()), func(msg *types.StreamMessage) {
		mu.Lock()
		received = append(received, msg.EventType+":"+msg.AssetID)
		mu.Unlock()
	})
	require.NoError(t, conn.Start())
	defer conn.Close()

	waitFor(t, time.Second, func() bool { return feed.subscribeCount() == 1 })

	feed.mu.Lock()
	sub := feed.subscribes[0]
	feed.mu.Unlock()
	assert.Equal(t, "market", sub["type"])
	assert.Len(t, sub["assets_ids"], 2)

	feed.send(t, `[{"event_type":"book","asset_id":"111","timestamp":"1",
		"asks":[{"price":"0.47","size":"80"}],"bids":[{"price":"0.44","size":"10"}]}]`)

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	})

	mu.Lock()
	assert.Equal(t, "book:111", received[0])
	mu.Unlock()

	// Ladder was updated before the handler ran.
	price, size, ok := conn.BestAsk("111")
	require.True(t, ok)
	assert.Equal(t, "0.47", price.String())
	assert.Equal(t, "80", size.String())
}

func TestConnForceCloseTriggersReconnect(t *testing.T) {
	feed := newTestFeed(t)

	conn := NewConn(0, []string{"111"}, testConnConfig(feed.url()), func(*types.StreamMessage) {})
	require.NoError(t, conn.Start())
	defer conn.Close()

	waitFor(t, time.Second, func() bool { return feed.subscribeCount() == 1 })

	conn.ForceClose(StaleCloseCode, "zombie connection")

	// The reconnect loop redials and resubscribes the same shard.
	waitFor(t, 2*time.Second, func() bool { return feed.subscribeCount() == 2 })
	waitFor(t, time.Second, func() bool { return conn.Connected() })

	feed.mu.Lock()
	sub := feed.subscribes[1]
	feed.mu.Unlock()
	assert.Equal(t, "market", sub["type"])
}

func TestConnIgnoresStaleDisconnectAfterReconnect(t *testing.T) {
	feed := newTestFeed(t)

	conn := NewConn(0, []string{"111"}, testConnConfig(feed.url()), func(*types.StreamMessage) {})
	require.NoError(t, conn.Start())
	defer conn.Close()

	waitFor(t, time.Second, func() bool { return feed.subscribeCount() == 1 })

	conn.mu.RLock()
	old := conn.conn
	conn.mu.RUnlock()

	conn.ForceClose(StaleCloseCode, "zombie connection")

	waitFor(t, 2*time.Second, func() bool { return feed.subscribeCount() == 2 })
	waitFor(t, time.Second, func() bool { return conn.Connected() })

	// A read loop stuck on the old socket can report its error after the
	// reconnect already swapped in a fresh one. That late report must not
	// flip the new connection's state.
	conn.markDisconnected(old)
	assert.True(t, conn.Connected())

	// Against the current socket the mark still lands.
	conn.mu.RLock()
	current := conn.conn
	conn.mu.RUnlock()
	conn.markDisconnected(current)
	assert.False(t, conn.Connected())
}

func TestMultiplexerWatchdogRecoversSilentConn(t *testing.T) {
	feed := newTestFeed(t)

	mux := NewMultiplexer(MultiplexerConfig{
		URL:              feed.url(),
		MaxConns:         2,
		DialTimeout:      time.Second,
		PingInterval:     time.Hour,
		WatchdogInterval: 20 * time.Millisecond,
		StaleConnTimeout: 50 * time.Millisecond,
		Reconnect: ReconnectConfig{
			InitialDelay: 5 * time.Millisecond,
			WaitCap:      20 * time.Millisecond,
			MaxDelay:     40 * time.Millisecond,
		},
		Handler: func(*types.StreamMessage) {},
		Logger:  zap.NewNop(),
	})

	require.NoError(t, mux.Start([]string{"111", "222"}))
	defer mux.Close()

	waitFor(t, time.Second, func() bool { return feed.subscribeCount() == 1 })
	assert.Equal(t, 2, mux.AssetCount())

	// The feed stays silent, so the watchdog force-closes the connection
	// and the reconnect loop brings it back.
	waitFor(t, 3*time.Second, func() bool { return feed.subscribeCount() >= 2 })
	waitFor(t, time.Second, func() bool { return mux.ConnectedCount() == 1 })
}

func TestMultiplexerCrossShardLookup(t *testing.T) {
	feed := newTestFeed(t)

	mux := NewMultiplexer(MultiplexerConfig{
		URL:              feed.url(),
		MaxConns:         2,
		DialTimeout:      time.Second,
		PingInterval:     time.Hour,
		WatchdogInterval: time.Hour,
		StaleConnTimeout: time.Hour,
		Reconnect: ReconnectConfig{
			InitialDelay: 5 * time.Millisecond,
			WaitCap:      20 * time.Millisecond,
			MaxDelay:     40 * time.Millisecond,
		},
		Handler: func(*types.StreamMessage) {},
		Logger:  zap.NewNop(),
	})

	require.NoError(t, mux.Start([]string{"111", "222"}))
	defer mux.Close()

	waitFor(t, time.Second, func() bool { return feed.subscribeCount() == 1 })

	feed.send(t, `[{"event_type":"book","asset_id":"222","timestamp":"1",
		"asks":[{"price":"0.52","size":"40"}]}]`)

	waitFor(t, time.Second, func() bool {
		_, _, ok := mux.BestAsk("222")
		return ok
	})

	price, size, ok := mux.BestAsk("222")
	require.True(t, ok)
	assert.Equal(t, "0.52", price.String())
	assert.Equal(t, "40", size.String())

	_, _, ok = mux.BestAsk("999")
	assert.False(t, ok)
}
