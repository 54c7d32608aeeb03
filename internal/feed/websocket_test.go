package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// mockStream serves each connection the next batch of messages, then hangs
// up.
type mockStream struct {
	server  *httptest.Server
	batches [][]string
	conns   atomic.Int32
	query   atomic.Value
}

func newMockStream(batches ...[]string) *mockStream {
	m := &mockStream{batches: batches}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

func (m *mockStream) handle(w http.ResponseWriter, r *http.Request) {
	m.query.Store(r.URL.RawQuery)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	n := int(m.conns.Add(1)) - 1
	if n >= len(m.batches) {
		// Stay connected until the client leaves.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
	for _, msg := range m.batches[n] {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return
		}
	}
}

func (m *mockStream) url() string {
	return "ws" + strings.TrimPrefix(m.server.URL, "http")
}

const btcTick = `{"stream":"btcusdt@miniTicker","data":{"e":"24hrMiniTicker","E":1704067200000,"s":"BTCUSDT","c":"42000.5","o":"41000","h":"42500","l":"40900","v":"100","q":"4200000"}}`

func TestWebSocketFeed(t *testing.T) {
	stream := newMockStream([]string{
		btcTick,
		`not json`,
		`{"stream":"dogeusdt@miniTicker","data":{"e":"24hrMiniTicker","E":1704067201000,"s":"DOGEUSDT","c":"0.1"}}`,
		`{"e":"24hrMiniTicker","E":1704067202000,"s":"ETHUSDT","c":"2250"}`,
	})
	defer stream.server.Close()

	f := NewWebSocketFeed(stream.url(), []string{"BTC/USDT", "ETH/USDT"}, zerolog.Nop(), WithReconnectDelay(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	ch := f.Subscribe(ctx)

	u := receive(t, ch)
	assert.True(t, u.Prices["BTC/USDT"].Equal(decimal.RequireFromString("42000.5")))
	assert.True(t, u.Time.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	u = receive(t, ch)
	require.Len(t, u.Prices, 1)
	assert.True(t, u.Prices["ETH/USDT"].Equal(decimal.NewFromInt(2250)))

	assert.Equal(t, "streams=btcusdt@miniTicker/ethusdt@miniTicker", stream.query.Load())

	cancel()
	waitClosed(t, ch)
}

func TestWebSocketFeed_Reconnects(t *testing.T) {
	stream := newMockStream(
		[]string{btcTick},
		[]string{strings.Replace(btcTick, "42000.5", "42100", 1)},
	)
	defer stream.server.Close()

	f := NewWebSocketFeed(stream.url(), []string{"BTC/USDT"}, zerolog.Nop(), WithReconnectDelay(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := f.Subscribe(ctx)

	first := receive(t, ch)
	second := receive(t, ch)
	assert.True(t, first.Prices["BTC/USDT"].Equal(decimal.RequireFromString("42000.5")))
	assert.True(t, second.Prices["BTC/USDT"].Equal(decimal.NewFromInt(42100)))
	assert.GreaterOrEqual(t, stream.conns.Load(), int32(2))
}

func TestWebSocketFeed_CancelWhileIdle(t *testing.T) {
	stream := newMockStream()
	defer stream.server.Close()

	f := NewWebSocketFeed(stream.url(), []string{"BTC/USDT"}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	ch := f.Subscribe(ctx)

	require.Eventually(t, func() bool { return stream.conns.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	waitClosed(t, ch)
}

func TestParseMiniTicker(t *testing.T) {
	bySymbol := map[string]string{"BTCUSDT": "BTC/USDT"}

	u, ok, err := parseMiniTicker([]byte(btcTick), bySymbol)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "42000.5", u.Prices["BTC/USDT"].String())

	_, ok, err = parseMiniTicker([]byte(`{"e":"24hrMiniTicker","s":"ETHUSDT","c":"1"}`), bySymbol)
	assert.NoError(t, err)
	assert.False(t, ok)

	_, _, err = parseMiniTicker([]byte(`{"e":"24hrMiniTicker","s":"BTCUSDT","c":"abc"}`), bySymbol)
	assert.Error(t, err)

	u, ok, err = parseMiniTicker([]byte(`{"s":"BTCUSDT","c":"5"}`), bySymbol)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, u.Time.IsZero())
}
