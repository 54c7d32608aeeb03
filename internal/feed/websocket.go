package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cryptosim/types"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	DefaultWSURL          = "wss://stream.binance.com:9443"
	defaultReconnectDelay = 5 * time.Second
)

// WebSocketFeed streams Binance combined miniTicker events, one update per
// event, reconnecting after a delay whenever the connection drops.
type WebSocketFeed struct {
	baseURL        string
	symbols        []string
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	logger         zerolog.Logger
}

type WSOption func(*WebSocketFeed)

func WithReconnectDelay(d time.Duration) WSOption {
	return func(f *WebSocketFeed) { f.reconnectDelay = d }
}

func WithDialer(d *websocket.Dialer) WSOption {
	return func(f *WebSocketFeed) { f.dialer = d }
}

func NewWebSocketFeed(baseURL string, symbols []string, logger zerolog.Logger, opts ...WSOption) *WebSocketFeed {
	if baseURL == "" {
		baseURL = DefaultWSURL
	}
	f := &WebSocketFeed{
		baseURL:        strings.TrimRight(baseURL, "/"),
		symbols:        symbols,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: defaultReconnectDelay,
		logger:         logger.With().Str("feed", "websocket").Logger(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// StreamURL is the combined-stream endpoint for the configured symbols.
func (f *WebSocketFeed) StreamURL() string {
	streams := make([]string, 0, len(f.symbols))
	for _, s := range f.symbols {
		streams = append(streams, strings.ToLower(exchangeSymbol(s))+"@miniTicker")
	}
	return f.baseURL + "/stream?streams=" + strings.Join(streams, "/")
}

// Subscribe streams until ctx is done, then closes the returned channel.
func (f *WebSocketFeed) Subscribe(ctx context.Context) <-chan types.PriceUpdate {
	out := make(chan types.PriceUpdate, updateBuffer)
	go func() {
		defer close(out)
		for {
			err := f.connectAndStream(ctx, out)
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn().Err(err).Dur("retry_in", f.reconnectDelay).Msg("stream disconnected")
			select {
			case <-ctx.Done():
				return
			case <-time.After(f.reconnectDelay):
			}
		}
	}()
	return out
}

func (f *WebSocketFeed) connectAndStream(ctx context.Context, out chan<- types.PriceUpdate) error {
	conn, _, err := f.dialer.DialContext(ctx, f.StreamURL(), nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when ctx ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	f.logger.Info().Int("symbols", len(f.symbols)).Msg("stream connected")
	bySymbol := make(map[string]string, len(f.symbols))
	for _, s := range f.symbols {
		bySymbol[exchangeSymbol(s)] = s
	}
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("websocket read: %w", err)
		}
		u, ok, err := parseMiniTicker(message, bySymbol)
		if err != nil {
			f.logger.Debug().Err(err).Msg("unparseable message skipped")
			continue
		}
		if ok {
			send(out, u, f.logger)
		}
	}
}

type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type miniTicker struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
}

// parseMiniTicker accepts both combined-stream envelopes and bare events. ok
// is false for events about symbols not in bySymbol.
func parseMiniTicker(message []byte, bySymbol map[string]string) (types.PriceUpdate, bool, error) {
	var env combinedMessage
	if err := json.Unmarshal(message, &env); err != nil {
		return types.PriceUpdate{}, false, err
	}
	data := []byte(env.Data)
	if len(data) == 0 {
		data = message
	}
	var t miniTicker
	if err := json.Unmarshal(data, &t); err != nil {
		return types.PriceUpdate{}, false, err
	}
	sym, ok := bySymbol[t.Symbol]
	if !ok {
		return types.PriceUpdate{}, false, nil
	}
	px, err := decimal.NewFromString(t.Close)
	if err != nil {
		return types.PriceUpdate{}, false, fmt.Errorf("close price %q: %w", t.Close, err)
	}
	var ts time.Time
	if t.EventTime > 0 {
		ts = time.UnixMilli(t.EventTime).UTC()
	}
	return types.PriceUpdate{Time: ts, Prices: map[string]decimal.Decimal{sym: px}}, true, nil
}
