// Package feed delivers live price updates for the live simulator.
package feed

import (
	"context"
	"strings"
	"time"

	"cryptosim/types"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// updateBuffer bounds how far a feed may run ahead of its consumer. Updates
// beyond it are dropped, the consumer only ever needs the latest prices.
const updateBuffer = 16

// PriceSource returns the latest price of each requested symbol. Symbols it
// cannot price are left out of the result.
type PriceSource interface {
	Prices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

// PollingFeed asks a PriceSource for prices on a fixed interval.
type PollingFeed struct {
	source   PriceSource
	symbols  []string
	interval time.Duration
	clock    func() time.Time
	logger   zerolog.Logger
}

func NewPollingFeed(source PriceSource, symbols []string, interval time.Duration, logger zerolog.Logger) *PollingFeed {
	if interval <= 0 {
		interval = time.Second
	}
	return &PollingFeed{
		source:   source,
		symbols:  symbols,
		interval: interval,
		clock:    time.Now,
		logger:   logger.With().Str("feed", "poll").Logger(),
	}
}

// Subscribe polls until ctx is done, then closes the returned channel. The
// first poll happens immediately.
func (f *PollingFeed) Subscribe(ctx context.Context) <-chan types.PriceUpdate {
	out := make(chan types.PriceUpdate, updateBuffer)
	go func() {
		defer close(out)
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			f.poll(ctx, out)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

func (f *PollingFeed) poll(ctx context.Context, out chan<- types.PriceUpdate) {
	prices, err := f.source.Prices(ctx, f.symbols)
	if err != nil {
		if ctx.Err() == nil {
			f.logger.Warn().Err(err).Msg("price poll failed")
		}
		return
	}
	if len(prices) == 0 {
		return
	}
	send(out, types.PriceUpdate{Time: f.clock(), Prices: prices}, f.logger)
}

func send(out chan<- types.PriceUpdate, u types.PriceUpdate, logger zerolog.Logger) {
	select {
	case out <- u:
	default:
		logger.Debug().Msg("consumer busy, update dropped")
	}
}

// exchangeSymbol converts BTC/USDT to BTCUSDT.
func exchangeSymbol(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), "/", "")
}
