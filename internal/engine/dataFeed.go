package engine

import (
	"sort"
	"time"

	"cryptosim/types"

	"github.com/shopspring/decimal"
)

// dataFeed is the replay cursor over one symbol's bars.
type dataFeed struct {
	symbol  string
	candles []types.Candle
	// index is the number of bars with Timestamp <= the current tick.
	index int
}

// newDataFeed sorts candles by time and drops duplicate timestamps, keeping
// the last one seen.
func newDataFeed(symbol string, candles []types.Candle) *dataFeed {
	sorted := make([]types.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	out := sorted[:0]
	for _, c := range sorted {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(c.Timestamp) {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return &dataFeed{symbol: symbol, candles: out}
}

func (f *dataFeed) first() time.Time { return f.candles[0].Timestamp }

func (f *dataFeed) last() time.Time { return f.candles[len(f.candles)-1].Timestamp }

// advance moves the cursor to include every bar at or before curTime.
// Index only goes one way.
func (f *dataFeed) advance(curTime time.Time) {
	for f.index < len(f.candles) && !f.candles[f.index].Timestamp.After(curTime) {
		f.index++
	}
}

// window is the visible history. The capacity is clipped so a strategy
// appending to it cannot overwrite future bars.
func (f *dataFeed) window() []types.Candle {
	return f.candles[:f.index:f.index]
}

// priceAt returns the close of the bar stamped exactly at t.
func (f *dataFeed) priceAt(t time.Time) (decimal.Decimal, bool) {
	if f.index == 0 {
		return decimal.Zero, false
	}
	c := f.candles[f.index-1]
	if !c.Timestamp.Equal(t) {
		return decimal.Zero, false
	}
	return c.Close, true
}

// getOverlapRange returns the latest first bar and the earliest last bar
// across feeds.
func getOverlapRange(feeds []*dataFeed) (time.Time, time.Time) {
	if len(feeds) == 0 {
		return time.Time{}, time.Time{}
	}
	start, end := feeds[0].first(), feeds[0].last()
	for _, f := range feeds[1:] {
		if f.first().After(start) {
			start = f.first()
		}
		if f.last().Before(end) {
			end = f.last()
		}
	}
	return start, end
}
