package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar. Indicators holds derived series values keyed by
// name (sma_20, rsi, ...); a key is absent while the indicator is warming up.
type Candle struct {
	Symbol     string             `json:"symbol"`
	Open       decimal.Decimal    `json:"open"`
	High       decimal.Decimal    `json:"high"`
	Low        decimal.Decimal    `json:"low"`
	Close      decimal.Decimal    `json:"close"`
	Volume     decimal.Decimal    `json:"volume"`
	Interval   Interval           `json:"interval"`
	Timestamp  time.Time          `json:"timestamp"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// Indicator returns the named indicator value and whether it is defined.
func (c Candle) Indicator(name string) (float64, bool) {
	v, ok := c.Indicators[name]
	return v, ok
}

// FlatCandle builds a synthetic bar with every price equal to p and zero volume.
func FlatCandle(symbol string, p decimal.Decimal, ts time.Time) Candle {
	return Candle{
		Symbol:    symbol,
		Open:      p,
		High:      p,
		Low:       p,
		Close:     p,
		Volume:    decimal.Zero,
		Timestamp: ts,
	}
}
