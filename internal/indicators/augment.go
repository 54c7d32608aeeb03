// Package indicators derives technical indicator series from candles.
package indicators

import (
	"math"

	"cryptosim/types"
)

const (
	SMA20         = "sma_20"
	SMA50         = "sma_50"
	EMA12         = "ema_12"
	EMA26         = "ema_26"
	MACD          = "macd"
	MACDSignal    = "macd_signal"
	MACDHistogram = "macd_histogram"
	RSI14         = "rsi"
	BBMiddle      = "bb_middle"
	BBUpper       = "bb_upper"
	BBLower       = "bb_lower"
	VolumeSMA     = "volume_sma"
	VolumeRatio   = "volume_ratio"
)

// Augment returns a copy of candles with Indicators filled in. Values still
// warming up, or otherwise undefined, are left out of the map.
func Augment(candles []types.Candle) []types.Candle {
	n := len(candles)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close.InexactFloat64()
		volumes[i] = c.Volume.InexactFloat64()
	}

	ema12 := EWM(closes, 12)
	ema26 := EWM(closes, 26)
	macd := make([]float64, n)
	for i := range macd {
		macd[i] = ema12[i] - ema26[i]
	}
	signal := EWM(macd, 9)
	hist := make([]float64, n)
	for i := range hist {
		hist[i] = macd[i] - signal[i]
	}

	sma20 := SMA(closes, 20)
	std20 := RollingStd(closes, 20)
	upper := make([]float64, n)
	lower := make([]float64, n)
	for i := range upper {
		upper[i] = sma20[i] + 2*std20[i]
		lower[i] = sma20[i] - 2*std20[i]
	}

	volSMA := SMA(volumes, 20)
	volRatio := make([]float64, n)
	for i := range volRatio {
		volRatio[i] = volumes[i] / volSMA[i]
	}

	series := []struct {
		name   string
		values []float64
	}{
		{SMA20, sma20},
		{SMA50, SMA(closes, 50)},
		{EMA12, ema12},
		{EMA26, ema26},
		{MACD, macd},
		{MACDSignal, signal},
		{MACDHistogram, hist},
		{RSI14, RSI(closes, 14)},
		{BBMiddle, sma20},
		{BBUpper, upper},
		{BBLower, lower},
		{VolumeSMA, volSMA},
		{VolumeRatio, volRatio},
	}

	out := make([]types.Candle, n)
	for i, c := range candles {
		c.Indicators = make(map[string]float64, len(series))
		for _, s := range series {
			if v := s.values[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				c.Indicators[s.name] = v
			}
		}
		out[i] = c
	}
	return out
}
