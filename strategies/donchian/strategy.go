package donchian

import (
	"fmt"
	"time"

	"cryptosim/internal/engine"
	"cryptosim/types"

	"github.com/shopspring/decimal"
)

const (
	Name        = "DonchianBreakoutStrategy"
	Description = "Long-only channel breakout: buys a break of the highest high of the preceding window, exits on a break of the lowest low or an ATR stop"
)

type Strategy struct {
	window          int
	atrPeriod       int
	atrMultiple     decimal.Decimal
	positionPercent decimal.Decimal

	stopLoss map[string]decimal.Decimal
}

func New() *Strategy {
	return &Strategy{
		window:          20,
		atrPeriod:       20,
		atrMultiple:     decimal.NewFromInt(2),
		positionPercent: decimal.RequireFromString("0.1"),
		stopLoss:        make(map[string]decimal.Decimal),
	}
}

func Register(r *engine.Registry) error {
	return r.Register(Name, Description, func() engine.Strategy { return New() })
}

func (s *Strategy) Name() string { return Name }

func (s *Strategy) Parameters() map[string]float64 {
	return map[string]float64{
		"window":           float64(s.window),
		"atr_period":       float64(s.atrPeriod),
		"atr_multiple":     s.atrMultiple.InexactFloat64(),
		"position_percent": s.positionPercent.InexactFloat64(),
	}
}

func (s *Strategy) SetParameters(params map[string]float64) error {
	for k, v := range params {
		switch k {
		case "window", "atr_period":
			if v < 1 || v != float64(int(v)) {
				return fmt.Errorf("%s must be a positive integer, got %v", k, v)
			}
			if k == "window" {
				s.window = int(v)
			} else {
				s.atrPeriod = int(v)
			}
		case "atr_multiple":
			if v < 0 {
				return fmt.Errorf("atr_multiple must be >= 0, got %v", v)
			}
			s.atrMultiple = decimal.NewFromFloat(v)
		case "position_percent":
			if v <= 0 || v > 1 {
				return fmt.Errorf("position_percent must be in (0, 1], got %v", v)
			}
			s.positionPercent = decimal.NewFromFloat(v)
		default:
			return fmt.Errorf("unknown parameter %q", k)
		}
	}
	return nil
}

func (s *Strategy) GenerateSignals(_ time.Time, data map[string][]types.Candle, view types.PortfolioView) (map[string]types.Signal, error) {
	signals := make(map[string]types.Signal, len(data))
	for symbol, hist := range data {
		// The channel is built from completed bars, excluding the current one.
		if len(hist) < s.window+1 {
			continue
		}
		candle := hist[len(hist)-1]
		highestHigh, lowestLow := donchianHighLow(hist[len(hist)-1-s.window : len(hist)-1])
		held := view.Quantity(symbol)

		switch {
		case held.IsZero() && candle.High.GreaterThan(highestHigh):
			qty := view.Cash.Mul(s.positionPercent).Div(candle.Close)
			signals[symbol] = types.BuySignal(qty, fmt.Sprintf("Break of highest high %s of preceding %d bars", highestHigh, s.window))
			s.stopLoss[symbol] = candle.Close.Sub(calcATR(hist, s.atrPeriod).Mul(s.atrMultiple))

		case held.IsPositive() && candle.Low.LessThan(lowestLow):
			signals[symbol] = types.SellSignal(held, fmt.Sprintf("Break of lowest low %s of preceding %d bars", lowestLow, s.window))
			delete(s.stopLoss, symbol)

		case held.IsPositive() && s.stopLoss[symbol].IsPositive() && candle.Close.LessThan(s.stopLoss[symbol]):
			signals[symbol] = types.SellSignal(held, fmt.Sprintf("ATR(%d) stop-loss at %s", s.atrPeriod, s.stopLoss[symbol]))
			delete(s.stopLoss, symbol)

		default:
			signals[symbol] = types.HoldSignal("")
		}
	}
	return signals, nil
}

// Utility: Donchian Channel High/Low
func donchianHighLow(candles []types.Candle) (decimal.Decimal, decimal.Decimal) {
	if len(candles) == 0 {
		return decimal.Zero, decimal.Zero
	}

	highest := candles[0].High
	lowest := candles[0].Low
	for _, c := range candles {
		if c.High.GreaterThan(highest) {
			highest = c.High
		}
		if c.Low.LessThan(lowest) {
			lowest = c.Low
		}
	}
	return highest, lowest
}

// calcATR is Wilder's average true range over period; zero without enough bars.
func calcATR(candles []types.Candle, period int) decimal.Decimal {
	if period <= 0 || len(candles) < period+1 {
		return decimal.Zero
	}

	trueRanges := make([]decimal.Decimal, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close
		trueRanges = append(trueRanges, decimal.Max(
			high.Sub(low),
			high.Sub(prevClose).Abs(),
			low.Sub(prevClose).Abs(),
		))
	}

	n := decimal.NewFromInt(int64(period))
	atr := decimal.Zero
	for _, tr := range trueRanges[:period] {
		atr = atr.Add(tr)
	}
	atr = atr.Div(n)
	for _, tr := range trueRanges[period:] {
		atr = atr.Mul(n.Sub(decimal.NewFromInt(1))).Add(tr).Div(n)
	}
	return atr
}
