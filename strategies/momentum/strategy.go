package momentum

import (
	"fmt"
	"time"

	"cryptosim/internal/engine"
	"cryptosim/types"

	"github.com/shopspring/decimal"
)

const (
	Name        = "SimpleMomentumStrategy"
	Description = "Buys when price rose more than threshold over the lookback window, sells when it fell more than threshold"

	// minBars is required for every symbol before any signal is produced.
	minBars = 20
)

type Strategy struct {
	lookback     int
	threshold    decimal.Decimal
	positionSize decimal.Decimal
}

func New() *Strategy {
	return &Strategy{
		lookback:     20,
		threshold:    decimal.RequireFromString("0.02"),
		positionSize: decimal.RequireFromString("0.1"),
	}
}

func Register(r *engine.Registry) error {
	return r.Register(Name, Description, func() engine.Strategy { return New() })
}

func (s *Strategy) Name() string { return Name }

func (s *Strategy) Parameters() map[string]float64 {
	return map[string]float64{
		"lookback_period": float64(s.lookback),
		"threshold":       s.threshold.InexactFloat64(),
		"position_size":   s.positionSize.InexactFloat64(),
	}
}

func (s *Strategy) SetParameters(params map[string]float64) error {
	for k, v := range params {
		switch k {
		case "lookback_period":
			if v < 2 || v != float64(int(v)) {
				return fmt.Errorf("lookback_period must be an integer >= 2, got %v", v)
			}
			s.lookback = int(v)
		case "threshold":
			if v < 0 {
				return fmt.Errorf("threshold must be >= 0, got %v", v)
			}
			s.threshold = decimal.NewFromFloat(v)
		case "position_size":
			if v <= 0 || v > 1 {
				return fmt.Errorf("position_size must be in (0, 1], got %v", v)
			}
			s.positionSize = decimal.NewFromFloat(v)
		default:
			return fmt.Errorf("unknown parameter %q", k)
		}
	}
	return nil
}

// GenerateSignals compares each symbol's last close with the close lookback
// bars back. Nothing is produced until every symbol has minBars bars.
func (s *Strategy) GenerateSignals(_ time.Time, data map[string][]types.Candle, view types.PortfolioView) (map[string]types.Signal, error) {
	signals := make(map[string]types.Signal)
	if len(data) == 0 {
		return signals, nil
	}
	for _, candles := range data {
		if len(candles) < minBars {
			return signals, nil
		}
	}

	for symbol, candles := range data {
		if len(candles) < s.lookback {
			continue
		}
		current := candles[len(candles)-1].Close
		past := candles[len(candles)-s.lookback].Close
		if !past.IsPositive() || !current.IsPositive() {
			signals[symbol] = types.HoldSignal("no valid reference price")
			continue
		}

		momentum := current.Sub(past).Div(past)
		qty := view.TotalValue.Mul(s.positionSize).Div(current)
		reason := fmt.Sprintf("Momentum: %.3f", momentum.InexactFloat64())

		switch {
		case momentum.GreaterThan(s.threshold):
			signals[symbol] = types.BuySignal(qty, reason)
		case momentum.LessThan(s.threshold.Neg()):
			signals[symbol] = types.SellSignal(decimal.Min(qty, view.Quantity(symbol)), reason)
		default:
			signals[symbol] = types.HoldSignal(reason)
		}
	}
	return signals, nil
}
