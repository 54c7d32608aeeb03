package engine

import (
	"context"
	"time"

	"cryptosim/types"
)

// DataStore loads the bars of one symbol for a replay.
type DataStore interface {
	LoadCandles(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Candle, error)
}

// Strategy decides per-symbol signals for one tick. data holds, per symbol,
// every bar at or before ts, oldest first; implementations must not modify it.
// Symbols absent from the result are treated as hold.
type Strategy interface {
	Name() string
	GenerateSignals(ts time.Time, data map[string][]types.Candle, view types.PortfolioView) (map[string]types.Signal, error)
}

// Parameterized strategies expose tunable numeric parameters.
type Parameterized interface {
	Parameters() map[string]float64
	SetParameters(params map[string]float64) error
}

// Recorder receives driver events. metrics.Collector implements it.
type Recorder interface {
	ObserveTick(driver string, view types.PortfolioView, drawdown float64)
	ObserveTrade(driver string, trade types.Trade)
	ObserveStrategyError(driver string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTick(string, types.PortfolioView, float64) {}
func (nopRecorder) ObserveTrade(string, types.Trade)                 {}
func (nopRecorder) ObserveStrategyError(string)                      {}
