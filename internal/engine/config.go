package engine

import (
	"errors"
	"fmt"
	"time"

	"cryptosim/types"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidConfig    = errors.New("invalid simulation config")
	ErrUnknownStrategy  = fmt.Errorf("%w: unknown strategy", ErrInvalidConfig)
	ErrNoSymbols        = fmt.Errorf("%w: no symbols", ErrInvalidConfig)
	ErrInvalidDateRange = fmt.Errorf("%w: start must be before end", ErrInvalidConfig)
	ErrFutureDateRange  = fmt.Errorf("%w: date range starts in the future", ErrInvalidConfig)
	ErrInvalidCapital   = fmt.Errorf("%w: initial capital must be positive", ErrInvalidConfig)
	ErrInvalidInterval  = fmt.Errorf("%w: unsupported interval", ErrInvalidConfig)
)

const (
	DefaultRecentTrades = 10
	DefaultHistorySize  = 1000
	quantityPrecision   = 8
)

// SimulationConfig describes one scheduled replay run.
type SimulationConfig struct {
	Strategy       string
	StrategyParams map[string]float64
	Symbols        []string
	InitialCapital decimal.Decimal
	Start          time.Time
	End            time.Time
	Interval       types.Interval
}

// Validate checks the config against now. An empty interval defaults to Hour.
func (c *SimulationConfig) Validate(now time.Time) error {
	if c.Strategy == "" {
		return fmt.Errorf("%w: empty name", ErrUnknownStrategy)
	}
	if err := validateSymbols(c.Symbols); err != nil {
		return err
	}
	if !c.InitialCapital.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidCapital, c.InitialCapital)
	}
	if c.Start.IsZero() || c.End.IsZero() || !c.Start.Before(c.End) {
		return fmt.Errorf("%w: %s - %s", ErrInvalidDateRange, c.Start.Format(time.RFC3339), c.End.Format(time.RFC3339))
	}
	if c.Start.After(now) {
		return fmt.Errorf("%w: %s", ErrFutureDateRange, c.Start.Format(time.RFC3339))
	}
	if c.Interval == "" {
		c.Interval = types.Hour
	}
	if c.Interval.Duration() <= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidInterval, c.Interval)
	}
	return nil
}

// LiveConfig describes one paper-trading session.
type LiveConfig struct {
	Strategy       string
	StrategyParams map[string]float64
	Symbols        []string
	InitialCapital decimal.Decimal
	HistorySize    int
}

func (c *LiveConfig) Validate() error {
	if c.Strategy == "" {
		return fmt.Errorf("%w: empty name", ErrUnknownStrategy)
	}
	if err := validateSymbols(c.Symbols); err != nil {
		return err
	}
	if !c.InitialCapital.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidCapital, c.InitialCapital)
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	return nil
}

func validateSymbols(symbols []string) error {
	if len(symbols) == 0 {
		return ErrNoSymbols
	}
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if s == "" {
			return fmt.Errorf("%w: empty symbol", ErrNoSymbols)
		}
		if _, ok := seen[s]; ok {
			return fmt.Errorf("%w: duplicate symbol %s", ErrInvalidConfig, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}
