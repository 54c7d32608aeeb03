package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"cryptosim/internal/indicators"
	"cryptosim/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var ErrStopped = errors.New("live simulator stopped")

// LiveSimulator paper-trades a strategy against a stream of price updates.
// Updates are processed one at a time; histories are bounded rolling windows.
type LiveSimulator struct {
	mu sync.Mutex

	id             string
	strategy       Strategy
	symbols        []string
	initialCapital decimal.Decimal

	portfolio *portfolio
	ledger    *ledger
	executor  *executor
	history   *ring[types.HistoryPoint]
	prices    map[string]*ring[types.PricePoint]
	candles   map[string]*ring[types.Candle]

	running  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}

	clock    func() time.Time
	logger   zerolog.Logger
	recorder Recorder
}

func NewLiveSimulator(cfg LiveConfig, registry *Registry, opts ...Option) (*LiveSimulator, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, fmt.Errorf("%w: no registry", ErrUnknownStrategy)
	}
	strat, err := registry.New(cfg.Strategy, cfg.StrategyParams)
	if err != nil {
		return nil, err
	}

	id := o.id
	if id == "" {
		id = uuid.NewString()
	}
	p := newPortfolio(cfg.InitialCapital)
	l := &ledger{}
	s := &LiveSimulator{
		id:             id,
		strategy:       strat,
		symbols:        cfg.Symbols,
		initialCapital: cfg.InitialCapital,
		portfolio:      p,
		ledger:         l,
		executor:       &executor{portfolio: p, ledger: l, strategy: strat.Name()},
		history:        newRing[types.HistoryPoint](cfg.HistorySize),
		prices:         make(map[string]*ring[types.PricePoint], len(cfg.Symbols)),
		candles:        make(map[string]*ring[types.Candle], len(cfg.Symbols)),
		stopCh:         make(chan struct{}),
		clock:          o.clock,
		logger:         o.logger.With().Str("simulation_id", id).Str("strategy", strat.Name()).Logger(),
		recorder:       o.recorder,
	}
	for _, sym := range cfg.Symbols {
		s.prices[sym] = newRing[types.PricePoint](cfg.HistorySize)
		s.candles[sym] = newRing[types.Candle](cfg.HistorySize)
	}
	return s, nil
}

// Seed loads recent bars for symbol into the indicator cache. Only the newest
// HistorySize bars are kept.
func (s *LiveSimulator) Seed(symbol string, candles []types.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cache, ok := s.candles[symbol]
	if !ok {
		return
	}
	sorted := make([]types.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	for _, c := range sorted {
		c.Indicators = nil
		cache.push(c)
	}
	s.logger.Debug().Str("symbol", symbol).Int("bars", len(sorted)).Msg("indicator cache seeded")
}

// Start marks the simulator running so OnPrices accepts updates.
func (s *LiveSimulator) Start() error {
	if s.stopped.Load() {
		return ErrStopped
	}
	if s.running.CompareAndSwap(false, true) {
		s.logger.Info().Strs("symbols", s.symbols).Msg("live simulation started")
	}
	return nil
}

// Run consumes updates until ctx is done, the channel closes or Stop is
// called. Each update is one tick.
func (s *LiveSimulator) Run(ctx context.Context, updates <-chan types.PriceUpdate) error {
	if err := s.Start(); err != nil {
		return err
	}
	defer s.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			s.OnPrices(u.Time, u.Prices)
		}
	}
}

// Stop halts the simulator. The tick in progress completes. Safe to call more
// than once and from any goroutine.
func (s *LiveSimulator) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		s.running.Store(false)
		close(s.stopCh)
		s.logger.Info().Msg("live simulation stopped")
	})
}

func (s *LiveSimulator) IsRunning() bool {
	return s.running.Load()
}

// OnPrices processes one price update and reports whether it was applied.
// Updates are ignored unless the simulator is running. Prices for symbols
// outside the configured set are ignored. A zero ts uses the clock.
func (s *LiveSimulator) OnPrices(ts time.Time, prices map[string]decimal.Decimal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return false
	}
	if ts.IsZero() {
		ts = s.clock()
	}

	current := make(map[string]decimal.Decimal, len(prices))
	for sym, px := range prices {
		if _, ok := s.prices[sym]; !ok || !px.IsPositive() {
			continue
		}
		current[sym] = px
		s.prices[sym].push(types.PricePoint{Time: ts, Price: px})
		s.candles[sym].push(types.FlatCandle(sym, px, ts))
	}

	s.portfolio.mark(current, ts)

	data := make(map[string][]types.Candle, len(s.candles))
	for sym, cache := range s.candles {
		if cache.len() == 0 {
			continue
		}
		data[sym] = indicators.Augment(cache.values())
	}

	signals, err := generateSignals(s.strategy, ts, data, s.portfolio.snapshot())
	if err != nil {
		s.logger.Warn().Err(err).Time("tick", ts).Msg("strategy error, no signals this tick")
		s.recorder.ObserveStrategyError(driverLive)
	}
	executeSignals(s.executor, signals, current, ts, s.logger, s.recorder, driverLive)
	s.portfolio.revalue()

	s.history.push(s.portfolio.historyPoint(0))
	s.recorder.ObserveTick(driverLive, s.portfolio.snapshot(), s.portfolio.drawdown.InexactFloat64())
	return true
}

func (s *LiveSimulator) ID() string { return s.id }

func (s *LiveSimulator) Portfolio() types.PortfolioView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portfolio.snapshot()
}

func (s *LiveSimulator) Performance() Performance {
	s.mu.Lock()
	defer s.mu.Unlock()
	points := s.history.values()
	values := make([]float64, len(points))
	for i, h := range points {
		values[i] = h.TotalValue.InexactFloat64()
	}
	perf := Analyze(AnalysisInput{
		InitialCapital:  s.initialCapital.InexactFloat64(),
		FinalValue:      s.portfolio.totalValue.InexactFloat64(),
		PortfolioValues: values,
		Trades:          s.ledger.all(),
		MaxDrawdown:     s.portfolio.maxDrawdown.InexactFloat64(),
	})
	perf.Running = s.running.Load()
	return perf
}

func (s *LiveSimulator) RecentTrades(k int) []types.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.recent(k)
}

func (s *LiveSimulator) Trades() []types.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.all()
}

// History returns the retained portfolio history, oldest first.
func (s *LiveSimulator) History() []types.HistoryPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.values()
}

// PriceHistory returns the retained prices of symbol, oldest first.
func (s *LiveSimulator) PriceHistory(symbol string) []types.PricePoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.prices[symbol]
	if !ok {
		return nil
	}
	return r.values()
}
