package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"cryptosim/types"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
)

var (
	ErrNoData     = errors.New("no data for any symbol")
	ErrNoOverlap  = errors.New("symbol data ranges do not overlap")
	ErrStrategy   = errors.New("strategy failed")
	errNoFeedsSet = errors.New("backtester has no feeds")
)

const (
	driverReplay = "replay"
	driverLive   = "live"
)

type backtester struct {
	mu sync.RWMutex

	strategy       Strategy
	interval       types.Interval
	initialCapital decimal.Decimal
	feeds          []*dataFeed
	portfolio      *portfolio
	ledger         *ledger
	executor       *executor
	benchmark      *benchmarkTracker
	history        []types.HistoryPoint

	start time.Time
	end   time.Time

	logger   zerolog.Logger
	recorder Recorder
	progress io.Writer
}

func newBacktester(cfg SimulationConfig, strat Strategy, o options, logger zerolog.Logger) *backtester {
	p := newPortfolio(cfg.InitialCapital)
	l := &ledger{}
	return &backtester{
		strategy:       strat,
		interval:       cfg.Interval,
		initialCapital: cfg.InitialCapital,
		portfolio:      p,
		ledger:         l,
		executor:       &executor{portfolio: p, ledger: l, strategy: strat.Name()},
		benchmark:      newBenchmarkTracker(cfg.InitialCapital.InexactFloat64(), cfg.Symbols),
		logger:         logger,
		recorder:       o.recorder,
		progress:       o.progress,
	}
}

// setFeeds installs the loaded data and computes the replay range.
func (b *backtester) setFeeds(feeds []*dataFeed) error {
	if len(feeds) == 0 {
		return ErrNoData
	}
	start, end := getOverlapRange(feeds)
	if start.After(end) {
		return fmt.Errorf("%w: latest start %s is after earliest end %s",
			ErrNoOverlap, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.feeds = feeds
	b.start = start
	b.end = end
	return nil
}

func (b *backtester) run(ctx context.Context) error {
	if len(b.feeds) == 0 {
		return errNoFeedsSet
	}
	step := b.interval.Duration()
	var bar *progressbar.ProgressBar
	if b.progress != nil {
		bar = initProgressBar(b.progress, int(b.end.Sub(b.start)/step)+1)
	}

	for curTime := b.start; !curTime.After(b.end); curTime = curTime.Add(step) {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.tick(curTime)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return nil
}

// tick runs one replay step: mark, signal, execute, benchmark, snapshot.
func (b *backtester) tick(curTime time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prices := make(map[string]decimal.Decimal, len(b.feeds))
	data := make(map[string][]types.Candle, len(b.feeds))
	for _, f := range b.feeds {
		f.advance(curTime)
		data[f.symbol] = f.window()
		if px, ok := f.priceAt(curTime); ok {
			prices[f.symbol] = px
		}
	}

	b.portfolio.mark(prices, curTime)

	signals, err := generateSignals(b.strategy, curTime, data, b.portfolio.snapshot())
	if err != nil {
		b.logger.Warn().Err(err).Time("tick", curTime).Msg("strategy error, no signals this tick")
		b.recorder.ObserveStrategyError(driverReplay)
	}
	executeSignals(b.executor, signals, prices, curTime, b.logger, b.recorder, driverReplay)
	b.portfolio.revalue()

	bench := b.benchmark.update(curTime, floatPrices(prices))
	b.history = append(b.history, b.portfolio.historyPoint(bench))
	b.recorder.ObserveTick(driverReplay, b.portfolio.snapshot(), b.portfolio.drawdown.InexactFloat64())
}

// generateSignals calls the strategy, converting a panic into ErrStrategy.
func generateSignals(s Strategy, ts time.Time, data map[string][]types.Candle, view types.PortfolioView) (signals map[string]types.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			signals = nil
			err = fmt.Errorf("%w: panic: %v", ErrStrategy, r)
		}
	}()
	signals, err = s.GenerateSignals(ts, data, view)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStrategy, err)
	}
	return signals, nil
}

// executeSignals fills signals for symbols priced this tick, in symbol order.
func executeSignals(
	ex *executor,
	signals map[string]types.Signal,
	prices map[string]decimal.Decimal,
	ts time.Time,
	logger zerolog.Logger,
	recorder Recorder,
	driver string,
) {
	symbols := make([]string, 0, len(signals))
	for sym := range signals {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		px, ok := prices[sym]
		if !ok {
			continue
		}
		trade, err := ex.execute(sym, signals[sym], px, ts)
		if err != nil {
			logger.Warn().Err(err).Str("symbol", sym).Time("tick", ts).Msg("signal rejected")
			continue
		}
		if trade == nil {
			continue
		}
		logger.Debug().
			Str("symbol", trade.Symbol).
			Str("side", string(trade.Side)).
			Str("qty", trade.Quantity.String()).
			Str("price", trade.Price.String()).
			Str("reason", signals[sym].Reason).
			Time("tick", ts).
			Msg("trade executed")
		recorder.ObserveTrade(driver, *trade)
	}
}

func floatPrices(prices map[string]decimal.Decimal) map[string]float64 {
	out := make(map[string]float64, len(prices))
	for sym, px := range prices {
		out[sym] = px.InexactFloat64()
	}
	return out
}

func (b *backtester) snapshot() types.PortfolioView {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.portfolio.snapshot()
}

func (b *backtester) performance() Performance {
	b.mu.RLock()
	defer b.mu.RUnlock()
	values := make([]float64, len(b.history))
	for i, h := range b.history {
		values[i] = h.TotalValue.InexactFloat64()
	}
	return Analyze(AnalysisInput{
		InitialCapital:  b.initialCapital.InexactFloat64(),
		FinalValue:      b.portfolio.totalValue.InexactFloat64(),
		PortfolioValues: values,
		BenchmarkValues: b.benchmark.valuesCopy(),
		Trades:          b.ledger.all(),
		MaxDrawdown:     b.portfolio.maxDrawdown.InexactFloat64(),
	})
}

func (b *backtester) recentTrades(k int) []types.Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ledger.recent(k)
}

func (b *backtester) trades() []types.Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ledger.all()
}

func (b *backtester) historyCopy() []types.HistoryPoint {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.HistoryPoint, len(b.history))
	copy(out, b.history)
	return out
}

func (b *backtester) timeRange() (time.Time, time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.start, b.end
}

func initProgressBar(w io.Writer, maxTicks int) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Backtesting in progress..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
