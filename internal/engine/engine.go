package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"cryptosim/internal/indicators"
	"cryptosim/internal/repository"
	"cryptosim/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrAlreadyStarted = errors.New("simulation already started")

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

type Option func(*options)

type options struct {
	id       string
	logger   zerolog.Logger
	recorder Recorder
	clock    func() time.Time
	progress io.Writer
}

func defaultOptions() options {
	return options{
		logger:   zerolog.Nop(),
		recorder: nopRecorder{},
		clock:    time.Now,
	}
}

func WithID(id string) Option { return func(o *options) { o.id = id } }

func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.logger = l } }

func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithClock replaces time.Now for date validation and live timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithProgress renders a replay progress bar to w.
func WithProgress(w io.Writer) Option { return func(o *options) { o.progress = w } }

// Engine runs one scheduled replay and exposes its state while and after it
// runs. An Engine is single use.
type Engine struct {
	mu     sync.RWMutex
	id     string
	config SimulationConfig
	store  DataStore
	opts   options
	logger zerolog.Logger

	status     Status
	err        error
	startedAt  time.Time
	finishedAt time.Time

	backtester *backtester
}

// NewEngine validates cfg and resolves its strategy. Config errors are
// returned here; the simulation never starts.
func NewEngine(cfg SimulationConfig, registry *Registry, store DataStore, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(o.clock()); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, fmt.Errorf("%w: no registry", ErrUnknownStrategy)
	}
	strat, err := registry.New(cfg.Strategy, cfg.StrategyParams)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: no data store", ErrInvalidConfig)
	}

	id := o.id
	if id == "" {
		id = uuid.NewString()
	}
	logger := o.logger.With().Str("simulation_id", id).Str("strategy", strat.Name()).Logger()

	return &Engine{
		id:         id,
		config:     cfg,
		store:      store,
		opts:       o,
		logger:     logger,
		status:     StatusPending,
		backtester: newBacktester(cfg, strat, o, logger),
	}, nil
}

// Run loads data and replays it. It blocks until the replay finishes, fails
// or ctx is cancelled; a cancelled run ends in StatusStopped.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.status != StatusPending {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.status = StatusRunning
	e.startedAt = e.opts.clock()
	e.mu.Unlock()

	err := e.run(ctx)
	e.finish(err)
	return err
}

func (e *Engine) run(ctx context.Context) error {
	feeds, err := e.loadData(ctx)
	if err != nil {
		return err
	}
	if err := e.backtester.setFeeds(feeds); err != nil {
		return err
	}
	start, end := e.backtester.timeRange()
	e.logger.Info().
		Strs("symbols", e.config.Symbols).
		Time("start", start).
		Time("end", end).
		Str("interval", string(e.config.Interval)).
		Msg("replay started")
	return e.backtester.run(ctx)
}

func (e *Engine) finish(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finishedAt = e.opts.clock()
	e.err = err
	switch {
	case err == nil:
		e.status = StatusCompleted
		e.logger.Info().Int("trades", len(e.backtester.trades())).Msg("replay completed")
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		e.status = StatusStopped
		e.logger.Info().Err(err).Msg("replay stopped")
	default:
		e.status = StatusFailed
		e.logger.Error().Err(err).Msg("replay failed")
	}
}

// loadData fetches and augments every symbol. Symbols without data are
// skipped; the run fails only when none has any.
func (e *Engine) loadData(ctx context.Context) ([]*dataFeed, error) {
	var feeds []*dataFeed
	for _, sym := range e.config.Symbols {
		candles, err := e.store.LoadCandles(ctx, sym, e.config.Interval, e.config.Start, e.config.End)
		if errors.Is(err, repository.ErrNoCandles) || errors.Is(err, repository.ErrAssetNotFound) {
			e.logger.Warn().Err(err).Str("symbol", sym).Msg("no data, symbol skipped")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", sym, err)
		}
		if len(candles) == 0 {
			e.logger.Warn().Str("symbol", sym).Msg("no data, symbol skipped")
			continue
		}
		feeds = append(feeds, newDataFeed(sym, indicators.Augment(candles)))
	}
	if len(feeds) == 0 {
		return nil, ErrNoData
	}
	return feeds, nil
}

func (e *Engine) ID() string { return e.id }

func (e *Engine) Config() SimulationConfig { return e.config }

func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Err is the error that ended the run, nil unless failed or stopped.
func (e *Engine) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.err
}

// Range is the replayed interval, zero before data is loaded.
func (e *Engine) Range() (time.Time, time.Time) {
	return e.backtester.timeRange()
}

func (e *Engine) Portfolio() types.PortfolioView {
	return e.backtester.snapshot()
}

func (e *Engine) Performance() Performance {
	return e.backtester.performance()
}

func (e *Engine) RecentTrades(k int) []types.Trade {
	return e.backtester.recentTrades(k)
}

func (e *Engine) Trades() []types.Trade {
	return e.backtester.trades()
}

func (e *Engine) History() []types.HistoryPoint {
	return e.backtester.historyCopy()
}
