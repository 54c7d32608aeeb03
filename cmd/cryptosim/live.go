package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cryptosim/internal/config"
	"cryptosim/internal/engine"
	"cryptosim/internal/feed"
	"cryptosim/internal/metrics"
	"cryptosim/internal/repository"
	"cryptosim/types"

	"github.com/spf13/cobra"
)

const statusInterval = time.Minute

func newLiveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Paper-trade a strategy against live exchange prices",
		Long:  "Streams live prices into a simulated portfolio until interrupted, then prints a report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runLive(cmd)
		},
	}
	f := cmd.Flags()
	f.String("strategy", "", "Strategy name")
	f.StringSlice("symbols", nil, "Comma-separated symbols")
	f.Float64("capital", 0, "Initial capital")
	f.String("feed", "", "Price feed (websocket|poll)")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	f.Int("seed-days", -1, "Days of stored history to seed indicators with (0 disables)")
	return cmd
}

func (a *app) applyLiveFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("strategy") {
		a.cfg.Simulation.Strategy, _ = f.GetString("strategy")
	}
	if f.Changed("symbols") {
		a.cfg.Simulation.Symbols, _ = f.GetStringSlice("symbols")
	}
	if f.Changed("capital") {
		a.cfg.Simulation.InitialCapital, _ = f.GetFloat64("capital")
	}
	if f.Changed("feed") {
		a.cfg.Live.Feed, _ = f.GetString("feed")
	}
	if f.Changed("metrics-addr") {
		a.cfg.Metrics.Addr, _ = f.GetString("metrics-addr")
	}
	if f.Changed("seed-days") {
		a.cfg.Live.SeedDays, _ = f.GetInt("seed-days")
	}
}

func (a *app) runLive(cmd *cobra.Command) error {
	a.applyLiveFlags(cmd)
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()

	collector := metrics.NewCollector()
	sim, err := engine.NewLiveSimulator(a.cfg.LiveConfig(), a.registry,
		engine.WithLogger(a.logger),
		engine.WithRecorder(collector),
	)
	if err != nil {
		return err
	}
	logger := a.logger.With().Str("simulation_id", sim.ID()).Logger()

	if a.cfg.Live.SeedDays > 0 {
		a.seed(ctx, sim)
	}

	if addr := a.cfg.Metrics.Addr; addr != "" {
		srv := serveMetrics(addr, collector, a)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var updates <-chan types.PriceUpdate
	switch a.cfg.Live.Feed {
	case config.FeedPoll:
		src := feed.NewBinanceTickerSource(a.cfg.Live.RESTURL, nil)
		updates = feed.NewPollingFeed(src, a.cfg.Simulation.Symbols, a.cfg.Live.PollInterval, logger).Subscribe(ctx)
	default:
		updates = feed.NewWebSocketFeed(a.cfg.Live.WSURL, a.cfg.Simulation.Symbols, logger).Subscribe(ctx)
	}

	go func() {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				view := sim.Portfolio()
				logger.Info().
					Str("total_value", view.TotalValue.StringFixed(2)).
					Str("cash", view.Cash.StringFixed(2)).
					Int("positions", len(view.Positions)).
					Msg("portfolio")
			}
		}
	}()

	err = sim.Run(ctx, updates)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	out := cmd.OutOrStdout()
	var start, end time.Time
	if h := sim.History(); len(h) > 0 {
		start, end = h[0].Time, h[len(h)-1].Time
	}
	engine.PrintReport(out, start, end, sim.Portfolio(), sim.Performance())
	printTrades(out, sim.RecentTrades(a.cfg.Simulation.RecentTrades))
	return nil
}

// seed loads the last SeedDays of stored bars per symbol. Missing data only
// leaves that symbol's indicators cold.
func (a *app) seed(ctx context.Context, sim *engine.LiveSimulator) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("history store unavailable, starting cold")
		return
	}
	defer closeStore()

	interval, err := types.ParseInterval(a.cfg.Simulation.Interval)
	if err != nil {
		interval = types.Hour
	}
	end := time.Now().UTC()
	start := end.Add(-time.Duration(a.cfg.Live.SeedDays) * 24 * time.Hour)
	for _, sym := range a.cfg.Simulation.Symbols {
		candles, err := store.LoadCandles(ctx, sym, interval, start, end)
		if errors.Is(err, repository.ErrNoCandles) || errors.Is(err, repository.ErrAssetNotFound) {
			a.logger.Warn().Str("symbol", sym).Msg("no history to seed")
			continue
		}
		if err != nil {
			a.logger.Warn().Err(err).Str("symbol", sym).Msg("seeding failed")
			continue
		}
		sim.Seed(sym, candles)
	}
}

func serveMetrics(addr string, collector *metrics.Collector, a *app) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.logger.Info().Str("addr", addr).Msg("metrics listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return srv
}
