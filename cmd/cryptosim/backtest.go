package main

import (
	"fmt"
	"io"
	"strings"

	"cryptosim/internal/engine"
	"cryptosim/types"

	"github.com/spf13/cobra"
)

func newBacktestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay historical candles through a strategy",
		Long:  "Replays stored candles for the configured symbols on a fixed interval and prints a performance report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runBacktest(cmd)
		},
	}
	f := cmd.Flags()
	f.String("strategy", "", "Strategy name (see `cryptosim strategies`)")
	f.StringSlice("symbols", nil, "Comma-separated symbols, e.g. BTC/USDT,ETH/USDT")
	f.String("start", "", "Start date (2006-01-02 or RFC 3339)")
	f.String("end", "", "End date (2006-01-02 or RFC 3339); a plain date includes that whole day")
	f.String("interval", "", "Bar interval (1m, 5m, 15m, 1h, 4h, 1d, ...)")
	f.Float64("capital", 0, "Initial capital")
	f.String("data-source", "", "Candle source (postgres|csv)")
	f.String("data-dir", "", "Directory of <SYMBOL>.csv files for the csv source")
	f.String("csv-out", "", "Write trades.csv and portfolio_history.csv into this directory")
	f.Bool("progress", false, "Show a progress bar")
	f.Int("trades", -1, "Recent trades to print")
	return cmd
}

func (a *app) applyBacktestFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	s := &a.cfg.Simulation
	if f.Changed("strategy") {
		s.Strategy, _ = f.GetString("strategy")
	}
	if f.Changed("symbols") {
		s.Symbols, _ = f.GetStringSlice("symbols")
	}
	if f.Changed("start") {
		s.Start, _ = f.GetString("start")
	}
	if f.Changed("end") {
		s.End, _ = f.GetString("end")
	}
	if f.Changed("interval") {
		s.Interval, _ = f.GetString("interval")
	}
	if f.Changed("capital") {
		s.InitialCapital, _ = f.GetFloat64("capital")
	}
	if f.Changed("data-source") {
		a.cfg.Data.Source, _ = f.GetString("data-source")
	}
	if f.Changed("data-dir") {
		a.cfg.Data.CSVDir, _ = f.GetString("data-dir")
	}
	if f.Changed("csv-out") {
		a.cfg.Report.CSVDir, _ = f.GetString("csv-out")
	}
	if f.Changed("progress") {
		a.cfg.Report.Progress, _ = f.GetBool("progress")
	}
	if f.Changed("trades") {
		s.RecentTrades, _ = f.GetInt("trades")
	}
}

func (a *app) runBacktest(cmd *cobra.Command) error {
	a.applyBacktestFlags(cmd)
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	simCfg, err := a.cfg.SimulationConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []engine.Option{engine.WithLogger(a.logger)}
	if a.cfg.Report.Progress {
		opts = append(opts, engine.WithProgress(cmd.ErrOrStderr()))
	}
	e, err := engine.NewEngine(simCfg, a.registry, store, opts...)
	if err != nil {
		return err
	}
	runErr := e.Run(ctx)
	if runErr != nil && e.Status() != engine.StatusStopped {
		return runErr
	}

	out := cmd.OutOrStdout()
	start, end := e.Range()
	engine.PrintReport(out, start, end, e.Portfolio(), e.Performance())
	printTrades(out, e.RecentTrades(a.cfg.Simulation.RecentTrades))

	if dir := a.cfg.Report.CSVDir; dir != "" {
		if err := e.ExportCSV(dir); err != nil {
			return err
		}
		a.logger.Info().Str("dir", dir).Msg("csv report written")
	}
	return runErr
}

func printTrades(w io.Writer, trades []types.Trade) {
	if len(trades) == 0 {
		return
	}
	fmt.Fprintf(w, "\nRecent trades (%d)\n", len(trades))
	for _, t := range trades {
		fmt.Fprintf(w, "  %s  %-4s %-12s %s @ %s = %s\n",
			t.Timestamp.Format("2006-01-02 15:04"),
			strings.ToUpper(string(t.Side)),
			t.Symbol,
			t.Quantity.String(),
			t.Price.StringFixed(2),
			t.Value.StringFixed(2),
		)
	}
}
