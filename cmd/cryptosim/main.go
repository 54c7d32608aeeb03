package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cryptosim/internal/config"
	"cryptosim/internal/engine"
	"cryptosim/internal/logging"
	"cryptosim/internal/repository"
	"cryptosim/strategies/donchian"
	"cryptosim/strategies/momentum"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const version = "v0.3.0"

// app is the state shared by every subcommand, filled in by the root
// command's pre-run.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg      config.Config
	logger   zerolog.Logger
	registry *engine.Registry
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "cryptosim",
		Short:         "Backtest and paper-trade crypto strategies",
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format (console|json)")

	rootCmd.AddCommand(newBacktestCmd(a), newLiveCmd(a), newStrategiesCmd(a))
	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Out: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger

	a.registry = engine.NewRegistry()
	for _, register := range []func(*engine.Registry) error{momentum.Register, donchian.Register} {
		if err := register(a.registry); err != nil {
			return err
		}
	}
	return nil
}

// openStore returns the configured candle source and its cleanup.
func (a *app) openStore(ctx context.Context) (engine.DataStore, func(), error) {
	switch a.cfg.Data.Source {
	case config.SourcePostgres:
		db, err := repository.NewDatabase(ctx, a.cfg.Data.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return repository.NewCSVStore(a.cfg.Data.CSVDir), func() {}, nil
	}
}
