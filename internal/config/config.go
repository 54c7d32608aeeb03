// Package config loads cryptosim settings from a YAML file, an optional .env
// file and CRYPTOSIM_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cryptosim/internal/engine"
	"cryptosim/types"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CRYPTOSIM_"

const (
	SourcePostgres = "postgres"
	SourceCSV      = "csv"

	FeedWebSocket = "websocket"
	FeedPoll      = "poll"

	FormatConsole = "console"
	FormatJSON    = "json"
)

var (
	ErrInvalid = errors.New("invalid configuration")
	ErrEnv     = errors.New("invalid environment override")
)

type Config struct {
	Simulation Simulation `yaml:"simulation"`
	Data       Data       `yaml:"data"`
	Live       Live       `yaml:"live"`
	Metrics    Metrics    `yaml:"metrics"`
	Log        Log        `yaml:"log"`
	Report     Report     `yaml:"report"`
}

type Simulation struct {
	Strategy       string             `yaml:"strategy"`
	StrategyParams map[string]float64 `yaml:"strategy_params"`
	Symbols        []string           `yaml:"symbols"`
	InitialCapital float64            `yaml:"initial_capital"`
	// Start and End are RFC 3339 timestamps or plain dates (2006-01-02, UTC).
	// A plain End date covers that whole day.
	Start        string `yaml:"start"`
	End          string `yaml:"end"`
	Interval     string `yaml:"interval"`
	RecentTrades int    `yaml:"recent_trades"`
}

type Data struct {
	Source      string `yaml:"source"`
	DatabaseURL string `yaml:"database_url"`
	CSVDir      string `yaml:"csv_dir"`
}

type Live struct {
	Feed         string        `yaml:"feed"`
	WSURL        string        `yaml:"ws_url"`
	RESTURL      string        `yaml:"rest_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	HistorySize  int           `yaml:"history_size"`
	SeedDays     int           `yaml:"seed_days"`
}

type Metrics struct {
	Addr string `yaml:"addr"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Report struct {
	CSVDir   string `yaml:"csv_dir"`
	Progress bool   `yaml:"progress"`
}

func Default() Config {
	return Config{
		Simulation: Simulation{
			Strategy:       "SimpleMomentumStrategy",
			InitialCapital: 10000,
			Interval:       "1h",
			RecentTrades:   engine.DefaultRecentTrades,
		},
		Data: Data{
			Source: SourceCSV,
			CSVDir: "data",
		},
		Live: Live{
			Feed:         FeedWebSocket,
			PollInterval: time.Second,
			HistorySize:  engine.DefaultHistorySize,
			SeedDays:     30,
		},
		Log: Log{
			Level:  "info",
			Format: FormatConsole,
		},
	}
}

// Load reads path over the defaults, then applies .env and the environment.
// An empty path skips the file; a missing .env is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	_ = godotenv.Load()
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with CRYPTOSIM_* variables found by lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("STRATEGY", &cfg.Simulation.Strategy)
	str("START", &cfg.Simulation.Start)
	str("END", &cfg.Simulation.End)
	str("INTERVAL", &cfg.Simulation.Interval)
	str("DATA_SOURCE", &cfg.Data.Source)
	str("DATABASE_URL", &cfg.Data.DatabaseURL)
	str("CSV_DIR", &cfg.Data.CSVDir)
	str("LIVE_FEED", &cfg.Live.Feed)
	str("WS_URL", &cfg.Live.WSURL)
	str("REST_URL", &cfg.Live.RESTURL)
	str("METRICS_ADDR", &cfg.Metrics.Addr)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("REPORT_CSV_DIR", &cfg.Report.CSVDir)

	if v, ok := lookup(envPrefix + "SYMBOLS"); ok && v != "" {
		cfg.Simulation.Symbols = splitList(v)
	}
	if v, ok := lookup(envPrefix + "INITIAL_CAPITAL"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %sINITIAL_CAPITAL=%q", ErrEnv, envPrefix, v)
		}
		cfg.Simulation.InitialCapital = f
	}
	if v, ok := lookup(envPrefix + "POLL_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %sPOLL_INTERVAL=%q", ErrEnv, envPrefix, v)
		}
		cfg.Live.PollInterval = d
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"RECENT_TRADES", &cfg.Simulation.RecentTrades},
		{"HISTORY_SIZE", &cfg.Live.HistorySize},
		{"SEED_DAYS", &cfg.Live.SeedDays},
	}
	for _, e := range ints {
		v, ok := lookup(envPrefix + e.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q", ErrEnv, envPrefix, e.name, v)
		}
		*e.dst = n
	}
	if v, ok := lookup(envPrefix + "REPORT_PROGRESS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %sREPORT_PROGRESS=%q", ErrEnv, envPrefix, v)
		}
		cfg.Report.Progress = b
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the settings shared by every command. Simulation fields are
// checked by the engine when a run is built.
func (c Config) Validate() error {
	switch c.Data.Source {
	case SourcePostgres:
		if c.Data.DatabaseURL == "" {
			return fmt.Errorf("%w: data.database_url is required for source %q", ErrInvalid, SourcePostgres)
		}
	case SourceCSV:
		if c.Data.CSVDir == "" {
			return fmt.Errorf("%w: data.csv_dir is required for source %q", ErrInvalid, SourceCSV)
		}
	default:
		return fmt.Errorf("%w: data.source %q (want %s or %s)", ErrInvalid, c.Data.Source, SourcePostgres, SourceCSV)
	}
	switch c.Live.Feed {
	case FeedWebSocket, FeedPoll:
	default:
		return fmt.Errorf("%w: live.feed %q (want %s or %s)", ErrInvalid, c.Live.Feed, FeedWebSocket, FeedPoll)
	}
	if c.Live.PollInterval <= 0 {
		return fmt.Errorf("%w: live.poll_interval must be positive", ErrInvalid)
	}
	if c.Live.HistorySize < 0 || c.Live.SeedDays < 0 || c.Simulation.RecentTrades < 0 {
		return fmt.Errorf("%w: sizes must not be negative", ErrInvalid)
	}
	switch c.Log.Format {
	case FormatConsole, FormatJSON:
	default:
		return fmt.Errorf("%w: log.format %q (want %s or %s)", ErrInvalid, c.Log.Format, FormatConsole, FormatJSON)
	}
	if _, err := types.ParseInterval(c.Simulation.Interval); c.Simulation.Interval != "" && err != nil {
		return fmt.Errorf("%w: simulation.interval: %w", ErrInvalid, err)
	}
	return nil
}

// SimulationConfig converts the simulation section for the replay engine.
func (c Config) SimulationConfig() (engine.SimulationConfig, error) {
	s := c.Simulation
	out := engine.SimulationConfig{
		Strategy:       s.Strategy,
		StrategyParams: s.StrategyParams,
		Symbols:        s.Symbols,
		InitialCapital: decimal.NewFromFloat(s.InitialCapital),
	}
	if s.Interval != "" {
		iv, err := types.ParseInterval(s.Interval)
		if err != nil {
			return out, fmt.Errorf("%w: %w", engine.ErrInvalidInterval, err)
		}
		out.Interval = iv
	}
	var err error
	if out.Start, err = parseTime(s.Start, false); err != nil {
		return out, fmt.Errorf("%w: start: %w", engine.ErrInvalidDateRange, err)
	}
	if out.End, err = parseTime(s.End, true); err != nil {
		return out, fmt.Errorf("%w: end: %w", engine.ErrInvalidDateRange, err)
	}
	return out, nil
}

// LiveConfig converts the simulation and live sections for paper trading.
func (c Config) LiveConfig() engine.LiveConfig {
	return engine.LiveConfig{
		Strategy:       c.Simulation.Strategy,
		StrategyParams: c.Simulation.StrategyParams,
		Symbols:        c.Simulation.Symbols,
		InitialCapital: decimal.NewFromFloat(c.Simulation.InitialCapital),
		HistorySize:    c.Live.HistorySize,
	}
}

// parseTime moves a plain date to the last instant of that day when endOfDay
// is set.
func parseTime(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("not set")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil || !endOfDay {
		return t, err
	}
	return t.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}
