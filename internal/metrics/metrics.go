// Package metrics exposes simulation driver activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"cryptosim/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cryptosim"

// Collector records driver events. It implements engine.Recorder.
type Collector struct {
	registry *prometheus.Registry

	Ticks          *prometheus.CounterVec
	Trades         *prometheus.CounterVec
	TradedValue    *prometheus.CounterVec
	StrategyErrors *prometheus.CounterVec

	PortfolioValue *prometheus.GaugeVec
	Cash           *prometheus.GaugeVec
	Drawdown       *prometheus.GaugeVec
	RealizedPnL    *prometheus.GaugeVec
	UnrealizedPnL  *prometheus.GaugeVec
	Positions      *prometheus.GaugeVec
}

// NewCollector creates the collectors on a private registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		Ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticks_total",
				Help:      "Simulation steps processed",
			},
			[]string{"driver"},
		),
		Trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Executed trades by side",
			},
			[]string{"driver", "side"},
		),
		TradedValue: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "traded_value_total",
				Help:      "Notional value of executed trades by side",
			},
			[]string{"driver", "side"},
		),
		StrategyErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "strategy_errors_total",
				Help:      "Strategy failures recovered during a step",
			},
			[]string{"driver"},
		),

		PortfolioValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "portfolio_value",
				Help:      "Total portfolio value (cash plus marked positions)",
			},
			[]string{"driver"},
		),
		Cash: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "portfolio_cash",
				Help:      "Uninvested cash",
			},
			[]string{"driver"},
		),
		Drawdown: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "portfolio_drawdown_ratio",
				Help:      "Current drawdown from the running peak (0.0 to 1.0)",
			},
			[]string{"driver"},
		),
		RealizedPnL: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "portfolio_realized_pnl",
				Help:      "Cumulative realized profit and loss",
			},
			[]string{"driver"},
		),
		UnrealizedPnL: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "portfolio_unrealized_pnl",
				Help:      "Unrealized profit and loss of open positions",
			},
			[]string{"driver"},
		),
		Positions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "position_quantity",
				Help:      "Held quantity per symbol",
			},
			[]string{"driver", "symbol"},
		),
	}

	c.registry.MustRegister(
		c.Ticks, c.Trades, c.TradedValue, c.StrategyErrors,
		c.PortfolioValue, c.Cash, c.Drawdown, c.RealizedPnL, c.UnrealizedPnL, c.Positions,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) ObserveTick(driver string, view types.PortfolioView, drawdown float64) {
	c.Ticks.WithLabelValues(driver).Inc()
	c.PortfolioValue.WithLabelValues(driver).Set(view.TotalValue.InexactFloat64())
	c.Cash.WithLabelValues(driver).Set(view.Cash.InexactFloat64())
	c.Drawdown.WithLabelValues(driver).Set(drawdown)
	c.RealizedPnL.WithLabelValues(driver).Set(view.RealizedPnL.InexactFloat64())
	c.UnrealizedPnL.WithLabelValues(driver).Set(view.UnrealizedPnL.InexactFloat64())

	// Closed positions disappear from the view; drop their series too.
	c.Positions.DeletePartialMatch(prometheus.Labels{"driver": driver})
	for sym, p := range view.Positions {
		c.Positions.WithLabelValues(driver, sym).Set(p.Quantity.InexactFloat64())
	}
}

func (c *Collector) ObserveTrade(driver string, trade types.Trade) {
	side := string(trade.Side)
	c.Trades.WithLabelValues(driver, side).Inc()
	c.TradedValue.WithLabelValues(driver, side).Add(trade.Value.InexactFloat64())
}

func (c *Collector) ObserveStrategyError(driver string) {
	c.StrategyErrors.WithLabelValues(driver).Inc()
}
