package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryPoint is one entry of a portfolio value series. BenchmarkValue is
// zero for drivers that do not track a benchmark.
type HistoryPoint struct {
	Time           time.Time                  `json:"time"`
	TotalValue     decimal.Decimal            `json:"total_value"`
	Cash           decimal.Decimal            `json:"cash"`
	Positions      map[string]decimal.Decimal `json:"positions"`
	UnrealizedPnL  decimal.Decimal            `json:"unrealized_pnl"`
	RealizedPnL    decimal.Decimal            `json:"realized_pnl"`
	BenchmarkValue float64                    `json:"benchmark_value,omitempty"`
}

type PricePoint struct {
	Time  time.Time       `json:"time"`
	Price decimal.Decimal `json:"price"`
}

// PriceUpdate is one batch of latest prices delivered by a feed.
type PriceUpdate struct {
	Time   time.Time
	Prices map[string]decimal.Decimal
}
