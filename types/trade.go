package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an executed fill. Value is Quantity * Price.
type Trade struct {
	Timestamp time.Time       `json:"timestamp"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Value     decimal.Decimal `json:"value"`
	Strategy  string          `json:"strategy"`
}
