package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioView is a read-only copy of the account at one instant.
type PortfolioView struct {
	Cash          decimal.Decimal             `json:"cash"`
	Positions     map[string]PositionSnapshot `json:"positions"`
	TotalValue    decimal.Decimal             `json:"total_value"`
	UnrealizedPnL decimal.Decimal             `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal             `json:"realized_pnl"`
	Time          time.Time                   `json:"time"`
}

type PositionSnapshot struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	LastPrice     decimal.Decimal `json:"last_price"`
}

// Quantity returns the held quantity of symbol, zero when none is held.
func (v PortfolioView) Quantity(symbol string) decimal.Decimal {
	if p, ok := v.Positions[symbol]; ok {
		return p.Quantity
	}
	return decimal.Zero
}

func (p PositionSnapshot) MarketValue() decimal.Decimal {
	return p.Quantity.Mul(p.LastPrice)
}
