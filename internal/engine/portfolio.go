package engine

import (
	"time"

	"cryptosim/types"

	"github.com/shopspring/decimal"
)

type portfolio struct {
	cash          decimal.Decimal
	positions     map[string]*Position
	totalValue    decimal.Decimal
	realizedPnL   decimal.Decimal
	unrealizedPnL decimal.Decimal
	asOf          time.Time

	peak        decimal.Decimal
	drawdown    decimal.Decimal
	maxDrawdown decimal.Decimal
}

type Position struct {
	Symbol    string
	Quantity  decimal.Decimal
	AvgCost   decimal.Decimal
	LastPrice decimal.Decimal
}

func newPortfolio(initialCash decimal.Decimal) *portfolio {
	return &portfolio{
		cash:       initialCash,
		positions:  make(map[string]*Position),
		totalValue: initialCash,
		peak:       initialCash,
	}
}

// mark values the portfolio at prices. Held symbols missing from prices keep
// their last mark. Peak and drawdown are updated afterwards.
func (p *portfolio) mark(prices map[string]decimal.Decimal, asOf time.Time) {
	for sym, pos := range p.positions {
		if px, ok := prices[sym]; ok && px.IsPositive() {
			pos.LastPrice = px
		}
	}
	p.asOf = asOf
	p.revalue()

	if p.totalValue.GreaterThan(p.peak) {
		p.peak = p.totalValue
	}
	if p.peak.IsPositive() {
		p.drawdown = p.peak.Sub(p.totalValue).Div(p.peak)
		if p.drawdown.GreaterThan(p.maxDrawdown) {
			p.maxDrawdown = p.drawdown
		}
	}
}

// revalue recomputes total value and unrealized pnl from the current marks.
func (p *portfolio) revalue() {
	value := p.cash
	unrealized := decimal.Zero
	for _, pos := range p.positions {
		value = value.Add(pos.Quantity.Mul(pos.LastPrice))
		unrealized = unrealized.Add(pos.LastPrice.Sub(pos.AvgCost).Mul(pos.Quantity))
	}
	p.totalValue = value
	p.unrealizedPnL = unrealized
}

// applyBuy assumes qty*price <= cash; the executor guarantees it.
func (p *portfolio) applyBuy(symbol string, qty, price decimal.Decimal) {
	pos := p.positions[symbol]
	if pos == nil {
		pos = &Position{Symbol: symbol}
		p.positions[symbol] = pos
	}
	pos.AvgCost = weightedAvg(pos.AvgCost, pos.Quantity, price, qty)
	pos.Quantity = pos.Quantity.Add(qty)
	pos.LastPrice = price
	p.cash = p.cash.Sub(qty.Mul(price))
}

// applySell assumes qty <= held quantity.
func (p *portfolio) applySell(symbol string, qty, price decimal.Decimal) {
	pos := p.positions[symbol]
	if pos == nil {
		return
	}
	p.realizedPnL = p.realizedPnL.Add(price.Sub(pos.AvgCost).Mul(qty))
	p.cash = p.cash.Add(qty.Mul(price))
	pos.Quantity = pos.Quantity.Sub(qty)
	pos.LastPrice = price
	if !pos.Quantity.IsPositive() {
		delete(p.positions, symbol)
	}
}

func (p *portfolio) quantity(symbol string) decimal.Decimal {
	if pos, ok := p.positions[symbol]; ok {
		return pos.Quantity
	}
	return decimal.Zero
}

func (p *portfolio) snapshot() types.PortfolioView {
	view := types.PortfolioView{
		Cash:          p.cash,
		Positions:     make(map[string]types.PositionSnapshot, len(p.positions)),
		TotalValue:    p.totalValue,
		UnrealizedPnL: p.unrealizedPnL,
		RealizedPnL:   p.realizedPnL,
		Time:          p.asOf,
	}
	for sym, pos := range p.positions {
		view.Positions[sym] = types.PositionSnapshot{
			Symbol:        pos.Symbol,
			Quantity:      pos.Quantity,
			AvgEntryPrice: pos.AvgCost,
			LastPrice:     pos.LastPrice,
		}
	}
	return view
}

func (p *portfolio) historyPoint(benchmark float64) types.HistoryPoint {
	positions := make(map[string]decimal.Decimal, len(p.positions))
	for sym, pos := range p.positions {
		positions[sym] = pos.Quantity
	}
	return types.HistoryPoint{
		Time:           p.asOf,
		TotalValue:     p.totalValue,
		Cash:           p.cash,
		Positions:      positions,
		UnrealizedPnL:  p.unrealizedPnL,
		RealizedPnL:    p.realizedPnL,
		BenchmarkValue: benchmark,
	}
}

func weightedAvg(existingAvgPrice, existingQty, newPrice, newQty decimal.Decimal) decimal.Decimal {
	if existingQty.IsZero() {
		return newPrice
	}
	return existingAvgPrice.Mul(existingQty).
		Add(newPrice.Mul(newQty)).
		Div(existingQty.Add(newQty))
}
