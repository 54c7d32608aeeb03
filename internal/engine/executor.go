package engine

import (
	"errors"
	"fmt"
	"time"

	"cryptosim/types"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSignal = errors.New("invalid signal")
	ErrInvalidPrice  = errors.New("invalid fill price")
)

// executor turns one signal into at most one fill against the portfolio.
type executor struct {
	portfolio *portfolio
	ledger    *ledger
	strategy  string
}

// execute returns the recorded trade, or nil when the signal had no effect.
// A rejected signal leaves the portfolio untouched.
func (e *executor) execute(symbol string, sig types.Signal, price decimal.Decimal, ts time.Time) (*types.Trade, error) {
	switch sig.Action {
	case types.ActionHold:
		return nil, nil
	case types.ActionBuy, types.ActionSell:
	default:
		return nil, fmt.Errorf("%w: %s action %q", ErrInvalidSignal, symbol, sig.Action)
	}
	if !sig.Quantity.IsPositive() {
		return nil, nil
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: %s at %s", ErrInvalidPrice, symbol, price)
	}

	var (
		qty  decimal.Decimal
		side types.Side
	)
	requested := sig.Quantity.Truncate(quantityPrecision)
	if sig.Action == types.ActionBuy {
		// QuoRem truncates, so affordable*price never exceeds cash.
		affordable, _ := e.portfolio.cash.QuoRem(price, quantityPrecision)
		qty = decimal.Min(requested, affordable)
		side = types.SideBuy
	} else {
		qty = decimal.Min(requested, e.portfolio.quantity(symbol))
		side = types.SideSell
	}
	if !qty.IsPositive() {
		return nil, nil
	}

	if side == types.SideBuy {
		e.portfolio.applyBuy(symbol, qty, price)
	} else {
		e.portfolio.applySell(symbol, qty, price)
	}

	trade := types.Trade{
		Timestamp: ts,
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		Price:     price,
		Value:     qty.Mul(price),
		Strategy:  e.strategy,
	}
	e.ledger.append(trade)
	return &trade, nil
}
