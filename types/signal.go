package types

import (
	"github.com/shopspring/decimal"
)

// Signal is a strategy's per-symbol instruction for the current tick.
// Quantity is meaningful for Buy and Sell only.
type Signal struct {
	Action   Action          `json:"action"`
	Quantity decimal.Decimal `json:"quantity"`
	Reason   string          `json:"reason,omitempty"`
}

func BuySignal(qty decimal.Decimal, reason string) Signal {
	return Signal{Action: ActionBuy, Quantity: qty, Reason: reason}
}

func SellSignal(qty decimal.Decimal, reason string) Signal {
	return Signal{Action: ActionSell, Quantity: qty, Reason: reason}
}

func HoldSignal(reason string) Signal {
	return Signal{Action: ActionHold, Reason: reason}
}
