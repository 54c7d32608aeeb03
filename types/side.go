package types

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Action is what a strategy asks for on one symbol.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)
