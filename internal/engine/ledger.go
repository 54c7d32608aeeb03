package engine

import "cryptosim/types"

// ledger is the append-only record of fills, oldest first.
type ledger struct {
	trades []types.Trade
}

func (l *ledger) append(t types.Trade) {
	l.trades = append(l.trades, t)
}

// recent returns a copy of the last k trades, newest last.
func (l *ledger) recent(k int) []types.Trade {
	if k <= 0 {
		return []types.Trade{}
	}
	start := len(l.trades) - k
	if start < 0 {
		start = 0
	}
	out := make([]types.Trade, len(l.trades)-start)
	copy(out, l.trades[start:])
	return out
}

func (l *ledger) all() []types.Trade {
	out := make([]types.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

func (l *ledger) len() int {
	return len(l.trades)
}
