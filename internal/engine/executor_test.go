package engine

import (
	"math/rand"
	"testing"
	"time"

	"cryptosim/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(cash string) *executor {
	p := newPortfolio(d(cash))
	return &executor{portfolio: p, ledger: &ledger{}, strategy: "test"}
}

func TestExecutorExecute(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		cash      string
		held      string
		signal    types.Signal
		price     string
		wantErr   error
		wantTrade bool
		wantQty   string
		wantCash  string
		wantHeld  string
	}{
		{
			name:     "hold is a no-op",
			cash:     "1000",
			signal:   types.HoldSignal("flat"),
			price:    "100",
			wantCash: "1000",
			wantHeld: "0",
		},
		{
			name:     "non-positive quantity is a no-op",
			cash:     "1000",
			signal:   types.BuySignal(d("-1"), ""),
			price:    "100",
			wantCash: "1000",
			wantHeld: "0",
		},
		{
			name:      "buy within cash",
			cash:      "1000",
			signal:    types.BuySignal(d("5"), ""),
			price:     "100",
			wantTrade: true,
			wantQty:   "5",
			wantCash:  "500",
			wantHeld:  "5",
		},
		{
			name:      "buy capped by cash",
			cash:      "1000",
			signal:    types.BuySignal(d("50"), ""),
			price:     "300",
			wantTrade: true,
			wantQty:   "3.33333333",
			wantCash:  "0.000001",
			wantHeld:  "3.33333333",
		},
		{
			name:     "buy with no cash records nothing",
			cash:     "0",
			signal:   types.BuySignal(d("1"), ""),
			price:    "100",
			wantCash: "0",
			wantHeld: "0",
		},
		{
			name:      "sell capped at held quantity",
			cash:      "0",
			held:      "2",
			signal:    types.SellSignal(d("5"), ""),
			price:     "100",
			wantTrade: true,
			wantQty:   "2",
			wantCash:  "200",
			wantHeld:  "0",
		},
		{
			name:     "sell with zero holdings",
			cash:     "1000",
			signal:   types.SellSignal(d("1"), ""),
			price:    "100",
			wantCash: "1000",
			wantHeld: "0",
		},
		{
			name:     "unknown action is rejected",
			cash:     "1000",
			signal:   types.Signal{Action: "short", Quantity: d("1")},
			price:    "100",
			wantErr:  ErrInvalidSignal,
			wantCash: "1000",
			wantHeld: "0",
		},
		{
			name:     "non-positive price is rejected",
			cash:     "1000",
			signal:   types.BuySignal(d("1"), ""),
			price:    "0",
			wantErr:  ErrInvalidPrice,
			wantCash: "1000",
			wantHeld: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := newTestExecutor(tt.cash)
			if tt.held != "" {
				ex.portfolio.positions["BTC"] = &Position{Symbol: "BTC", Quantity: d(tt.held), AvgCost: d("50"), LastPrice: d("50")}
			}

			trade, err := ex.execute("BTC", tt.signal, d(tt.price), ts)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			if tt.wantTrade {
				require.NotNil(t, trade)
				assert.True(t, trade.Quantity.Equal(d(tt.wantQty)), "qty = %s", trade.Quantity)
				assert.True(t, trade.Value.Equal(trade.Quantity.Mul(d(tt.price))))
				assert.Equal(t, ts, trade.Timestamp)
				assert.Equal(t, "test", trade.Strategy)
				assert.Equal(t, 1, ex.ledger.len())
			} else {
				assert.Nil(t, trade)
				assert.Equal(t, 0, ex.ledger.len())
			}
			assert.True(t, ex.portfolio.cash.Equal(d(tt.wantCash)), "cash = %s, want %s", ex.portfolio.cash, tt.wantCash)
			assert.True(t, ex.portfolio.quantity("BTC").Equal(d(tt.wantHeld)), "held = %s", ex.portfolio.quantity("BTC"))
		})
	}
}

func TestExecutorCashAndPositionsNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ex := newTestExecutor("10000")
	symbols := []string{"BTC", "ETH", "SOL"}
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5000; i++ {
		sym := symbols[rng.Intn(len(symbols))]
		price := decimal.NewFromFloat(1 + rng.Float64()*999).Round(4)
		qty := decimal.NewFromFloat(rng.Float64() * 50).Round(6)
		sig := types.BuySignal(qty, "")
		if rng.Intn(2) == 0 {
			sig = types.SellSignal(qty, "")
		}

		_, err := ex.execute(sym, sig, price, ts.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.False(t, ex.portfolio.cash.IsNegative(), "step %d: cash %s", i, ex.portfolio.cash)
		for s, pos := range ex.portfolio.positions {
			require.False(t, pos.Quantity.IsNegative(), "step %d: %s quantity %s", i, s, pos.Quantity)
		}
	}
	for _, tr := range ex.ledger.all() {
		assert.True(t, tr.Quantity.IsPositive())
		assert.True(t, tr.Price.IsPositive())
	}
}

func TestLedgerRecent(t *testing.T) {
	l := &ledger{}
	for i := 0; i < 15; i++ {
		l.append(types.Trade{Symbol: "BTC", Quantity: decimal.NewFromInt(int64(i + 1))})
	}

	recent := l.recent(10)
	require.Len(t, recent, 10)
	assert.True(t, recent[0].Quantity.Equal(d("6")))
	assert.True(t, recent[9].Quantity.Equal(d("15")), "newest last")

	assert.Len(t, l.recent(100), 15)
	assert.Empty(t, l.recent(0))

	recent[0].Symbol = "ETH"
	assert.Equal(t, "BTC", l.all()[5].Symbol, "recent must return a copy")
}
