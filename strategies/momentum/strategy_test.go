package momentum

import (
	"context"
	"testing"
	"time"

	"cryptosim/internal/engine"
	"cryptosim/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// series builds n hourly bars moving linearly from first to last.
func series(symbol string, n int, first, last float64) []types.Candle {
	out := make([]types.Candle, n)
	for i := range out {
		px := first
		if n > 1 {
			px = first + (last-first)*float64(i)/float64(n-1)
		}
		out[i] = types.FlatCandle(symbol, decimal.NewFromFloat(px), start.Add(time.Duration(i)*time.Hour))
	}
	return out
}

func view(total string, held map[string]string) types.PortfolioView {
	v := types.PortfolioView{
		TotalValue: decimal.RequireFromString(total),
		Positions:  make(map[string]types.PositionSnapshot),
	}
	for sym, q := range held {
		v.Positions[sym] = types.PositionSnapshot{Symbol: sym, Quantity: decimal.RequireFromString(q)}
	}
	return v
}

func TestGenerateSignals(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string][]types.Candle
		view       types.PortfolioView
		want       map[string]types.Action
		wantQty    map[string]float64
		wantReason map[string]string
	}{
		{
			name: "not enough history for every symbol",
			data: map[string][]types.Candle{
				"BTC": series("BTC", 25, 100, 200),
				"ETH": series("ETH", 19, 100, 200),
			},
			view: view("10000", nil),
			want: map[string]types.Action{},
		},
		{
			name: "rising price buys a tenth of total value",
			data: map[string][]types.Candle{"BTC": series("BTC", 20, 100, 110)},
			view: view("10000", nil),
			want: map[string]types.Action{"BTC": types.ActionBuy},
			wantQty: map[string]float64{
				"BTC": 1000.0 / 110,
			},
			wantReason: map[string]string{"BTC": "Momentum: 0.100"},
		},
		{
			name:    "falling price sells at most the held quantity",
			data:    map[string][]types.Candle{"BTC": series("BTC", 20, 100, 90)},
			view:    view("10000", map[string]string{"BTC": "3"}),
			want:    map[string]types.Action{"BTC": types.ActionSell},
			wantQty: map[string]float64{"BTC": 3},
		},
		{
			name:    "falling price with nothing held sells zero",
			data:    map[string][]types.Candle{"BTC": series("BTC", 20, 100, 90)},
			view:    view("10000", nil),
			want:    map[string]types.Action{"BTC": types.ActionSell},
			wantQty: map[string]float64{"BTC": 0},
		},
		{
			name:       "small move holds",
			data:       map[string][]types.Candle{"BTC": series("BTC", 20, 100, 101)},
			view:       view("10000", nil),
			want:       map[string]types.Action{"BTC": types.ActionHold},
			wantReason: map[string]string{"BTC": "Momentum: 0.010"},
		},
		{
			name: "momentum uses the close lookback bars back",
			data: map[string][]types.Candle{
				// 30 bars: the reference is bar 10 (price 110), last is 129.
				"BTC": series("BTC", 30, 100, 129),
			},
			view:       view("10000", nil),
			want:       map[string]types.Action{"BTC": types.ActionBuy},
			wantReason: map[string]string{"BTC": "Momentum: 0.173"},
		},
		{
			name: "symbols are independent",
			data: map[string][]types.Candle{
				"BTC": series("BTC", 20, 100, 120),
				"ETH": series("ETH", 20, 100, 100),
			},
			view: view("10000", nil),
			want: map[string]types.Action{"BTC": types.ActionBuy, "ETH": types.ActionHold},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().GenerateSignals(start, tt.data, tt.view)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for sym, action := range tt.want {
				assert.Equal(t, action, got[sym].Action, sym)
			}
			for sym, qty := range tt.wantQty {
				assert.InDelta(t, qty, got[sym].Quantity.InexactFloat64(), 1e-9, sym)
			}
			for sym, reason := range tt.wantReason {
				assert.Equal(t, reason, got[sym].Reason, sym)
			}
		})
	}
}

func TestParameters(t *testing.T) {
	s := New()
	assert.Equal(t, map[string]float64{"lookback_period": 20, "threshold": 0.02, "position_size": 0.1}, s.Parameters())

	require.NoError(t, s.SetParameters(map[string]float64{"lookback_period": 5, "threshold": 0.5}))
	assert.Equal(t, 5.0, s.Parameters()["lookback_period"])

	// 20 bars rising 100 -> 119; over 5 bars the move is well under 50%.
	got, err := s.GenerateSignals(start, map[string][]types.Candle{"BTC": series("BTC", 20, 100, 119)}, view("100", nil))
	require.NoError(t, err)
	assert.Equal(t, types.ActionHold, got["BTC"].Action)

	tests := []map[string]float64{
		{"lookback_period": 1},
		{"lookback_period": 2.5},
		{"threshold": -0.1},
		{"position_size": 0},
		{"position_size": 1.5},
		{"speed": 1},
	}
	for _, params := range tests {
		assert.Error(t, New().SetParameters(params), "%v", params)
	}
}

type memStore map[string][]types.Candle

func (m memStore) LoadCandles(_ context.Context, symbol string, _ types.Interval, _, _ time.Time) ([]types.Candle, error) {
	return m[symbol], nil
}

func TestMomentumReplay(t *testing.T) {
	registry := engine.NewRegistry()
	require.NoError(t, Register(registry))
	assert.ErrorIs(t, Register(registry), engine.ErrDuplicateStrategy)

	// Flat for 20 bars, then a steady climb.
	candles := series("BTC/USDT", 20, 100, 100)
	candles = append(candles, series("BTC/USDT", 20, 100, 140)[1:]...)
	for i := 20; i < len(candles); i++ {
		candles[i].Timestamp = start.Add(time.Duration(i) * time.Hour)
	}

	cfg := engine.SimulationConfig{
		Strategy:       Name,
		Symbols:        []string{"BTC/USDT"},
		InitialCapital: decimal.NewFromInt(10000),
		Start:          start,
		End:            start.Add(48 * time.Hour),
		Interval:       types.Hour,
	}
	e, err := engine.NewEngine(cfg, registry, memStore{"BTC/USDT": candles})
	require.NoError(t, err)
	require.NoError(t, e.Run(context.Background()))

	trades := e.Trades()
	require.NotEmpty(t, trades)
	for _, tr := range trades {
		assert.Equal(t, types.SideBuy, tr.Side)
		assert.Equal(t, Name, tr.Strategy)
	}
	view := e.Portfolio()
	assert.False(t, view.Cash.IsNegative())
	assert.True(t, view.TotalValue.GreaterThan(decimal.NewFromInt(10000)))
	assert.Greater(t, e.Performance().TotalReturn, 0.0)
}
