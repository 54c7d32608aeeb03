package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cryptosim/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTradesCSV(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	trades := []types.Trade{
		{Timestamp: ts, Symbol: "BTC/USDT", Side: types.SideBuy, Quantity: d("0.5"), Price: d("40000"), Value: d("20000"), Strategy: "s"},
		{Timestamp: ts.Add(time.Hour), Symbol: "BTC/USDT", Side: types.SideSell, Quantity: d("0.5"), Price: d("41000"), Value: d("20500"), Strategy: "s"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTradesCSV(&buf, trades))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,symbol,side,quantity,price,value,strategy", lines[0])
	assert.Equal(t, "2024-01-02T03:00:00Z,BTC/USDT,buy,0.5,40000,20000,s", lines[1])
	assert.Equal(t, "2024-01-02T04:00:00Z,BTC/USDT,sell,0.5,41000,20500,s", lines[2])
}

func TestWriteHistoryCSV(t *testing.T) {
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	history := []types.HistoryPoint{
		{Time: ts, TotalValue: d("100"), Cash: d("100"), BenchmarkValue: 100},
		{
			Time: ts.Add(time.Hour), TotalValue: d("101"), Cash: d("50"),
			Positions:      map[string]decimal.Decimal{"ETH": d("5"), "BTC": d("0.1")},
			UnrealizedPnL:  d("1"),
			BenchmarkValue: 100.5,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteHistoryCSV(&buf, history))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,total_value,cash,unrealized_pnl,realized_pnl,benchmark_value,qty_BTC,qty_ETH", lines[0])
	assert.Equal(t, "2024-01-02T00:00:00Z,100,100,0,0,100,0,0", lines[1])
	assert.Equal(t, "2024-01-02T01:00:00Z,101,50,1,0,100.5,0.1,5", lines[2])
}

func TestEngineExportCSV(t *testing.T) {
	strat := &scriptedStrategy{script: map[int]map[string]types.Signal{
		0: {"BTC": types.BuySignal(d("1"), "")},
	}}
	store := &mockStore{candles: map[string][]types.Candle{
		"BTC": hourlyCandles("BTC", testStart, "100", "101"),
	}}
	e := newTestEngine(t, strat, store, "BTC")
	require.NoError(t, e.Run(context.Background()))

	dir := filepath.Join(t.TempDir(), "report")
	require.NoError(t, e.ExportCSV(dir))

	trades, err := os.ReadFile(filepath.Join(dir, "trades.csv"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(trades), "\n"))

	history, err := os.ReadFile(filepath.Join(dir, "portfolio_history.csv"))
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(history), "\n"))
}
