package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"cryptosim/types"
)

const (
	tradesFileName  = "trades.csv"
	historyFileName = "portfolio_history.csv"
)

// ExportCSV writes trades.csv and portfolio_history.csv into dir.
func (e *Engine) ExportCSV(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := writeCSVFile(filepath.Join(dir, tradesFileName), func(w io.Writer) error {
		return WriteTradesCSV(w, e.Trades())
	}); err != nil {
		return err
	}
	return writeCSVFile(filepath.Join(dir, historyFileName), func(w io.Writer) error {
		return WriteHistoryCSV(w, e.History())
	})
}

func writeCSVFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTradesCSV writes trades to any io.Writer as CSV, one row per fill.
func WriteTradesCSV(w io.Writer, trades []types.Trade) error {
	cw := csv.NewWriter(w)

	header := []string{
		"timestamp", // RFC3339
		"symbol",
		"side",
		"quantity",
		"price",
		"value",
		"strategy",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, t := range trades {
		record := []string{
			t.Timestamp.UTC().Format(time.RFC3339),
			t.Symbol,
			string(t.Side),
			t.Quantity.String(),
			t.Price.String(),
			t.Value.String(),
			t.Strategy,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteHistoryCSV writes the portfolio history with one quantity column per
// symbol that was ever held.
func WriteHistoryCSV(w io.Writer, history []types.HistoryPoint) error {
	cw := csv.NewWriter(w)

	seen := make(map[string]struct{})
	for _, h := range history {
		for sym := range h.Positions {
			seen[sym] = struct{}{}
		}
	}
	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	header := []string{"timestamp", "total_value", "cash", "unrealized_pnl", "realized_pnl", "benchmark_value"}
	for _, sym := range symbols {
		header = append(header, "qty_"+sym)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, h := range history {
		record := []string{
			h.Time.UTC().Format(time.RFC3339),
			h.TotalValue.String(),
			h.Cash.String(),
			h.UnrealizedPnL.String(),
			h.RealizedPnL.String(),
			strconv.FormatFloat(h.BenchmarkValue, 'f', -1, 64),
		}
		for _, sym := range symbols {
			qty, ok := h.Positions[sym]
			if !ok {
				record = append(record, "0")
				continue
			}
			record = append(record, qty.String())
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
