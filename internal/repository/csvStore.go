package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cryptosim/types"

	"github.com/shopspring/decimal"
)

var ErrMalformedCSV = errors.New("malformed candle csv")

var csvColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// CSVStore reads candles from one file per symbol in dir. A symbol's file is
// named after it with "/" replaced by "_" (BTC/USDT -> BTC_USDT.csv). Files
// carry a header naming at least timestamp, open, high, low, close and volume;
// timestamps are RFC 3339 or unix milliseconds.
type CSVStore struct {
	dir string
}

func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{dir: dir}
}

func (s *CSVStore) Path(symbol string) string {
	return filepath.Join(s.dir, strings.ReplaceAll(symbol, "/", "_")+".csv")
}

// LoadCandles returns the symbol's candles in [start, end], in file order.
func (s *CSVStore) LoadCandles(ctx context.Context, symbol string, interval types.Interval, start, end time.Time) ([]types.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path(symbol)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoCandles)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	all, err := readCandles(f, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var candles []types.Candle
	for _, c := range all {
		if c.Timestamp.Before(start) || c.Timestamp.After(end) {
			continue
		}
		candles = append(candles, c)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%s between %s and %s: %w", symbol, start.Format(time.RFC3339), end.Format(time.RFC3339), ErrNoCandles)
	}
	return candles, nil
}

func readCandles(r io.Reader, symbol string, interval types.Interval) ([]types.Candle, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range csvColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformedCSV, col)
		}
	}

	var candles []types.Candle
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		ts, err := parseTimestamp(rec[idx["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedCSV, line, err)
		}
		var px [5]decimal.Decimal
		for i, col := range csvColumns[1:] {
			px[i], err = decimal.NewFromString(strings.TrimSpace(rec[idx[col]]))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d %s: %w", ErrMalformedCSV, line, col, err)
			}
		}
		candles = append(candles, types.Candle{
			Symbol:    symbol,
			Open:      px[0],
			High:      px[1],
			Low:       px[2],
			Close:     px[3],
			Volume:    px[4],
			Interval:  interval,
			Timestamp: ts,
		})
	}
	return candles, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}
