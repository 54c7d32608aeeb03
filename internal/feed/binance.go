package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultRESTURL = "https://api.binance.com"

// BinanceTickerSource prices symbols from the Binance spot ticker endpoint.
type BinanceTickerSource struct {
	baseURL string
	client  *http.Client
}

func NewBinanceTickerSource(baseURL string, client *http.Client) *BinanceTickerSource {
	if baseURL == "" {
		baseURL = DefaultRESTURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &BinanceTickerSource{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (b *BinanceTickerSource) Prices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	bySymbol := make(map[string]string, len(symbols))
	quoted := make([]string, 0, len(symbols))
	for _, s := range symbols {
		ex := exchangeSymbol(s)
		bySymbol[ex] = s
		quoted = append(quoted, `"`+ex+`"`)
	}
	q := url.Values{"symbols": {"[" + strings.Join(quoted, ",") + "]"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/v3/ticker/price?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ticker request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ticker request: status %d", resp.StatusCode)
	}

	var tickers []tickerPrice
	if err := json.NewDecoder(resp.Body).Decode(&tickers); err != nil {
		return nil, fmt.Errorf("decode tickers: %w", err)
	}
	prices := make(map[string]decimal.Decimal, len(tickers))
	for _, t := range tickers {
		sym, ok := bySymbol[t.Symbol]
		if !ok {
			continue
		}
		px, err := decimal.NewFromString(t.Price)
		if err != nil || !px.IsPositive() {
			continue
		}
		prices[sym] = px
	}
	return prices, nil
}
