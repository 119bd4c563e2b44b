package exchanges

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketscanner/internal/frame"
)

// BybitClient fetches klines from Bybit's v5 unified REST API (linear
// perpetual category, USDT-margined).
type BybitClient struct {
	logger *zap.Logger
}

func NewBybit(logger *zap.Logger) *BybitClient {
	return &BybitClient{logger: logger}
}

func (c *BybitClient) Name() string { return "bybit" }
func (c *BybitClient) Speed() Speed { return SpeedFast }

type bybitInstrumentsResponse struct {
	Result struct {
		List []struct {
			Symbol     string `json:"symbol"`
			BaseCoin   string `json:"baseCoin"`
			QuoteCoin  string `json:"quoteCoin"`
			Status     string `json:"status"`
		} `json:"list"`
	} `json:"result"`
}

func (c *BybitClient) ListSymbols(ctx context.Context) ([]string, error) {
	var resp bybitInstrumentsResponse
	url := "https://api.bybit.com/v5/market/instruments-info?category=linear"
	if err := getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	var symbols []string
	for _, it := range resp.Result.List {
		if it.Status != "Trading" {
			continue
		}
		if it.QuoteCoin != "USDT" {
			continue
		}
		symbols = append(symbols, it.Symbol)
	}
	return filterLeveraged(symbols, func(sym string) string {
		return strings.TrimSuffix(sym, "USDT")
	}), nil
}

type bybitKlineResponse struct {
	Result struct {
		List [][]string `json:"list"`
	} `json:"result"`
}

func bybitInterval(tf string) string {
	switch tf {
	case frame.TF4h:
		return "240"
	case frame.TF1d:
		return "D"
	default:
		return tf
	}
}

func (c *BybitClient) FetchKlines(ctx context.Context, symbol, timeframe string, targetCount int) (*frame.Frame, error) {
	return fetchAndAggregate(c.Name(), symbol, timeframe, targetCount, func(nativeTF string, count int) (*frame.Frame, error) {
		return c.fetchNative(ctx, symbol, nativeTF, count)
	})
}

// fetchNative pages backward using Bybit's "end" cursor (milliseconds).
// Bybit returns rows newest-first within a page.
func (c *BybitClient) fetchNative(ctx context.Context, symbol, nativeTF string, count int) (*frame.Frame, error) {
	const maxPerPage = 1000
	interval := bybitInterval(nativeTF)
	var all []Bar
	end := time.Now().UTC().UnixMilli()

	for len(all) < count {
		limit := pageCount(count-len(all), maxPerPage)
		url := fmt.Sprintf("https://api.bybit.com/v5/market/kline?category=linear&symbol=%s&interval=%s&limit=%d&end=%d",
			symbol, interval, limit, end)

		var resp bybitKlineResponse
		err := retryBackoff(ctx, c.logger, c.Name(), symbol, func() error {
			return getJSON(ctx, url, &resp)
		})
		if err != nil {
			break
		}
		rows := resp.Result.List
		if len(rows) == 0 {
			break
		}

		var page []Bar
		var oldest int64
		for i, row := range rows {
			if len(row) < 6 {
				continue
			}
			openMs, _ := strconv.ParseInt(row[0], 10, 64)
			if i == len(rows)-1 || oldest == 0 || openMs < oldest {
				oldest = openMs
			}
			bar := Bar{
				Ts:     time.UnixMilli(openMs).UTC(),
				Open:   parseFloatField(row[1]),
				High:   parseFloatField(row[2]),
				Low:    parseFloatField(row[3]),
				Close:  parseFloatField(row[4]),
				Volume: parseFloatField(row[5]),
			}
			if len(row) > 6 { // row[6] is turnover, USDT-denominated for linear contracts
				bar.QuoteVolume = parseFloatField(row[6])
			}
			page = append(page, bar)
		}
		all = append(all, page...)

		nextEnd := oldest - 1
		if nextEnd >= end {
			break
		}
		end = nextEnd
	}

	// Bybit pages newest-first; frame.New sorts ascending before dedupe.
	return frame.New(c.Name(), symbol, nativeTF, all), nil
}
