package exchanges

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketscanner/internal/frame"
)

// MEXCClient fetches klines from MEXC's spot REST API.
type MEXCClient struct {
	logger *zap.Logger
}

func NewMEXC(logger *zap.Logger) *MEXCClient {
	return &MEXCClient{logger: logger}
}

func (c *MEXCClient) Name() string { return "mexc" }
func (c *MEXCClient) Speed() Speed { return SpeedSlow }

type mexcExchangeInfo struct {
	Symbols []struct {
		Symbol      string `json:"symbol"`
		QuoteAsset  string `json:"quoteAsset"`
		BaseAsset   string `json:"baseAsset"`
		Status      string `json:"status"`
		IsSpotTradingAllowed bool `json:"isSpotTradingAllowed"`
	} `json:"symbols"`
}

func (c *MEXCClient) ListSymbols(ctx context.Context) ([]string, error) {
	var info mexcExchangeInfo
	url := "https://api.mexc.com/api/v3/exchangeInfo"
	if err := getJSON(ctx, url, &info); err != nil {
		return nil, err
	}
	var symbols []string
	for _, s := range info.Symbols {
		if !s.IsSpotTradingAllowed || s.Status != "ENABLED" {
			continue
		}
		if s.QuoteAsset != "USDT" {
			continue
		}
		symbols = append(symbols, s.Symbol)
	}
	return filterLeveraged(symbols, func(sym string) string {
		return strings.TrimSuffix(sym, "USDT")
	}), nil
}

type mexcKlineRow = []interface{}

func mexcInterval(tf string) string {
	switch tf {
	case frame.TF4h:
		return "4h"
	case frame.TF1d:
		return "1d"
	default:
		return tf
	}
}

func (c *MEXCClient) FetchKlines(ctx context.Context, symbol, timeframe string, targetCount int) (*frame.Frame, error) {
	return fetchAndAggregate(c.Name(), symbol, timeframe, targetCount, func(nativeTF string, count int) (*frame.Frame, error) {
		return c.fetchNative(ctx, symbol, nativeTF, count)
	})
}

// fetchNative pages backward using MEXC's endTime cursor (milliseconds);
// the API mirrors Binance's spot kline shape closely.
func (c *MEXCClient) fetchNative(ctx context.Context, symbol, nativeTF string, count int) (*frame.Frame, error) {
	const maxPerPage = 1000
	interval := mexcInterval(nativeTF)
	var all []Bar
	endTime := time.Now().UTC().UnixMilli()

	for len(all) < count {
		limit := pageCount(count-len(all), maxPerPage)
		url := fmt.Sprintf("https://api.mexc.com/api/v3/klines?symbol=%s&interval=%s&limit=%d&endTime=%d",
			symbol, interval, limit, endTime)

		var rows []mexcKlineRow
		err := retryBackoff(ctx, c.logger, c.Name(), symbol, func() error {
			return getJSON(ctx, url, &rows)
		})
		if err != nil {
			break
		}
		if len(rows) == 0 {
			break
		}

		page := make([]Bar, 0, len(rows))
		for _, row := range rows {
			if len(row) < 6 {
				continue
			}
			openMs := int64(row[0].(float64))
			bar := Bar{
				Ts:     time.UnixMilli(openMs).UTC(),
				Open:   parseFloatField(row[1]),
				High:   parseFloatField(row[2]),
				Low:    parseFloatField(row[3]),
				Close:  parseFloatField(row[4]),
				Volume: parseFloatField(row[5]),
			}
			if len(row) > 7 { // mirrors Binance's row[7] quoteAssetVolume (USDT-denominated)
				bar.QuoteVolume = parseFloatField(row[7])
			}
			page = append(page, bar)
		}
		all = append(page, all...)

		oldest := int64(rows[0][0].(float64))
		nextEnd := oldest - 1
		if nextEnd >= endTime {
			break
		}
		endTime = nextEnd
	}

	return frame.New(c.Name(), symbol, nativeTF, all), nil
}
