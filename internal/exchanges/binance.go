package exchanges

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketscanner/internal/frame"
)

// BinanceClient fetches klines from Binance's spot or USDⓈ-M futures REST
// API, chosen at construction time per SUPPLEMENTED FEATURES (the original
// scanner ran spot and futures as separate venue identities).
type BinanceClient struct {
	logger  *zap.Logger
	futures bool
	name    string
}

// NewBinanceSpot builds the spot-market Binance client.
func NewBinanceSpot(logger *zap.Logger) *BinanceClient {
	return &BinanceClient{logger: logger, futures: false, name: "binance_spot"}
}

// NewBinanceFutures builds the USDⓈ-M futures Binance client.
func NewBinanceFutures(logger *zap.Logger) *BinanceClient {
	return &BinanceClient{logger: logger, futures: true, name: "binance_futures"}
}

func (c *BinanceClient) Name() string { return c.name }
func (c *BinanceClient) Speed() Speed { return SpeedFast }

func (c *BinanceClient) baseURL() string {
	if c.futures {
		return "https://fapi.binance.com"
	}
	return "https://api.binance.com"
}

type binanceExchangeInfo struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
		Status     string `json:"status"`
	} `json:"symbols"`
}

func (c *BinanceClient) ListSymbols(ctx context.Context) ([]string, error) {
	path := "/api/v3/exchangeInfo"
	if c.futures {
		path = "/fapi/v1/exchangeInfo"
	}
	var info binanceExchangeInfo
	if err := getJSON(ctx, c.baseURL()+path, &info); err != nil {
		return nil, err
	}
	var symbols []string
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
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

type binanceKlineRow = []interface{}

func (c *BinanceClient) klinesPath() string {
	if c.futures {
		return "/fapi/v1/klines"
	}
	return "/api/v3/klines"
}

// binanceInterval maps a native timeframe to Binance's interval vocabulary.
func binanceInterval(tf string) string {
	switch tf {
	case frame.TF4h:
		return "4h"
	case frame.TF1d:
		return "1d"
	default:
		return tf
	}
}

func (c *BinanceClient) FetchKlines(ctx context.Context, symbol, timeframe string, targetCount int) (*frame.Frame, error) {
	return fetchAndAggregate(c.name, symbol, timeframe, targetCount, func(nativeTF string, count int) (*frame.Frame, error) {
		return c.fetchNative(ctx, symbol, nativeTF, count)
	})
}

// fetchNative pages backward from "now" using Binance's endTime cursor
// (milliseconds) until count rows are collected or the venue stops
// returning older data, per spec §4.2.
func (c *BinanceClient) fetchNative(ctx context.Context, symbol, nativeTF string, count int) (*frame.Frame, error) {
	const maxPerPage = 1000
	interval := binanceInterval(nativeTF)
	var all []Bar
	endTime := time.Now().UTC().UnixMilli()

	for len(all) < count {
		limit := pageCount(count-len(all), maxPerPage)
		url := fmt.Sprintf("%s%s?symbol=%s&interval=%s&limit=%d&endTime=%d",
			c.baseURL(), c.klinesPath(), symbol, interval, limit, endTime)

		var rows []binanceKlineRow
		err := retryBackoff(ctx, c.logger, c.name, symbol, func() error {
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
			if len(row) > 7 { // row[7] is quoteAssetVolume, already USDT-denominated
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

	return frame.New(c.name, symbol, nativeTF, all), nil
}
