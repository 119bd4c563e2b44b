package exchanges

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketscanner/internal/frame"
)

// KuCoinClient fetches klines from KuCoin's spot REST API, which takes its
// pagination cursor in whole seconds rather than milliseconds.
type KuCoinClient struct {
	logger *zap.Logger
}

func NewKuCoin(logger *zap.Logger) *KuCoinClient {
	return &KuCoinClient{logger: logger}
}

func (c *KuCoinClient) Name() string { return "kucoin" }
func (c *KuCoinClient) Speed() Speed { return SpeedSlow }

type kucoinSymbolsResponse struct {
	Data []struct {
		Symbol      string `json:"symbol"`
		QuoteCurrency string `json:"quoteCurrency"`
		BaseCurrency  string `json:"baseCurrency"`
		EnableTrading bool   `json:"enableTrading"`
	} `json:"data"`
}

func (c *KuCoinClient) ListSymbols(ctx context.Context) ([]string, error) {
	var resp kucoinSymbolsResponse
	url := "https://api.kucoin.com/api/v2/symbols"
	if err := getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	var symbols []string
	for _, s := range resp.Data {
		if !s.EnableTrading {
			continue
		}
		if s.QuoteCurrency != "USDT" {
			continue
		}
		symbols = append(symbols, s.Symbol)
	}
	return filterLeveraged(symbols, func(sym string) string {
		return strings.SplitN(sym, "-", 2)[0]
	}), nil
}

type kucoinCandlesResponse struct {
	Data [][]string `json:"data"`
}

func kucoinType(tf string) string {
	switch tf {
	case frame.TF4h:
		return "4hour"
	case frame.TF1d:
		return "1day"
	default:
		return tf
	}
}

func (c *KuCoinClient) FetchKlines(ctx context.Context, symbol, timeframe string, targetCount int) (*frame.Frame, error) {
	return fetchAndAggregate(c.Name(), symbol, timeframe, targetCount, func(nativeTF string, count int) (*frame.Frame, error) {
		return c.fetchNative(ctx, symbol, nativeTF, count)
	})
}

// fetchNative pages backward using KuCoin's startAt/endAt window, both
// expressed in whole seconds (like Gate's "to" cursor; the Binance, Bybit,
// OKX and MEXC clients take milliseconds). Per bar interval this needs a widening startAt per
// page since KuCoin's endpoint takes a closed [startAt, endAt] range rather
// than a single trailing cursor.
func (c *KuCoinClient) fetchNative(ctx context.Context, symbol, nativeTF string, count int) (*frame.Frame, error) {
	const maxPerPage = 1500
	kType := kucoinType(nativeTF)
	barSeconds := int64(frameDurationSeconds(nativeTF))
	var all []Bar
	endAt := time.Now().UTC().Unix()

	for len(all) < count {
		limit := pageCount(count-len(all), maxPerPage)
		startAt := endAt - int64(limit)*barSeconds
		url := fmt.Sprintf("https://api.kucoin.com/api/v1/market/candles?symbol=%s&type=%s&startAt=%d&endAt=%d",
			symbol, kType, startAt, endAt)

		var resp kucoinCandlesResponse
		err := retryBackoff(ctx, c.logger, c.Name(), symbol, func() error {
			return getJSON(ctx, url, &resp)
		})
		if err != nil {
			break
		}
		if len(resp.Data) == 0 {
			break
		}

		var page []Bar
		oldest := int64(0)
		for _, row := range resp.Data {
			if len(row) < 6 {
				continue
			}
			sec := parseIntSeconds(row[0])
			if oldest == 0 || sec < oldest {
				oldest = sec
			}
			bar := Bar{
				Ts:     time.Unix(sec, 0).UTC(),
				Open:   parseFloatString(row[1]),
				Close:  parseFloatString(row[2]),
				High:   parseFloatString(row[3]),
				Low:    parseFloatString(row[4]),
				Volume: parseFloatString(row[5]),
			}
			if len(row) > 6 { // row[6] is turnover, quote-currency (USDT) denominated
				bar.QuoteVolume = parseFloatString(row[6])
			}
			page = append(page, bar)
		}
		all = append(all, page...)

		if oldest == 0 || oldest >= endAt {
			break
		}
		endAt = oldest - 1
	}

	return frame.New(c.Name(), symbol, nativeTF, all), nil
}

func frameDurationSeconds(tf string) int {
	switch tf {
	case frame.TF4h:
		return 4 * 3600
	case frame.TF1d:
		return 24 * 3600
	default:
		return 24 * 3600
	}
}

func parseIntSeconds(s string) int64 {
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int64(r-'0')
	}
	return n
}
