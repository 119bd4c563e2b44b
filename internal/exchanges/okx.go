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

// OKXClient fetches klines from OKX's v5 REST API (SWAP instruments,
// USDT-margined perpetuals).
type OKXClient struct {
	logger *zap.Logger
}

func NewOKX(logger *zap.Logger) *OKXClient {
	return &OKXClient{logger: logger}
}

func (c *OKXClient) Name() string { return "okx" }
// Speed is Slow: spec §4.8's speed-class rule names Binance/Bybit/Gate as
// the only Fast venues and falls everything else, including OKX, back to
// "any unknown venue" (see DESIGN.md).
func (c *OKXClient) Speed() Speed { return SpeedSlow }

type okxInstrumentsResponse struct {
	Data []struct {
		InstID   string `json:"instId"`
		State    string `json:"state"`
		SettleCcy string `json:"settleCcy"`
	} `json:"data"`
}

func (c *OKXClient) ListSymbols(ctx context.Context) ([]string, error) {
	var resp okxInstrumentsResponse
	url := "https://www.okx.com/api/v5/public/instruments?instType=SWAP"
	if err := getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	var symbols []string
	for _, it := range resp.Data {
		if it.State != "live" {
			continue
		}
		if it.SettleCcy != "USDT" {
			continue
		}
		symbols = append(symbols, it.InstID)
	}
	return filterLeveraged(symbols, func(sym string) string {
		return strings.SplitN(sym, "-", 2)[0]
	}), nil
}

type okxCandlesResponse struct {
	Data [][]string `json:"data"`
}

func okxBar(tf string) string {
	switch tf {
	case frame.TF4h:
		return "4H"
	case frame.TF1d:
		return "1Dutc"
	default:
		return tf
	}
}

func (c *OKXClient) FetchKlines(ctx context.Context, symbol, timeframe string, targetCount int) (*frame.Frame, error) {
	return fetchAndAggregate(c.Name(), symbol, timeframe, targetCount, func(nativeTF string, count int) (*frame.Frame, error) {
		return c.fetchNative(ctx, symbol, nativeTF, count)
	})
}

// fetchNative pages backward with OKX's "after" cursor (a ms timestamp;
// OKX returns rows strictly older than "after"), using the history-candles
// endpoint which supports deeper backfill than the live candles endpoint.
func (c *OKXClient) fetchNative(ctx context.Context, symbol, nativeTF string, count int) (*frame.Frame, error) {
	const maxPerPage = 100
	bar := okxBar(nativeTF)
	var all []Bar
	after := int64(0)

	for len(all) < count {
		limit := pageCount(count-len(all), maxPerPage)
		url := fmt.Sprintf("https://www.okx.com/api/v5/market/history-candles?instId=%s&bar=%s&limit=%d",
			symbol, bar, limit)
		if after > 0 {
			url += fmt.Sprintf("&after=%d", after)
		}

		var resp okxCandlesResponse
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
			ms, _ := strconv.ParseInt(row[0], 10, 64)
			if oldest == 0 || ms < oldest {
				oldest = ms
			}
			bar := Bar{
				Ts:     time.UnixMilli(ms).UTC(),
				Open:   parseFloatString(row[1]),
				High:   parseFloatString(row[2]),
				Low:    parseFloatString(row[3]),
				Close:  parseFloatString(row[4]),
				Volume: parseFloatString(row[5]),
			}
			if len(row) > 7 { // row[7] is volCcyQuote, turnover in the quote currency (USDT for these instruments)
				bar.QuoteVolume = parseFloatString(row[7])
			}
			page = append(page, bar)
		}
		all = append(all, page...)

		if oldest == after || oldest == 0 {
			break
		}
		after = oldest
	}

	return frame.New(c.Name(), symbol, nativeTF, all), nil
}

func parseFloatString(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
