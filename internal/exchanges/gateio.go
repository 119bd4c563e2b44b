package exchanges

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketscanner/internal/frame"
)

// GateClient fetches klines from Gate.io's v4 REST API (USDT perpetual
// futures contracts).
type GateClient struct {
	logger *zap.Logger
}

func NewGate(logger *zap.Logger) *GateClient {
	return &GateClient{logger: logger}
}

func (c *GateClient) Name() string { return "gateio" }
func (c *GateClient) Speed() Speed { return SpeedFast }

type gateContract struct {
	Name        string `json:"name"`
	InDelisting bool   `json:"in_delisting"`
}

func (c *GateClient) ListSymbols(ctx context.Context) ([]string, error) {
	var contracts []gateContract
	url := "https://api.gateio.ws/api/v4/futures/usdt/contracts"
	if err := getJSON(ctx, url, &contracts); err != nil {
		return nil, err
	}
	var symbols []string
	for _, c := range contracts {
		if c.InDelisting {
			continue
		}
		if !strings.HasSuffix(c.Name, "_USDT") {
			continue
		}
		symbols = append(symbols, c.Name)
	}
	return filterLeveraged(symbols, func(sym string) string {
		return strings.TrimSuffix(sym, "_USDT")
	}), nil
}

// gateCandle is the USDT futures candlestick shape: "v" is contract volume
// with no separate quote-turnover field, unlike the spot candlestick
// endpoint's "a" field. Bar.QuoteVolume is left unset for this venue, so
// Bar.VolumeUSD() falls back to Volume*Close.
type gateCandle struct {
	T int64  `json:"t"`
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
	V string `json:"v"`
}

func gateInterval(tf string) string {
	switch tf {
	case frame.TF4h:
		return "4h"
	case frame.TF1d:
		return "1d"
	default:
		return tf
	}
}

func (c *GateClient) FetchKlines(ctx context.Context, symbol, timeframe string, targetCount int) (*frame.Frame, error) {
	return fetchAndAggregate(c.Name(), symbol, timeframe, targetCount, func(nativeTF string, count int) (*frame.Frame, error) {
		return c.fetchNative(ctx, symbol, nativeTF, count)
	})
}

// fetchNative pages backward with Gate's "to" cursor (seconds).
func (c *GateClient) fetchNative(ctx context.Context, symbol, nativeTF string, count int) (*frame.Frame, error) {
	const maxPerPage = 1000
	interval := gateInterval(nativeTF)
	var all []Bar
	to := time.Now().UTC().Unix()

	for len(all) < count {
		limit := pageCount(count-len(all), maxPerPage)
		url := fmt.Sprintf("https://api.gateio.ws/api/v4/futures/usdt/candlesticks?contract=%s&interval=%s&limit=%d&to=%d",
			symbol, interval, limit, to)

		var rows []gateCandle
		err := retryBackoff(ctx, c.logger, c.Name(), symbol, func() error {
			return getJSON(ctx, url, &rows)
		})
		if err != nil {
			break
		}
		if len(rows) == 0 {
			break
		}

		var page []Bar
		oldest := int64(0)
		for _, row := range rows {
			if oldest == 0 || row.T < oldest {
				oldest = row.T
			}
			page = append(page, Bar{
				Ts:     time.Unix(row.T, 0).UTC(),
				Open:   parseFloatString(row.O),
				High:   parseFloatString(row.H),
				Low:    parseFloatString(row.L),
				Close:  parseFloatString(row.C),
				Volume: parseFloatString(row.V),
			})
		}
		all = append(all, page...)

		nextTo := oldest - 1
		if nextTo >= to {
			break
		}
		to = nextTo
	}

	return frame.New(c.Name(), symbol, nativeTF, all), nil
}
