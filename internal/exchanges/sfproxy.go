package exchanges

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"marketscanner/internal/frame"
)

// SFProxyClient wraps an MEXC-via-proxy venue ("sf_mexc" in the original
// scanner) that only ever serves a curated symbol-futures pair list over a
// single weekly timeframe. FetchKlines rejects any timeframe other than
// frame.TF1w with a ConfigurationError before making any request, per
// spec §7's fail-fast requirement.
type SFProxyClient struct {
	logger  *zap.Logger
	inner   *MEXCClient
	symbols []string
}

// NewSFProxy builds the restricted client. symbols is the fixed pair list
// this proxy venue serves (the "sf_pairs" set from the original scanner,
// not discoverable via a general-purpose exchangeInfo call).
func NewSFProxy(logger *zap.Logger, symbols []string) *SFProxyClient {
	return &SFProxyClient{logger: logger, inner: NewMEXC(logger), symbols: symbols}
}

func (c *SFProxyClient) Name() string { return "sf_mexc" }
func (c *SFProxyClient) Speed() Speed { return SpeedSlow }

func (c *SFProxyClient) ListSymbols(ctx context.Context) ([]string, error) {
	out := make([]string, len(c.symbols))
	copy(out, c.symbols)
	return out, nil
}

func (c *SFProxyClient) FetchKlines(ctx context.Context, symbol, timeframe string, targetCount int) (*frame.Frame, error) {
	if timeframe != frame.TF1w {
		return nil, &RegistryError{Venue: c.Name(), Err: fmt.Errorf("%w: sf_mexc only serves %s, got %s", ErrConfiguration, frame.TF1w, timeframe)}
	}
	f, err := c.inner.FetchKlines(ctx, symbol, timeframe, targetCount)
	if err != nil {
		return nil, err
	}
	f.Venue = c.Name()
	return f, nil
}
