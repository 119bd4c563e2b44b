package exchanges

import (
	"fmt"

	"go.uber.org/zap"
)

// Registry holds the constructed Client for every configured venue, keyed
// by venue name, and is built once at Orchestrator startup so that a
// misconfigured venue (an unknown venue name, or sf_mexc without a symbol
// list) fails fast rather than mid-scan.
type Registry struct {
	clients map[string]Client
}

// VenueConfig is the subset of per-venue configuration the registry needs:
// which venues to build and, for sf_mexc, its fixed symbol list.
type VenueConfig struct {
	Enabled     []string
	SFProxyPairs []string
}

// NewRegistry constructs a Client for every venue named in cfg.Enabled.
// An unknown venue name or an invalid construction (caught via
// RegistryError) is returned immediately.
func NewRegistry(logger *zap.Logger, cfg VenueConfig) (*Registry, error) {
	r := &Registry{clients: make(map[string]Client)}
	for _, name := range cfg.Enabled {
		c, err := buildClient(logger, name, cfg)
		if err != nil {
			return nil, err
		}
		r.clients[c.Name()] = c
	}
	return r, nil
}

func buildClient(logger *zap.Logger, name string, cfg VenueConfig) (Client, error) {
	switch name {
	case "binance_spot":
		return NewBinanceSpot(logger), nil
	case "binance_futures":
		return NewBinanceFutures(logger), nil
	case "bybit":
		return NewBybit(logger), nil
	case "okx":
		return NewOKX(logger), nil
	case "gateio":
		return NewGate(logger), nil
	case "kucoin":
		return NewKuCoin(logger), nil
	case "mexc":
		return NewMEXC(logger), nil
	case "sf_mexc":
		if len(cfg.SFProxyPairs) == 0 {
			return nil, &RegistryError{Venue: name, Err: fmt.Errorf("%w: sf_mexc requires a non-empty symbol list", ErrConfiguration)}
		}
		return NewSFProxy(logger, cfg.SFProxyPairs), nil
	default:
		return nil, &RegistryError{Venue: name, Err: fmt.Errorf("%w: unknown venue %q", ErrConfiguration, name)}
	}
}

// Get returns the constructed client for venue, or false if it was not
// enabled in configuration.
func (r *Registry) Get(venue string) (Client, bool) {
	c, ok := r.clients[venue]
	return c, ok
}

// All returns every constructed client, in no particular order.
func (r *Registry) All() []Client {
	out := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// BySpeed returns clients split into fast and slow speed classes, the
// grouping the Phased Orchestrator schedules on (spec §4.8/§4.9).
func (r *Registry) BySpeed() (fast, slow []Client) {
	for _, c := range r.clients {
		if c.Speed() == SpeedFast {
			fast = append(fast, c)
		} else {
			slow = append(slow, c)
		}
	}
	return fast, slow
}
