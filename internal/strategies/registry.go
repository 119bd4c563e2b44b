// Package strategies implements the strategy registry (C6): every primitive
// detector and every composed strategy is registered under a name, and
// composed strategies look up and call their primitive dependencies through
// the same registry rather than duplicating detector logic inline.
package strategies

import (
	"fmt"

	"marketscanner/internal/detectors"
	"marketscanner/internal/frame"
)

// Strategy is the common shape of every registered primitive detector and
// composed strategy: a pure function over a Frame and a check_bar index.
type Strategy func(f *frame.Frame, checkBar int) detectors.Result

// Registry holds every strategy keyed by name, built once at startup.
// Mirrors exchanges.Registry's fail-fast construction: an unknown strategy
// name is a configuration error, not a silent no-op.
type Registry struct {
	strategies map[string]Strategy
}

// RegistryError wraps a strategy-registry failure with the offending name.
type RegistryError struct {
	Name string
	Err  error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("strategy %q: %v", e.Name, e.Err)
}

func (e *RegistryError) Unwrap() error { return e.Err }

// NewDefaultRegistry builds the registry with every primitive detector
// (C5) and every composed strategy (C6) this module implements.
func NewDefaultRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}

	r.Register("breakout_bar", detectors.BreakoutBar)
	r.Register("stop_bar", detectors.StopBar)
	r.Register("reversal_bar", detectors.ReversalBar)
	r.Register("loaded_bar", detectors.LoadedBar)
	r.Register("test_bar", detectors.TestBar)
	r.Register("start_bar", detectors.StartBar)
	r.Register("sma50_breakout", detectors.SMA50Breakout)
	r.Register("volume_surge", detectors.VolumeSurge)
	r.Register("pin_down", detectors.PinDown)
	r.Register("pin_up", detectors.PinUp)
	r.Register("consolidation_box", detectors.ConsolidationBox)
	r.Register("consolidation_breakout", detectors.ConsolidationBreakout)
	r.Register("confluence", detectors.Confluence)
	r.Register("confluence_wakeup", detectors.ConfluenceWakeup)
	r.Register("channel_breakout", detectors.ChannelBreakout)
	r.Register("wedge_breakout", detectors.WedgeBreakout)
	r.Register("bullish_engulfing", detectors.BullishEngulfing)
	r.Register("trend_breakout", detectors.TrendBreakout)

	r.Register("hbs_breakout", r.hbsBreakout)
	r.Register("vs_wakeup", r.vsWakeup)

	return r
}

// Register adds or overwrites the strategy stored under name.
func (r *Registry) Register(name string, s Strategy) {
	r.strategies[name] = s
}

// Get returns the strategy registered under name, or a RegistryError if
// none is registered — callers at the scan-loop boundary should treat this
// as a ConfigurationError per the error-handling design.
func (r *Registry) Get(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, &RegistryError{Name: name, Err: fmt.Errorf("not registered")}
	}
	return s, nil
}

// Run looks up name and evaluates it against f at checkBar in one step.
func (r *Registry) Run(name string, f *frame.Frame, checkBar int) (detectors.Result, error) {
	s, err := r.Get(name)
	if err != nil {
		return detectors.Result{}, err
	}
	return s(f, checkBar), nil
}

// Names returns every registered strategy name, in no particular order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		out = append(out, name)
	}
	return out
}
