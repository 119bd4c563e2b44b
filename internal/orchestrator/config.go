// Package orchestrator implements the Phased Orchestrator (C9): the
// fast/slow venue phase plan for one timeframe, the calendar gate for
// multi-timeframe runs, and the long-running scheduler state machine that
// drives ticks against candle-close boundaries.
package orchestrator

import (
	"time"

	"marketscanner/internal/scanner"
)

// composedStrategies names the strategies treated as "composed" for
// priority-group ordering (spec §4.8's "fast-venue composed strategies"
// group) rather than "primary".
var composedStrategies = map[string]bool{
	"hbs_breakout": true,
	"vs_wakeup":    true,
}

// Config collects the Phased Orchestrator's inputs (spec §4.8): the
// timeframes and strategies to run, which venues to scan, the recipient
// set and notification enablement for the Event Sink, a volume-gate
// override, and the bar-selection policy.
type Config struct {
	Timeframes        []string
	Strategies        []string
	Venues            []string
	RecipientSet      []string
	SendNotifications bool
	VolumeOverride    map[string]float64
	BarSelection      scanner.BarSelection

	// FastMaxExchanges bounds concurrent Exchange Scan Loops in the fast
	// phase (default 4).
	FastMaxExchanges int
	// SlowMaxExchanges bounds concurrent Exchange Scan Loops in the slow
	// phase (default 2).
	SlowMaxExchanges int
	// StartStagger is the randomized per-venue start delay upper bound
	// (default 250ms).
	StartStagger time.Duration
	// BreatherMin/BreatherMax bound the randomized pause between priority
	// groups (default 5-15s).
	BreatherMin time.Duration
	BreatherMax time.Duration

	BatchSize  int
	BatchSleep time.Duration
}

const (
	defaultFastMaxExchanges = 4
	defaultSlowMaxExchanges = 2
	defaultStartStagger     = 250 * time.Millisecond
	defaultBreatherMin      = 5 * time.Second
	defaultBreatherMax      = 15 * time.Second
)

func (c Config) withDefaults() Config {
	if c.FastMaxExchanges <= 0 {
		c.FastMaxExchanges = defaultFastMaxExchanges
	}
	if c.SlowMaxExchanges <= 0 {
		c.SlowMaxExchanges = defaultSlowMaxExchanges
	}
	if c.StartStagger <= 0 {
		c.StartStagger = defaultStartStagger
	}
	if c.BreatherMin <= 0 {
		c.BreatherMin = defaultBreatherMin
	}
	if c.BreatherMax <= 0 {
		c.BreatherMax = defaultBreatherMax
	}
	return c
}

func splitStrategies(names []string) (primary, composed []string) {
	for _, n := range names {
		if composedStrategies[n] {
			composed = append(composed, n)
		} else {
			primary = append(primary, n)
		}
	}
	return primary, composed
}
