// Package scanner implements the Symbol Scanner (C7) and Exchange Scan
// Loop (C8): per-(venue, timeframe, symbol) frame acquisition, the volume
// gate, parallel strategy evaluation, and per-venue batching over the
// symbol list.
package scanner

import (
	"time"

	"marketscanner/internal/detectors"
)

// BarSelection is the configurable check_bar policy from spec §4.6 step 5.
type BarSelection string

const (
	// BarCurrent checks only the still-forming bar (check_bar=-1).
	BarCurrent BarSelection = "current"
	// BarLastClosed checks only the last fully closed bar (check_bar=-2).
	// This is the scanner's default.
	BarLastClosed BarSelection = "last_closed"
	// BarBoth runs each strategy at both -1 and -2, preferring the more
	// recent detection.
	BarBoth BarSelection = "both"
)

// defaultMinVolumeUSD holds the per-timeframe closed-bar USD volume floor
// below which a symbol is skipped silently (spec §4.6 step 3 / §7's
// VolumeFilter error kind).
var defaultMinVolumeUSD = map[string]float64{
	"1w": 500_000,
	"4d": 300_000,
	"3d": 200_000,
	"2d": 150_000,
	"1d": 75_000,
	"4h": 40_000,
}

// MinVolumeUSD returns the default USD volume floor for timeframe, or 0 if
// the timeframe carries no default (an unrecognized timeframe gates
// nothing, matching the defaults table's explicit enumeration).
func MinVolumeUSD(timeframe string) float64 {
	return defaultMinVolumeUSD[timeframe]
}

// scanTargetCount is the number of native bars requested per fetch: deep
// enough to warm up the slowest detector window (consolidation_box's
// bounded 300-bar backward scan) without forcing every venue to actually
// have that much history — detectors treat a shorter frame as
// InsufficientData, not an error.
const scanTargetCount = 300

// minFrameBars is the spec §4.6 step 2 floor below which a symbol produces
// no results at all.
const minFrameBars = 10

// Options configures a scan (both C7's single-symbol evaluation and C8's
// batching over a venue's symbol list).
type Options struct {
	// BarSelection is the check_bar policy; zero value resolves to
	// BarLastClosed.
	BarSelection BarSelection
	// MinVolumeUSD overrides the per-timeframe default volume floor when
	// non-zero (spec §4.6 step 3: "Override allowed").
	MinVolumeUSD float64
	// Strategies restricts evaluation to these registered strategy names;
	// nil runs every strategy in the registry.
	Strategies []string
	// BatchSize is the Exchange Scan Loop's fixed batch size (default 25).
	BatchSize int
	// BatchSleep separates batches for rate-limit friendliness (spec §4.7).
	BatchSleep time.Duration
}

// StrategyOutcome is one strategy's evaluated result plus the check_bar it
// was evaluated at, since BarBoth may resolve to either -1 or -2.
type StrategyOutcome struct {
	CheckBar int
	Result   detectors.Result
}

// SymbolResult is the Symbol Scanner's merged outcome for one
// (venue, timeframe, symbol): the raw frame-derived fields spec §4.6 step 6
// requires alongside every strategy's outcome, keyed by strategy name.
type SymbolResult struct {
	Venue     string
	Timeframe string
	Symbol    string

	Close                  float64
	VolumeUSD              float64
	CloseOffLow            float64
	ClosePositionIndicator float64

	Strategies map[string]StrategyOutcome
}
