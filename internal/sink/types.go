// Package sink implements the Event Sink (C10) and the notification sink
// side of the external interfaces in spec §4.9/§6: mapping per-strategy
// scan results onto deduplicated, typed event records and forwarding a
// human-readable summary to a chat-style broadcast channel.
package sink

import (
	"fmt"
	"time"

	"marketscanner/internal/detectors"
	"marketscanner/internal/scanner"
)

// AllowedStrategies is the strict subset of strategy names forwarded to the
// event store; every other strategy's result is scan-session-only and never
// reaches the record mapping below.
var AllowedStrategies = map[string]bool{
	"confluence":             true,
	"consolidation_breakout": true,
	"channel_breakout":       true,
	"sma50_breakout":         true,
	"pin_up":                 true,
	"trend_breakout":         true,
	"loaded_bar":             true,
	"bullish_engulfing":      true,
}

// EventRecord is the deduplicated unit of persistence keyed by
// (symbol, venue, timeframe, bar_ts); multiple allowed strategies detected
// on the same bar set flags on the same record rather than producing one
// record each.
type EventRecord struct {
	Symbol    string
	Venue     string
	Timeframe string
	BarTs     time.Time

	// Flags holds one entry per allowed strategy that fired on this bar.
	Flags map[string]bool

	// Direction is -1/0/+1 per spec §4.9's typed companion fields.
	Direction int
	// Strength is "Strong" or "Regular".
	Strength string
	// BreakoutType is "regular" or "pre_breakout"; empty when no forwarded
	// strategy on this record carries breakout-type semantics.
	BreakoutType string

	// Data holds strategy-namespaced numeric companion fields (ages,
	// heights, slopes) copied from each detector's own Data map.
	Data map[string]float64
}

// Key returns the composite dedup key (symbol, venue, timeframe, bar_ts).
func (e EventRecord) Key() string {
	return fmt.Sprintf("%s|%s|%s|%d", e.Venue, e.Symbol, e.Timeframe, e.BarTs.Unix())
}

// BuildRecords maps one Symbol Scanner outcome onto zero or more
// EventRecords, grouping allowed-strategy detections by the bar timestamp
// they fired on (under BarSelection "both" one strategy may have fired at
// check_bar -1 and another only at -2; those two bars must not collapse
// onto one record).
func BuildRecords(sr scanner.SymbolResult) []EventRecord {
	byTs := make(map[int64]*EventRecord)

	for name, outcome := range sr.Strategies {
		if !AllowedStrategies[name] || !outcome.Result.Detected {
			continue
		}
		res := outcome.Result
		rec, ok := byTs[res.Ts.Unix()]
		if !ok {
			rec = &EventRecord{
				Symbol:    sr.Symbol,
				Venue:     sr.Venue,
				Timeframe: sr.Timeframe,
				BarTs:     res.Ts,
				Flags:     make(map[string]bool),
				Data:      make(map[string]float64),
			}
			byTs[res.Ts.Unix()] = rec
		}

		rec.Flags[name] = true
		for k, v := range res.Data {
			rec.Data[name+"_"+k] = v
		}
		applyCompanionFields(rec, name, res)
	}

	out := make([]EventRecord, 0, len(byTs))
	for _, rec := range byTs {
		if rec.Strength == "" {
			rec.Strength = "Regular"
		}
		out = append(out, *rec)
	}
	return out
}

// applyCompanionFields derives the typed direction/strength/breakout_type
// fields from a single allowed strategy's own flags, since the primitive
// detectors (unlike the composed strategies) carry no Labels of their own.
// Later strategies in the iteration only overwrite a zero-value field, so
// the first strategy on a record to express an opinion about direction or
// strength wins.
func applyCompanionFields(rec *EventRecord, name string, res detectors.Result) {
	switch name {
	case "consolidation_breakout", "channel_breakout":
		if res.Flags["break_up"] {
			setDirection(rec, 1)
		} else if res.Flags["break_down"] {
			setDirection(rec, -1)
		}
		if name == "consolidation_breakout" {
			if res.Flags["strong"] {
				setStrength(rec, "Strong")
				setBreakoutType(rec, "regular")
			} else {
				setBreakoutType(rec, "pre_breakout")
			}
		}
	case "sma50_breakout":
		setDirection(rec, 1)
		if res.Flags["regular"] {
			setBreakoutType(rec, "regular")
		} else if res.Flags["pre_breakout"] {
			setBreakoutType(rec, "pre_breakout")
		}
	case "pin_up", "bullish_engulfing", "trend_breakout", "loaded_bar":
		setDirection(rec, 1)
	}
}

func setDirection(rec *EventRecord, d int) {
	if rec.Direction == 0 {
		rec.Direction = d
	}
}

func setStrength(rec *EventRecord, s string) {
	if rec.Strength == "" {
		rec.Strength = s
	}
}

func setBreakoutType(rec *EventRecord, t string) {
	if rec.BreakoutType == "" {
		rec.BreakoutType = t
	}
}
