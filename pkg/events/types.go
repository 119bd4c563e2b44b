// Package events holds wire-level value types for outside consumers: a
// public mirror of one Event Store record and a scan-progress line. Both
// are plain structs with no behavior, kept separate from internal/sink's
// richer in-process types so an external consumer never needs to import an
// internal package. No package in this module constructs or sends either
// type; the Event Store persists internal/sink.EventRecord values.
package events

import "time"

// DetectionEvent is the wire-level shape of one Event Sink record (C10):
// the deduplicated (symbol, venue, timeframe, bar_ts) unit spec §4.9
// describes, with its boolean strategy flags and typed companion fields.
type DetectionEvent struct {
	Symbol       string             `json:"symbol"`
	Venue        string             `json:"venue"`
	Timeframe    string             `json:"timeframe"`
	BarTs        time.Time          `json:"bar_ts"`
	Strategies   map[string]bool    `json:"strategies"`
	Direction    int                `json:"direction"`
	Strength     string             `json:"strength"`
	BreakoutType string             `json:"breakout_type,omitempty"`
	Data         map[string]float64 `json:"data,omitempty"`
}

func (e DetectionEvent) GetType() string         { return "detection" }
func (e DetectionEvent) GetSymbol() string       { return e.Symbol }
func (e DetectionEvent) GetExchange() string     { return e.Venue }
func (e DetectionEvent) GetTimestamp() time.Time { return e.BarTs }

// ScanProgress describes the progress of one Phased Orchestrator priority
// group (spec §4.8) for an external dashboard. The orchestrator does not
// emit it, and nothing in this module broadcasts it.
type ScanProgress struct {
	Timeframe     string    `json:"timeframe"`
	Group         string    `json:"group"`
	VenuesScanned int       `json:"venues_scanned"`
	SymbolsSeen   int       `json:"symbols_seen"`
	Timestamp     time.Time `json:"timestamp"`
}

func (p ScanProgress) GetType() string         { return "scan_progress" }
func (p ScanProgress) GetSymbol() string       { return "" }
func (p ScanProgress) GetExchange() string     { return "" }
func (p ScanProgress) GetTimestamp() time.Time { return p.Timestamp }
