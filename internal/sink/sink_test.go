package sink

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"marketscanner/internal/detectors"
	"marketscanner/internal/scanner"
)

func outcome(ts time.Time, flags map[string]bool) scanner.StrategyOutcome {
	return scanner.StrategyOutcome{
		CheckBar: -2,
		Result:   detectors.Result{Detected: true, Ts: ts, Flags: flags, Data: map[string]float64{}},
	}
}

func TestBuildRecordsSkipsStrategiesNotInAllowlist(t *testing.T) {
	ts := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	sr := scanner.SymbolResult{
		Venue: "binance", Symbol: "BTCUSDT", Timeframe: "1d",
		Strategies: map[string]scanner.StrategyOutcome{
			"breakout_bar": outcome(ts, nil),
			"confluence":   outcome(ts, map[string]bool{"high_volume": true}),
		},
	}

	recs := BuildRecords(sr)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if !recs[0].Flags["confluence"] {
		t.Error("expected confluence flag set")
	}
	if recs[0].Flags["breakout_bar"] {
		t.Error("breakout_bar is not in the allowlist and should not appear")
	}
}

func TestBuildRecordsGroupsByBarTimestamp(t *testing.T) {
	ts1 := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	ts2 := ts1.Add(24 * time.Hour)
	sr := scanner.SymbolResult{
		Venue: "binance", Symbol: "BTCUSDT", Timeframe: "1d",
		Strategies: map[string]scanner.StrategyOutcome{
			"confluence":             outcome(ts1, nil),
			"consolidation_breakout": outcome(ts2, map[string]bool{"break_up": true, "strong": true}),
		},
	}

	recs := BuildRecords(sr)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records (different bar timestamps), got %d", len(recs))
	}
}

func TestBuildRecordsDerivesCompanionFields(t *testing.T) {
	ts := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	sr := scanner.SymbolResult{
		Venue: "binance", Symbol: "BTCUSDT", Timeframe: "1d",
		Strategies: map[string]scanner.StrategyOutcome{
			"consolidation_breakout": outcome(ts, map[string]bool{"break_up": true, "strong": true}),
		},
	}

	recs := BuildRecords(sr)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Direction != 1 {
		t.Errorf("expected direction +1, got %d", rec.Direction)
	}
	if rec.Strength != "Strong" {
		t.Errorf("expected Strong, got %s", rec.Strength)
	}
	if rec.BreakoutType != "regular" {
		t.Errorf("expected regular, got %s", rec.BreakoutType)
	}
}

func TestBuildRecordsDefaultsStrengthToRegular(t *testing.T) {
	ts := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	sr := scanner.SymbolResult{
		Venue: "binance", Symbol: "BTCUSDT", Timeframe: "1d",
		Strategies: map[string]scanner.StrategyOutcome{
			"confluence": outcome(ts, nil),
		},
	}

	recs := BuildRecords(sr)
	if recs[0].Strength != "Regular" {
		t.Errorf("expected default strength Regular, got %s", recs[0].Strength)
	}
}

func TestEventRecordKeyIncludesAllFourComponents(t *testing.T) {
	ts := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	rec := EventRecord{Venue: "binance", Symbol: "BTCUSDT", Timeframe: "1d", BarTs: ts}
	key := rec.Key()
	for _, part := range []string{"binance", "BTCUSDT", "1d", fmt.Sprint(ts.Unix())} {
		if !strings.Contains(key, part) {
			t.Errorf("expected key %q to contain %q", key, part)
		}
	}
}

func TestChunkTextSplitsOnLineBoundaries(t *testing.T) {
	lines := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		lines = append(lines, strings.Repeat("x", 30))
	}
	text := strings.Join(lines, "\n")

	chunks := chunkText(text, maxChunkChars)
	if len(chunks) < 2 {
		t.Fatalf("expected text longer than the budget to split into multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > maxChunkChars {
			t.Errorf("chunk exceeds budget: %d > %d", len(c), maxChunkChars)
		}
	}
}

func TestChunkTextReturnsSingleChunkWhenUnderBudget(t *testing.T) {
	chunks := chunkText("short message", maxChunkChars)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestSummarizeRecordListsFiredStrategies(t *testing.T) {
	ts := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	rec := EventRecord{
		Venue: "binance", Symbol: "BTCUSDT", Timeframe: "1d", BarTs: ts,
		Flags: map[string]bool{"confluence": true, "sma50_breakout": false},
		Direction: 1, Strength: "Strong", BreakoutType: "regular",
	}
	summary := SummarizeRecord(rec)
	if !strings.Contains(summary, "confluence") {
		t.Errorf("expected summary to mention confluence, got %q", summary)
	}
	if strings.Contains(summary, "sma50_breakout") {
		t.Errorf("expected summary not to mention an unfired strategy, got %q", summary)
	}
	if !strings.Contains(summary, "up") || !strings.Contains(summary, "Strong") {
		t.Errorf("expected summary to mention direction and strength, got %q", summary)
	}
}
