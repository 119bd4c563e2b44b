package orchestrator

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"marketscanner/internal/frame"
)

func TestSplitStrategiesSeparatesComposed(t *testing.T) {
	primary, composed := splitStrategies([]string{"confluence", "hbs_breakout", "pin_up", "vs_wakeup"})
	if len(primary) != 2 || len(composed) != 2 {
		t.Fatalf("expected 2 primary and 2 composed, got primary=%v composed=%v", primary, composed)
	}
}

func TestFilterEnabledNilInputEmptyAllowListPassesThrough(t *testing.T) {
	// filterEnabled only needs Name(); a nil exchanges.Client slice input
	// with an empty allow-list is the no-filter identity case.
	if got := filterEnabled(nil, nil); got != nil {
		t.Errorf("expected nil passthrough, got %v", got)
	}
}

func TestIsFuturesVenueSuffixMatch(t *testing.T) {
	if !isFuturesVenue("binance_futures") {
		t.Error("expected binance_futures to be classified as a futures venue")
	}
	if isFuturesVenue("binance_spot") {
		t.Error("expected binance_spot not to be classified as a futures venue")
	}
}

func TestActiveTimeframesGatesOnCalendar(t *testing.T) {
	logger := zap.NewNop()
	cfg := Config{Timeframes: []string{frame.TF1d, frame.TF1w, frame.TF2d}}
	s := NewScheduler(logger, nil, cfg)

	monday := time.Date(2025, time.March, 24, 0, 0, 0, 0, time.UTC) // a Monday, and a 2d boundary (20+2*2)
	active := s.activeTimeframes(monday)

	seen := map[string]bool{}
	for _, tf := range active {
		seen[tf] = true
	}
	if !seen[frame.TF1d] {
		t.Error("expected 1d to always be active")
	}
	if !seen[frame.TF1w] {
		t.Error("expected 1w to be active on a Monday")
	}
	if !seen[frame.TF2d] {
		t.Error("expected 2d to be active on its period boundary")
	}

	tuesday := monday.AddDate(0, 0, 1)
	activeTue := s.activeTimeframes(tuesday)
	for _, tf := range activeTue {
		if tf == frame.TF1w {
			t.Error("expected 1w not to be active on a Tuesday")
		}
	}
}

func TestWaitUntilBoundaryRecomputesActiveAfterWait(t *testing.T) {
	logger := zap.NewNop()
	cfg := Config{Timeframes: []string{frame.TF1w}}
	s := NewScheduler(logger, nil, cfg)

	// Both instants are long in the past relative to the real clock, so the
	// computed wait is negative and waitUntilBoundary returns immediately
	// without actually sleeping.
	sunday := time.Date(2025, time.March, 23, 23, 50, 0, 0, time.UTC) // not a Monday
	monday := time.Date(2025, time.March, 24, 0, 1, 0, 0, time.UTC)   // the boundary it wakes up at

	calls := 0
	s.now = func() time.Time {
		calls++
		if calls == 1 {
			return sunday
		}
		return monday
	}

	active, ok := s.waitUntilBoundary(context.Background())
	if !ok {
		t.Fatal("expected waitUntilBoundary to return ok=true")
	}
	seen := map[string]bool{}
	for _, tf := range active {
		seen[tf] = true
	}
	if !seen[frame.TF1w] {
		t.Errorf("expected 1w to be active once recomputed against the post-wait Monday, got %v", active)
	}
}

func TestNextBoundaryPicksSoonestInterval(t *testing.T) {
	now := time.Date(2025, time.January, 1, 23, 0, 0, 0, time.UTC)
	b := nextBoundary([]string{frame.TF4h, frame.TF1d}, now)
	if !b.After(now) {
		t.Errorf("expected the next boundary to be in the future, got %v (now=%v)", b, now)
	}
}
