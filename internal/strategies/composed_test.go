package strategies

import (
	"testing"
	"time"

	"marketscanner/internal/frame"
)

func flatFrame(n int, open, high, low, close, volume float64) *frame.Frame {
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]frame.Bar, n)
	for i := 0; i < n; i++ {
		rows[i] = frame.Bar{
			Ts:     base.AddDate(0, 0, i),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: volume,
		}
	}
	return frame.New("binance", "BTCUSDT", frame.TF1d, rows)
}

func TestRegistryGetUnknownStrategyErrors(t *testing.T) {
	r := NewDefaultRegistry()
	if _, err := r.Get("not_a_real_strategy"); err == nil {
		t.Fatal("expected an error for an unregistered strategy name")
	}
}

func TestRegistryRunsEveryRegisteredPrimitive(t *testing.T) {
	r := NewDefaultRegistry()
	f := flatFrame(30, 10, 10.2, 9.8, 10, 100)
	for _, name := range r.Names() {
		res, err := r.Run(name, f, -1)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
		}
		if res.Detected {
			t.Errorf("%s: expected no detection on a short flat frame", name)
		}
	}
}

func TestHBSBreakoutRequiresConfluence(t *testing.T) {
	r := NewDefaultRegistry()
	// A perfectly flat series never satisfies confluence's spread/volume/
	// momentum pillars, so hbs_breakout must not fire even if a channel or
	// consolidation breakout happened to be registered separately.
	f := flatFrame(60, 100, 100.2, 99.8, 100, 10)
	res, err := r.Run("hbs_breakout", f, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Detected {
		t.Errorf("expected hbs_breakout to require confluence, got %+v", res)
	}
}

func TestVSWakeupRequiresAnActiveBox(t *testing.T) {
	r := NewDefaultRegistry()
	// Steadily widening range (see ConsolidationBreakout's own test): no
	// box ever forms, so vs_wakeup must not fire regardless of volume.
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]frame.Bar, 40)
	for i := 0; i < 40; i++ {
		widen := float64(i) * 2.0
		rows[i] = frame.Bar{
			Ts:     base.AddDate(0, 0, i),
			Open:   100,
			High:   100 + 1 + widen,
			Low:    100 - 1 - widen,
			Close:  100,
			Volume: 10000,
		}
	}
	f := frame.New("binance", "BTCUSDT", frame.TF1d, rows)
	res, err := r.Run("vs_wakeup", f, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Detected {
		t.Errorf("expected vs_wakeup to require an active box, got %+v", res)
	}
}
