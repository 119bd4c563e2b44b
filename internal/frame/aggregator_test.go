package frame

import (
	"testing"
	"time"
)

func dailyBar(dateStr string, o, h, l, c, v float64) Bar {
	t, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		panic(err)
	}
	return Bar{Ts: t, Open: o, High: h, Low: l, Close: c, Volume: v}
}

// Scenario A: 8 consecutive daily bars anchored so day 0 is 2025-03-20;
// aggregate(F, "2d") must produce 4 bars with timestamps on 03-20, 03-22,
// 03-24, 03-26.
func TestAggregate2dScenarioA(t *testing.T) {
	dates := []string{"2025-03-20", "2025-03-21", "2025-03-22", "2025-03-23",
		"2025-03-24", "2025-03-25", "2025-03-26", "2025-03-27"}
	var bars []Bar
	for i, d := range dates {
		base := float64(100 + i)
		bars = append(bars, dailyBar(d, base, base+2, base-1, base+1, 10))
	}
	src := New("binance", "BTCUSDT", TF1d, bars)

	out, err := Aggregate(src, TF2d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Bars) != 4 {
		t.Fatalf("expected 4 bars, got %d", len(out.Bars))
	}
	want := []string{"2025-03-20", "2025-03-22", "2025-03-24", "2025-03-26"}
	for i, w := range want {
		wt, _ := time.Parse("2006-01-02", w)
		if !out.Bars[i].Ts.Equal(wt) {
			t.Errorf("bar %d: got ts %v, want %v", i, out.Bars[i].Ts, wt)
		}
	}
}

func TestAggregateOHLCVIdentities(t *testing.T) {
	bars := []Bar{
		dailyBar("2025-03-20", 10, 15, 9, 12, 100),
		dailyBar("2025-03-21", 12, 20, 11, 18, 200),
	}
	// Eight more days lift the source to Aggregate's 10-bar minimum; only
	// the first 2d period (03-20/03-21) is checked below.
	for _, d := range []string{"2025-03-22", "2025-03-23", "2025-03-24", "2025-03-25",
		"2025-03-26", "2025-03-27", "2025-03-28", "2025-03-29"} {
		bars = append(bars, dailyBar(d, 18, 19, 17, 18, 1))
	}
	src := New("binance", "ETHUSDT", TF1d, bars)
	out, err := Aggregate(src, TF2d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Bars) != 5 {
		t.Fatalf("expected 5 bars, got %d", len(out.Bars))
	}
	got := out.Bars[0]
	if got.Open != 10 {
		t.Errorf("open = %v, want 10 (first)", got.Open)
	}
	if got.Close != 18 {
		t.Errorf("close = %v, want 18 (last)", got.Close)
	}
	if got.High != 20 {
		t.Errorf("high = %v, want 20 (max)", got.High)
	}
	if got.Low != 9 {
		t.Errorf("low = %v, want 9 (min)", got.Low)
	}
	if got.Volume != 300 {
		t.Errorf("volume = %v, want 300 (sum)", got.Volume)
	}
}

// Aggregation determinism + prefix commutation (invariant 1).
func TestAggregateDeterministicAndPrefixCommutes(t *testing.T) {
	var bars []Bar
	d := time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		base := float64(50 + i)
		bars = append(bars, Bar{Ts: d.AddDate(0, 0, i), Open: base, High: base + 3, Low: base - 2, Close: base + 1, Volume: 5})
	}
	full := New("bybit", "SOLUSDT", TF1d, bars)

	a1, err := Aggregate(full, TF3d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a2, err := Aggregate(full, TF3d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a1.Bars) != len(a2.Bars) {
		t.Fatalf("non-deterministic: %d vs %d bars", len(a1.Bars), len(a2.Bars))
	}
	for i := range a1.Bars {
		if a1.Bars[i] != a2.Bars[i] {
			t.Fatalf("non-deterministic bar %d: %+v vs %+v", i, a1.Bars[i], a2.Bars[i])
		}
	}

	// Prefix commutation: aggregating a prefix equals the prefix of the
	// full aggregation over complete periods.
	prefix := full.Prefix(12) // exactly 4 complete 3d periods
	aPrefix, err := Aggregate(prefix, TF3d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(aPrefix.Bars) != 4 {
		t.Fatalf("expected 4 complete periods, got %d", len(aPrefix.Bars))
	}
	for i := 0; i < 4; i++ {
		if aPrefix.Bars[i] != a1.Bars[i] {
			t.Errorf("prefix bar %d mismatch: %+v vs %+v", i, aPrefix.Bars[i], a1.Bars[i])
		}
	}
}

func TestAggregateWeeklyMondayAnchor(t *testing.T) {
	var bars []Bar
	// 2025-03-17 is a Monday.
	d := time.Date(2025, time.March, 17, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 14; i++ {
		base := float64(100 + i)
		bars = append(bars, Bar{Ts: d.AddDate(0, 0, i), Open: base, High: base + 2, Low: base - 1, Close: base + 1, Volume: 1})
	}
	src := New("okx", "BTC-USDT", TF1d, bars)
	out, err := Weekly(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Bars) != 2 {
		t.Fatalf("expected 2 weekly bars, got %d", len(out.Bars))
	}
	for _, b := range out.Bars {
		if b.Ts.Weekday() != time.Monday {
			t.Errorf("bar ts %v is not a Monday", b.Ts)
		}
	}
}

// When the source frame's leading edge falls mid-period (the realistic
// case for a backward-paged Exchange Client fetch, which has no reason to
// start exactly on a 2d/3d/4d anchor), the first aggregated bar must still
// carry the period's own boundary timestamp, not the first bar actually
// present (spec §8 invariant 2).
func TestAggregate2dOffAnchorStartUsesPeriodBoundary(t *testing.T) {
	dates := []string{"2025-03-21", "2025-03-22", "2025-03-23", "2025-03-24",
		"2025-03-25", "2025-03-26", "2025-03-27", "2025-03-28", "2025-03-29", "2025-03-30"}
	var bars []Bar
	for i, d := range dates {
		base := float64(100 + i)
		bars = append(bars, dailyBar(d, base, base+2, base-1, base+1, 10))
	}
	src := New("binance", "BTCUSDT", TF1d, bars)

	out, err := Aggregate(src, TF2d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Bars) == 0 {
		t.Fatalf("expected at least one bar")
	}

	wantFirst, _ := time.Parse("2006-01-02", "2025-03-20")
	if !out.Bars[0].Ts.Equal(wantFirst) {
		t.Errorf("first bar ts = %v, want period boundary %v (not the leading source bar's own ts)", out.Bars[0].Ts, wantFirst)
	}
	// The lone contributing bar for that leading partial period is 03-21,
	// so the emitted OHLC must still come from it even though Ts doesn't.
	if out.Bars[0].Open != 100 {
		t.Errorf("first bar open = %v, want 100 (from the 03-21 bar)", out.Bars[0].Open)
	}
}

func TestAggregateInsufficientData(t *testing.T) {
	bars := []Bar{
		dailyBar("2025-03-20", 1, 2, 0.5, 1.5, 1),
		dailyBar("2025-03-21", 1, 2, 0.5, 1.5, 1),
	}
	src := New("binance", "BTCUSDT", TF1d, bars)
	if _, err := Aggregate(src, TF2d); err != ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}
