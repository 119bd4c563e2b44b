package frame

import (
	"math"
	"testing"
	"time"
)

func TestBarValid(t *testing.T) {
	cases := []struct {
		name string
		b    Bar
		want bool
	}{
		{"ok", Bar{Open: 10, High: 12, Low: 9, Close: 11, Volume: 5}, true},
		{"high below close", Bar{Open: 10, High: 10.5, Low: 9, Close: 11, Volume: 5}, false},
		{"negative volume", Bar{Open: 10, High: 12, Low: 9, Close: 11, Volume: -1}, false},
		{"nan", Bar{Open: math.NaN(), High: 12, Low: 9, Close: 11, Volume: 5}, false},
	}
	for _, tc := range cases {
		if got := tc.b.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNewDropsInvalidSortsAndDedupes(t *testing.T) {
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows := []Bar{
		{Ts: base.AddDate(0, 0, 1), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 1},
		{Ts: base, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 1},
		{Ts: base, Open: 1, High: 2, Low: 0.5, Close: 1.9, Volume: 2}, // duplicate ts, should win (last wins)
		{Ts: base.AddDate(0, 0, 2), Open: math.NaN(), High: 2, Low: 0.5, Close: 1.5, Volume: 1},
	}
	f := New("binance", "BTCUSDT", TF1d, rows)
	if f.Len() != 2 {
		t.Fatalf("expected 2 bars after dedupe/drop, got %d", f.Len())
	}
	if !f.Bars[0].Ts.Equal(base) {
		t.Errorf("expected first bar at base ts, got %v", f.Bars[0].Ts)
	}
	if f.Bars[0].Close != 1.9 {
		t.Errorf("expected duplicate to keep last-seen close 1.9, got %v", f.Bars[0].Close)
	}
}

func TestFrameAt(t *testing.T) {
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	var rows []Bar
	for i := 0; i < 5; i++ {
		rows = append(rows, Bar{Ts: base.AddDate(0, 0, i), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 1})
	}
	f := New("binance", "BTCUSDT", TF1d, rows)

	bar, idx, ok := f.At(-1)
	if !ok || idx != 4 {
		t.Fatalf("At(-1) = idx %d ok %v, want idx 4 ok true", idx, ok)
	}
	_ = bar

	_, _, ok = f.At(-10)
	if ok {
		t.Fatalf("At(-10) should be out of range")
	}

	if !IsCurrentBar(-1) || IsCurrentBar(-2) {
		t.Fatalf("IsCurrentBar classification wrong")
	}
}
