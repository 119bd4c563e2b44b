package detectors

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

func TestNewPatternDetectorsRejectInsufficientData(t *testing.T) {
	f := flatFrame(3, 10, 11, 9, 10.5, 100)

	for name, fn := range map[string]func(*frame.Frame, int) Result{
		"SMA50Breakout":     SMA50Breakout,
		"VolumeSurge":       VolumeSurge,
		"PinDown":           PinDown,
		"PinUp":             PinUp,
		"ConsolidationBox":      ConsolidationBox,
		"ConsolidationBreakout": ConsolidationBreakout,
		"Confluence":        Confluence,
		"ChannelBreakout":   ChannelBreakout,
		"WedgeBreakout":     WedgeBreakout,
		"BullishEngulfing":  BullishEngulfing,
		"TrendBreakout":     TrendBreakout,
	} {
		if got := fn(f, -1); got.Detected {
			t.Errorf("%s: expected no detection on a 3-bar frame, got Detected=true", name)
		}
	}
}

func TestSMA50BreakoutFiresOnCloseReclaimAboveThreshold(t *testing.T) {
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]frame.Bar, 60)
	for i := 0; i < 59; i++ {
		rows[i] = frame.Bar{Ts: base.AddDate(0, 0, i), Open: 100, High: 101, Low: 99, Close: 100, Volume: 10}
	}
	// Final bar breaks well above the flat SMA50 with a low still under it.
	rows[59] = frame.Bar{Ts: base.AddDate(0, 0, 59), Open: 100, High: 110, Low: 95, Close: 108, Volume: 10}
	f := frame.New("binance", "BTCUSDT", frame.TF1d, rows)

	res := SMA50Breakout(f, -1)
	if !res.Detected {
		t.Fatalf("expected SMA50Breakout to detect the reclaim, got %+v", res)
	}
	if !res.Flags["regular"] {
		t.Errorf("expected the 'regular' priority classification, flags=%v", res.Flags)
	}
}

func TestSMA50BreakoutClassifiesRegularAtPlainSMAThreshold(t *testing.T) {
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]frame.Bar, 60)
	for i := 0; i < 59; i++ {
		rows[i] = frame.Bar{Ts: base.AddDate(0, 0, i), Open: 100, High: 101, Low: 99, Close: 100, Volume: 10}
	}
	// A modest reclaim: close barely clears the flat SMA50 and stays well
	// under the ATR-scaled upper_threshold. The "regular" classification
	// gates on plain sma50, not upper_threshold, so this must still fire
	// regular rather than falling through to pre_breakout.
	rows[59] = frame.Bar{Ts: base.AddDate(0, 0, 59), Open: 99, High: 100.5, Low: 98, Close: 100.2, Volume: 10}
	f := frame.New("binance", "BTCUSDT", frame.TF1d, rows)

	res := SMA50Breakout(f, -1)
	if !res.Detected || !res.Flags["regular"] {
		t.Fatalf("expected a 'regular' classification on a close that only clears plain sma50, got %+v", res)
	}
	if res.Flags["pre_breakout"] {
		t.Errorf("regular and pre_breakout should be mutually exclusive, got %+v", res)
	}
}

func TestVolumeSurgeRequiresVolumeAboveUpperBand(t *testing.T) {
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]frame.Bar, 68)
	for i := 0; i < 67; i++ {
		rows[i] = frame.Bar{Ts: base.AddDate(0, 0, i), Open: 10, High: 10.5, Low: 9.5, Close: 10, Volume: 100}
	}
	rows[66] = frame.Bar{Ts: base.AddDate(0, 0, 66), Open: 10, High: 10.5, Low: 9.5, Close: 10.2, Volume: 5000}
	rows[67] = frame.Bar{Ts: base.AddDate(0, 0, 67), Open: 10.2, High: 10.6, Low: 10.1, Close: 10.4, Volume: 100}
	f := frame.New("binance", "BTCUSDT", frame.TF1d, rows)

	res := VolumeSurge(f, -2)
	if !res.Detected {
		t.Fatalf("expected a volume surge on the spike bar, got %+v", res)
	}
}

func TestConsolidationBreakoutNoMatchWithoutPriorBox(t *testing.T) {
	// A steadily widening range never satisfies the box's height_pct/ATR
	// filters, so no active box ever forms and ConsolidationBreakout must
	// not fire regardless of how the final bar closes.
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
			Volume: 10,
		}
	}
	f := frame.New("binance", "BTCUSDT", frame.TF1d, rows)
	if res := ConsolidationBreakout(f, -1); res.Detected {
		t.Errorf("expected no box to have formed on a steadily widening range, got %+v", res)
	}
}

func TestChannelBreakoutNoMatchOnFlatSeries(t *testing.T) {
	f := flatFrame(40, 100, 100.2, 99.8, 100, 10)
	if res := ChannelBreakout(f, -1); res.Detected {
		t.Errorf("flat series has no fitted channel to break out of, got %+v", res)
	}
}
