package detectors

import "marketscanner/internal/frame"

const pinWickThreshold = 0.85

// bearishTopAt reports the "bearish top" exhaustion condition at bars[i]:
// a bearish candle poking above the recent highs on a range tight enough to
// sit inside ATR(3) of both the running high and the running highest close.
// Shared grounding for PinDown (custom_strategies/pin_down.py) and the
// bearish half of trend_breakout's flagup filter.
func bearishTopAt(bars []frame.Bar, i int) bool {
	if i < 2 {
		return false
	}
	atrWin := bars[i-2 : i+1]
	atr3 := maxOf(highs(atrWin)) - minOf(lows(atrWin))

	b := bars[i]
	upperBody := b.Open
	if b.Close > upperBody {
		upperBody = b.Close
	}
	lowerBody := b.Open
	if b.Close < lowerBody {
		lowerBody = b.Close
	}
	highWick := b.High - upperBody
	lowWick := lowerBody - b.Low
	bodySize := absF(b.Open - b.Close)

	highUpperWick := highWick >= pinWickThreshold*bodySize && highWick > lowWick
	bearishCandle := highUpperWick || highWick > (upperBody-b.Low)

	lookback := 50
	start := i - lookback + 1
	if start < 0 {
		start = 0
	}
	hist := bars[start : i+1]
	highestClose50 := maxOf(closes(hist))
	highestHigh50 := maxOf(highs(hist))

	insideBar := b.High < bars[i-1].High && b.Low > bars[i-1].Low

	return bearishCandle &&
		b.High > highestClose50 &&
		(b.High-b.Close) < atr3 &&
		absF(b.High-highestHigh50) < atr3 &&
		!insideBar &&
		(b.High-b.Close) > (b.Close-b.Low)
}

// lastBearishTop scans backward from idx (inclusive) for the most recent
// bar satisfying bearishTopAt, mirroring the original's forward
// bars_since()/ffill() bookkeeping without the mutable forward pass.
func lastBearishTop(bars []frame.Bar, idx int) (i int, low float64, found bool) {
	for j := idx; j >= 0; j-- {
		if bearishTopAt(bars, j) {
			return j, bars[j].Low, true
		}
	}
	return 0, 0, false
}

func pinDownAt(bars []frame.Bar, idx int) bool {
	if idx < 2 {
		return false
	}
	topIdx, topLow, found := lastBearishTop(bars, idx)
	if !found || idx-topIdx >= 4 {
		return false
	}
	outsideBar := bars[idx].High > bars[idx-1].High && bars[idx].Low < bars[idx-1].Low
	return bars[idx].Close < topLow && !outsideBar
}

// PinDown detects the close crossing back below the low of a recent bearish
// exhaustion top within 4 bars, signalling renewed downside pressure.
// Grounded on custom_strategies/pin_down.py's detect_pin_down.
func PinDown(f *frame.Frame, checkBar int) Result {
	_, idx, ok := f.At(checkBar)
	if !ok || idx < 3 {
		return noMatch()
	}
	bars := f.Bars

	now := pinDownAt(bars, idx)
	prev := pinDownAt(bars, idx-1)
	detected := now && now != prev
	if !detected {
		return noMatch()
	}

	bar := bars[idx]
	topIdx, _, _ := lastBearishTop(bars, idx)
	bodySize := absF(bar.Open - bar.Close)
	wickRatio := 0.0
	if bodySize > 0 {
		upperBody := bar.Open
		if bar.Close > upperBody {
			upperBody = bar.Close
		}
		wickRatio = (bar.High - upperBody) / bodySize
	}

	volWin, okVol := window(bars, idx-1, 8)
	volumeRatio := 1.0
	if okVol {
		volumeRatio = bar.Volume / meanOf(volumes(volWin))
	}

	return Result{
		Detected: true,
		Index:    idx,
		Ts:       bar.Ts,
		Data: map[string]float64{
			"bearishtop_dist": float64(idx - topIdx),
			"high_wick_ratio": wickRatio,
			"volume_ratio":    volumeRatio,
		},
	}
}
