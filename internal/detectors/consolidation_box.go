package detectors

import "marketscanner/internal/frame"

const (
	boxWindow        = 7
	boxMaxHeightPct  = 35.0
	boxAtrLen        = 14
	boxAtrSMA        = 7
	boxAtrK          = 0.9
	boxBackwardLimit = 300
)

// wilderATRSeries returns the Wilder-smoothed ATR and its SMA(atrSMA) over
// bars[0:upto+1], mirroring consolidation.py's recursive alpha=1/atrLen
// smoothing. Index i of the returned slices is NaN-equivalent (ok=false)
// until the series has enough history.
func wilderATRSeries(bars []frame.Bar, atrLen, atrSMA, upto int) (atr []float64, atrOK []bool) {
	n := upto + 1
	atr = make([]float64, n)
	atrOK = make([]bool, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		hl := bars[i].High - bars[i].Low
		hc := absF(bars[i].High - bars[i-1].Close)
		lc := absF(bars[i].Low - bars[i-1].Close)
		tr[i] = hl
		if hc > tr[i] {
			tr[i] = hc
		}
		if lc > tr[i] {
			tr[i] = lc
		}
	}
	if n < atrLen {
		return atr, atrOK
	}
	sum := 0.0
	for i := 0; i < atrLen; i++ {
		sum += tr[i]
	}
	atr[atrLen-1] = sum / float64(atrLen)
	atrOK[atrLen-1] = true
	alpha := 1.0 / float64(atrLen)
	for i := atrLen; i < n; i++ {
		atr[i] = atr[i-1] + alpha*(tr[i]-atr[i-1])
		atrOK[i] = true
	}
	return atr, atrOK
}

func atrSlowOK(atr []float64, atrOK []bool, atrSMA, i int) (float64, bool) {
	if i-atrSMA+1 < 0 {
		return 0, false
	}
	for j := i - atrSMA + 1; j <= i; j++ {
		if !atrOK[j] {
			return 0, false
		}
	}
	return meanOf(atr[i-atrSMA+1 : i+1]), true
}

func boxRangeHighLow(bars []frame.Bar, i int) (hi, lo float64, ok bool) {
	win, ok := window(bars, i, boxWindow)
	if !ok {
		return 0, 0, false
	}
	return maxOf(highs(win)), minOf(lows(win)), true
}

func boxHeightPct(bars []frame.Bar, i int) (float64, bool) {
	hi, lo, ok := boxRangeHighLow(bars, i)
	if !ok || hi+lo == 0 {
		return 0, false
	}
	return 200.0 * (hi - lo) / (hi + lo), true
}

func boxCondNow(bars []frame.Bar, atr []float64, atrOK []bool, i int) bool {
	if i < 0 {
		return false
	}
	hp, ok := boxHeightPct(bars, i)
	if !ok || hp > boxMaxHeightPct {
		return false
	}
	if !atrOK[i] {
		return false
	}
	slow, ok := atrSlowOK(atr, atrOK, boxAtrSMA, i)
	if !ok {
		return false
	}
	return atr[i] < boxAtrK*slow
}

func boxMinLen() int {
	minLen := boxAtrLen + boxAtrSMA
	if boxWindow > minLen {
		minLen = boxWindow
	}
	return minLen
}

// activeBox scans backward from upto for the most recent box-formation
// event whose bounds the price has not broken through bars[entry+1:upto+1],
// replacing consolidation.py's forward mutable active-box list with a
// single backward lookup — equivalent for a single checked bar since a
// box that survives every bar up to upto is exactly the one still active
// at upto.
func activeBox(bars []frame.Bar, atr []float64, atrOK []bool, upto int) (hi, lo float64, entry int, found bool) {
	minLen := boxMinLen()
	limit := upto - boxBackwardLimit
	if limit < minLen {
		limit = minLen
	}
	for j := upto; j >= limit; j-- {
		if !boxCondNow(bars, atr, atrOK, j) || boxCondNow(bars, atr, atrOK, j-1) {
			continue
		}
		h, l, ok := boxRangeHighLow(bars, j)
		if !ok {
			continue
		}
		survives := true
		for k := j + 1; k <= upto; k++ {
			if bars[k].Close > h || bars[k].Close < l {
				survives = false
				break
			}
		}
		if survives {
			return h, l, j, true
		}
	}
	return 0, 0, 0, false
}

// ConsolidationBox detects whether the checked bar sits inside an active
// tight-range box: a trailing N=7 high/low band narrow enough (height_pct
// under 35%) and confirmed by a Wilder-ATR volatility filter. Grounded on
// custom_strategies/consolidation.py's detect_consolidation (the
// "consolidation", non-breakout outcome).
func ConsolidationBox(f *frame.Frame, checkBar int) Result {
	_, idx, ok := f.At(checkBar)
	if !ok || idx < boxMinLen()+1 {
		return noMatch()
	}
	bars := f.Bars
	atr, atrOK := wilderATRSeries(bars, boxAtrLen, boxAtrSMA, idx)

	hi, lo, entry, found := activeBox(bars, atr, atrOK, idx)
	if !found {
		return noMatch()
	}
	hp, _ := boxHeightPct(bars, entry)
	bar := bars[idx]
	return Result{
		Detected: true,
		Index:    idx,
		Ts:       bar.Ts,
		Data: map[string]float64{
			"box_hi":      hi,
			"box_lo":      lo,
			"box_mid":     (hi + lo) / 2,
			"box_age":     float64(idx - entry + 1),
			"height_pct":  hp,
			"entry_index": float64(entry),
		},
	}
}

// ConsolidationBreakout detects the checked bar's close crossing outside an
// active box that held through the prior bar, classifying the break as
// "strong" when a channel fit is simultaneously broken (ChannelBreakout
// also fires), "weak" otherwise. Grounded on consolidation.py's
// consolidation_breakout outcome.
func ConsolidationBreakout(f *frame.Frame, checkBar int) Result {
	_, idx, ok := f.At(checkBar)
	if !ok || idx < boxMinLen()+2 {
		return noMatch()
	}
	bars := f.Bars
	atr, atrOK := wilderATRSeries(bars, boxAtrLen, boxAtrSMA, idx-1)

	hi, lo, entry, found := activeBox(bars, atr, atrOK, idx-1)
	if !found {
		return noMatch()
	}
	bar := bars[idx]
	breakUp := bar.Close > hi
	breakDown := bar.Close < lo
	if !breakUp && !breakDown {
		return noMatch()
	}

	strong := ChannelBreakout(f, checkBar).Detected

	return Result{
		Detected: true,
		Index:    idx,
		Ts:       bar.Ts,
		Data: map[string]float64{
			"box_hi":      hi,
			"box_lo":      lo,
			"entry_index": float64(entry),
		},
		Flags: map[string]bool{
			"break_up":   breakUp,
			"break_down": breakDown,
			"strong":     strong,
		},
	}
}
