package detectors

import "marketscanner/internal/frame"

const (
	confDojiThreshold = 5.0
	confCtxLen        = 7
	confRangeFloor    = 0.10
	confLenFast       = 7
	confLenMid        = 13
	confLenSlow       = 21
)

// vsaDirection classifies a bar as up/down in the VSA sense: doji-like bars
// (small close change) are classified by which shadow dominates, ordinary
// bars by whether the close captured at least half of the move toward the
// bar's high/low. Grounded on confluence.py's up_bar_vsa/down_bar_vsa.
func vsaDirection(bars []frame.Bar, i int) (up, down bool) {
	if i < 1 {
		return false, false
	}
	bar, prev := bars[i], bars[i-1]
	denom := bar.Close
	if prev.Close > denom {
		denom = prev.Close
	}
	isDoji := denom != 0 && absF(bar.Close-prev.Close)/denom*100 <= confDojiThreshold
	if isDoji {
		upperShadow := bar.High - bar.Close
		lowerShadow := bar.Close - bar.Low
		return lowerShadow > upperShadow, upperShadow > lowerShadow
	}
	isUpIntention := bar.Close > prev.Close
	isDownIntention := bar.Close < prev.Close
	normalUp := isUpIntention && (bar.Close-prev.Close) >= (bar.High-prev.Close)*0.5
	normalDown := isDownIntention && (prev.Close-bar.Close) >= (prev.Close-bar.Low)*0.5
	if isUpIntention {
		return normalUp, !normalUp
	}
	if isDownIntention {
		return false, normalDown
	}
	return false, false
}

// highVolume reports confluence.py's high_volume pillar: absolute volume
// above its 7/13/21 SMAs, or volume exceeding the last same-direction bar's
// (local), the mean of up to the last 3 same-direction bars' (broader), or
// the most recent opposite-direction bar's (serious) volume. Condensed from
// a forward-accumulating loop into bounded backward scans from i.
func highVolume(bars []frame.Bar, i int) bool {
	if i < 21 {
		return false
	}
	win21 := bars[i-20 : i+1]
	vol := volumes(win21)
	sma7 := meanOf(vol[len(vol)-7:])
	sma13 := meanOf(vol[len(vol)-13:])
	sma21 := meanOf(vol)
	absoluteHigh := bars[i].Volume > sma7 && bars[i].Volume > sma13 && bars[i].Volume > sma21

	up, down := vsaDirection(bars, i)
	var local, broader, serious bool
	if up || down {
		sameDir := func(j int) bool { u, d := vsaDirection(bars, j); return (up && u) || (down && d) }
		if sameDir(i - 1) {
			local = bars[i].Volume > bars[i-1].Volume
		}
		var recent []float64
		for j := i - 1; j >= i-3 && j >= 0; j-- {
			if sameDir(j) {
				recent = append(recent, bars[j].Volume)
			}
		}
		if len(recent) > 0 {
			broader = bars[i].Volume > meanOf(recent)
			if broader {
				for j := i - 1; j >= 0; j-- {
					u, d := vsaDirection(bars, j)
					if (up && d) || (down && u) {
						serious = bars[i].Volume > bars[j].Volume
						break
					}
				}
			}
		}
	}
	return absoluteHigh || local || broader || serious
}

// spreadBreakout reports confluence.py's spread pillar: the close sits in
// the upper 30% of its range, the range clears 0.95x its 7/13/21 WMAs, and
// the range is the highest of the last 3 bars.
func spreadBreakout(bars []frame.Bar, i int) (bool, float64) {
	bar := bars[i]
	curRange := bar.High - bar.Low
	if curRange == 0 {
		return false, 0
	}
	closePos := (bar.Close - bar.Low) / curRange
	aboveAll := true
	for _, period := range []int{7, 13, 21} {
		win, ok := window(bars, i, period)
		if !ok {
			continue
		}
		spr := spreads(win)
		if curRange <= 0.95*wma(spr) {
			aboveAll = false
			break
		}
	}
	isMax3 := true
	if win3, ok := window(bars, i, 3); ok {
		isMax3 = curRange == maxOf(spreads(win3))
	}
	return closePos > 0.7 && aboveAll && isMax3, curRange
}

// momentumScoreAt computes confluence.py's positional momentum score at i:
// a context range anchored on whichever of the last ctx_len bars had the
// widest range, scaled by the bar's position within it and within its own
// range, adjusted by the previous bar's centered position.
func momentumScoreAt(bars []frame.Bar, i int) (float64, bool) {
	if i < confCtxLen+1 {
		return 0, false
	}
	bar, prev := bars[i], bars[i-1]
	curRange := bar.High - bar.Low
	prevRange := prev.High - prev.Low
	if curRange == 0 {
		return 0, false
	}

	highestRange, highestAt := 0.0, 0
	for back := 1; back <= confCtxLen; back++ {
		if i-back < 0 {
			continue
		}
		b := bars[i-back]
		r := b.High - b.Low
		if r > highestRange {
			highestRange, highestAt = r, back
		}
	}
	ctxHiWin, _ := window(bars, i-1, confCtxLen)
	ctxHi, ctxLo := maxOf(highs(ctxHiWin)), minOf(lows(ctxHiWin))
	if highestAt > 0 {
		start := i - highestAt
		if start < 0 {
			start = 0
		}
		span := bars[start : i+1]
		ctxHi, ctxLo = maxOf(highs(span)), minOf(lows(span))
	}
	ctxRng := ctxHi - ctxLo

	rangeFactor := confRangeFloor
	if ctxRng > 0 {
		rf := curRange / ctxRng
		if rf > confRangeFloor {
			rangeFactor = rf
		}
	}
	posGlobal := 0.0
	if ctxRng > 0 {
		v := 2 * (bar.Close - (ctxHi+ctxLo)/2) / ctxRng
		posGlobal = v * v
	}
	posLocal := ((bar.Close - bar.Low) / curRange)
	posLocal *= posLocal

	centeredPrev := 0.0
	if prevRange > 0 {
		centeredPrev = (bar.Close - (prev.High+prev.Low)/2) / prevRange
	}
	sign := 0.0
	if centeredPrev > 0 {
		sign = 1
	} else if centeredPrev < 0 {
		sign = -1
	}
	posPrev := 1 + 0.5*sqrtAbs(centeredPrev)*sign

	return rangeFactor * posGlobal * posLocal * posPrev, true
}

func sqrtAbs(x float64) float64 {
	if x < 0 {
		x = -x
	}
	lo, hi := 0.0, x+1
	for k := 0; k < 50; k++ {
		mid := (lo + hi) / 2
		if mid*mid > x {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo
}

func momentumBreakout(bars []frame.Bar, i int) (bool, float64) {
	score, ok := momentumScoreAt(bars, i)
	if !ok {
		return false, 0
	}
	collect := func(period int) ([]float64, bool) {
		scores := make([]float64, 0, period)
		for j := i - period + 1; j <= i; j++ {
			s, ok := momentumScoreAt(bars, j)
			if !ok {
				return nil, false
			}
			scores = append(scores, s)
		}
		return scores, true
	}
	aboveFast, aboveMid, aboveSlow := true, true, true
	if s, ok := collect(confLenFast); ok {
		aboveFast = score > wma(s)
	}
	if s, ok := collect(confLenMid); ok {
		aboveMid = score > wma(s)
	}
	if s, ok := collect(confLenSlow); ok {
		aboveSlow = score > wma(s)
	}
	isUp := bars[i].Close > bars[i-1].Close
	return isUp && aboveFast && aboveMid && aboveSlow, score
}

// ConfluenceWakeup is confluence.py's reduced variant used by the
// consolidation-wakeup composition: it requires the high-volume and
// spread-breakout pillars but drops the momentum pillar, so a bar still
// inside a tight range can "wake up" on volume and range alone without
// waiting for the momentum score to turn.
func ConfluenceWakeup(f *frame.Frame, checkBar int) Result {
	_, idx, ok := f.At(checkBar)
	if !ok || idx < confLenSlow+confLenSlow {
		return noMatch()
	}
	bars := f.Bars

	hv := highVolume(bars, idx)
	sb, curRange := spreadBreakout(bars, idx)
	detected := hv && sb
	if !detected {
		return noMatch()
	}

	bar := bars[idx]
	volWin, okVol := window(bars, idx, 7)
	volumeRatio := 0.0
	if okVol {
		if m := meanOf(volumes(volWin)); m > 0 {
			volumeRatio = bar.Volume / m
		}
	}

	return Result{
		Detected: true,
		Index:    idx,
		Ts:       bar.Ts,
		Data: map[string]float64{
			"volume_usd":   bar.VolumeUSD(),
			"volume_ratio": volumeRatio,
			"bar_range":    curRange,
		},
		Flags: map[string]bool{
			"high_volume":     hv,
			"spread_breakout": sb,
		},
	}
}

// Confluence fires when high-relative volume, a spread breaking above its
// WMA envelope, and a rising positional momentum score all align on the
// same bar. Grounded on custom_strategies/confluence.py's detect_confluence;
// the volume pillar's forward same-direction bookkeeping and the momentum
// pillar's whole-series WMA are condensed into bounded backward lookups
// evaluated at the checked bar (see DESIGN.md).
func Confluence(f *frame.Frame, checkBar int) Result {
	_, idx, ok := f.At(checkBar)
	if !ok || idx < confLenSlow+confLenSlow {
		return noMatch()
	}
	bars := f.Bars

	hv := highVolume(bars, idx)
	sb, curRange := spreadBreakout(bars, idx)
	mb, score := momentumBreakout(bars, idx)
	detected := hv && sb && mb
	if !detected {
		return noMatch()
	}

	bar := bars[idx]
	barRange := bar.High - bar.Low
	closeOffLow := 0.0
	if barRange > 0 {
		closeOffLow = (bar.Close - bar.Low) / barRange * 100
	}
	volWin, okVol := window(bars, idx, 7)
	volumeRatio := 0.0
	if okVol {
		if m := meanOf(volumes(volWin)); m > 0 {
			volumeRatio = bar.Volume / m
		}
	}

	return Result{
		Detected: true,
		Index:    idx,
		Ts:       bar.Ts,
		Data: map[string]float64{
			"volume_usd":      bar.VolumeUSD(),
			"volume_ratio":    volumeRatio,
			"close_off_low":   closeOffLow,
			"bar_range":       curRange,
			"momentum_score":  score,
		},
		Flags: map[string]bool{
			"high_volume":       hv,
			"spread_breakout":   sb,
			"momentum_breakout": mb,
		},
	}
}
