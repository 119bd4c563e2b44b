package detectors

import "marketscanner/internal/frame"

func bullishBottomAt(bars []frame.Bar, i int) bool {
	if i < 6 {
		return false
	}
	atrWin, ok := window(bars, i, 8)
	if !ok {
		return false
	}
	trs := make([]float64, 0, 7)
	for j := 1; j < len(atrWin); j++ {
		hl := atrWin[j].High - atrWin[j].Low
		hc := absF(atrWin[j].High - atrWin[j-1].Close)
		lc := absF(atrWin[j].Low - atrWin[j-1].Close)
		tr := hl
		if hc > tr {
			tr = hc
		}
		if lc > tr {
			tr = lc
		}
		trs = append(trs, tr)
	}
	atr7 := meanOf(trs)

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

	highLowerWick := lowWick >= pinWickThreshold*bodySize && highWick < lowWick
	bullishCandle := highLowerWick || lowWick > (b.High-lowerBody)

	lowWin, okLow := window(bars, i, 50)
	if !okLow {
		return false
	}
	isLowest := b.Low == minOf(lows(lowWin))

	return bullishCandle && isLowest && (b.High-b.Low) < atr7
}

func lastBullishBottom(bars []frame.Bar, idx int) (i int, high float64, found bool) {
	for j := idx; j >= 0; j-- {
		if bullishBottomAt(bars, j) {
			return j, bars[j].High, true
		}
	}
	return 0, 0, false
}

func pinUpAt(bars []frame.Bar, idx int) bool {
	if idx < 1 {
		return false
	}
	bottomIdx, bottomHigh, found := lastBullishBottom(bars, idx)
	if !found || idx-bottomIdx >= 4 {
		return false
	}
	_, prevHigh, foundPrev := lastBullishBottom(bars, idx-1)
	if !foundPrev {
		prevHigh = bottomHigh
	}
	outsideBar := bars[idx].High > bars[idx-1].High && bars[idx].Low < bars[idx-1].Low
	return bars[idx].Close > bottomHigh && bars[idx].Close > prevHigh && !outsideBar
}

// belowAllSpreadWMAs reports whether the current bar's range sits at or
// below 0.95x its 7/13/21-period weighted moving averages, the "tight
// spread" filter the original negates to confirm a favorable breakout.
func belowAllSpreadWMAs(bars []frame.Bar, idx int) bool {
	const tol = 0.95
	curRange := bars[idx].High - bars[idx].Low
	check := func(period int) bool {
		win, ok := window(bars, idx, period)
		if !ok {
			return true
		}
		spr := make([]float64, len(win))
		for i, b := range win {
			spr[i] = b.High - b.Low
		}
		return curRange <= tol*wma(spr)
	}
	return check(7) && check(13) && check(21)
}

// PinUp detects the close breaking back above the high of a recent bullish
// exhaustion bottom within 4 bars, while sitting in the top of its recent
// closing range and clear of a tight-spread filter. Grounded on
// custom_strategies/pin_up.py's detect_pin_up.
func PinUp(f *frame.Frame, checkBar int) Result {
	_, idx, ok := f.At(checkBar)
	if !ok || idx < 5 {
		return noMatch()
	}
	bars := f.Bars

	now := pinUpAt(bars, idx)
	prev := pinUpAt(bars, idx-1)
	pinUpCond := now && now != prev
	if !pinUpCond {
		return noMatch()
	}

	closeWin, okClose := window(bars, idx, 5)
	inTopPercentile := false
	if okClose {
		inTopPercentile = percentileRank(closes(closeWin)) >= 80
	}
	closeAbovePrevHigh := bars[idx].Close > bars[idx-1].High
	spreadFavorable := !belowAllSpreadWMAs(bars, idx)

	detected := pinUpCond && inTopPercentile && closeAbovePrevHigh && spreadFavorable
	if !detected {
		return noMatch()
	}

	bar := bars[idx]
	bottomIdx, bottomHigh, _ := lastBullishBottom(bars, idx)
	barRange := bar.High - bar.Low
	closePositionPct := 50.0
	if barRange > 0 {
		closePositionPct = (bar.Close - bar.Low) / barRange * 100
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
			"volume_usd":                bar.VolumeUSD(),
			"volume_ratio":              volumeRatio,
			"close_position_pct":        closePositionPct,
			"bars_since_bullish_bottom": float64(idx - bottomIdx),
			"bullish_bottom_high":       bottomHigh,
		},
		Flags: map[string]bool{
			"close_above_prev_high": closeAbovePrevHigh,
			"in_top_percentile":     inTopPercentile,
			"spread_favorable":      spreadFavorable,
		},
	}
}
