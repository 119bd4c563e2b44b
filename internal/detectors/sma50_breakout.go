package detectors

import "marketscanner/internal/frame"

// SMA50Breakout detects a close breaking back above the 50-period SMA after
// trading below it, confirmed by an ATR-scaled threshold and a clean lookback
// that rules out bars that already broke out recently. Grounded on
// custom_strategies/sma50_breakout.py's detect_sma50_breakout.
func SMA50Breakout(f *frame.Frame, checkBar int) Result {
	const (
		smaPeriod      = 50
		atrPeriod      = 7
		atrMultiplier  = 0.2
		cleanLookback  = 7
		smaLocStrong   = 0.35
	)
	_, idx, ok := f.At(checkBar)
	if !ok {
		return noMatch()
	}
	bars := f.Bars
	if idx < smaPeriod {
		return noMatch()
	}

	sma := func(at int) (float64, bool) {
		win, ok := window(bars, at, smaPeriod)
		if !ok {
			return 0, false
		}
		return meanOf(closes(win)), true
	}
	atr := func(at int) (float64, bool) {
		win, ok := window(bars, at, atrPeriod+1)
		if !ok {
			return 0, false
		}
		trs := make([]float64, 0, len(win)-1)
		for i := 1; i < len(win); i++ {
			hl := win[i].High - win[i].Low
			hc := absF(win[i].High - win[i-1].Close)
			lc := absF(win[i].Low - win[i-1].Close)
			tr := hl
			if hc > tr {
				tr = hc
			}
			if lc > tr {
				tr = lc
			}
			trs = append(trs, tr)
		}
		return meanOf(trs), true
	}

	sma50, ok := sma(idx)
	if !ok {
		return noMatch()
	}
	atr7, ok := atr(idx)
	if !ok {
		return noMatch()
	}
	bar := bars[idx]

	preThreshold := sma50 - atrMultiplier*atr7
	upperThreshold := sma50 + atrMultiplier*atr7

	cleanBreakout := true
	for j := 1; j <= cleanLookback; j++ {
		at := idx - j
		if at < smaPeriod {
			break
		}
		s, ok := sma(at)
		if !ok {
			continue
		}
		a, ok := atr(at)
		if !ok {
			continue
		}
		if bars[at].Close > s+atrMultiplier*a {
			cleanBreakout = false
			break
		}
	}

	isRegular := bar.Close > sma50 && bar.Low < sma50 && cleanBreakout
	isPreBreakout := !isRegular && bar.Close > preThreshold && bar.Low < sma50 && cleanBreakout

	detected := isRegular || isPreBreakout
	strong := false
	if isRegular {
		barRange := bar.High - bar.Low
		if barRange != 0 {
			smaLoc := (sma50 - bar.Low) / barRange
			strong = smaLoc < smaLocStrong
		}
	}

	return Result{
		Detected: detected,
		Index:    idx,
		Ts:       bar.Ts,
		Data: map[string]float64{
			"sma50":           sma50,
			"atr7":            atr7,
			"upper_threshold": upperThreshold,
			"pre_threshold":   preThreshold,
		},
		Flags: map[string]bool{
			"regular":      isRegular,
			"pre_breakout": isPreBreakout,
			"clean":        cleanBreakout,
			"strong":       strong,
		},
	}
}
