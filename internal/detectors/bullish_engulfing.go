package detectors

import "marketscanner/internal/frame"

// BullishEngulfing detects a wide-spread bar engulfing the prior two bars'
// lows and closing above their highs, confirmed by a percentile-rank
// filter on spread, a low percentile rank of the bar's low (the low was a
// genuine extreme), a low hl2 rank, and enough buying pressure across the last three
// bars' lower wicks to clear ATR(3). Grounded on
// custom_strategies/bullish_engulfing.py's detect_bullish_engulfing.
func BullishEngulfing(f *frame.Frame, checkBar int) Result {
	_, idx, ok := f.At(checkBar)
	if !ok || idx < 21 {
		return noMatch()
	}
	bars := f.Bars
	bar, p1, p2 := bars[idx], bars[idx-1], bars[idx-2]

	spread := bar.High - bar.Low
	spreadP1 := p1.High - p1.Low
	spreadP2 := p2.High - p2.Low

	isBullishEngulfing := spread > spreadP1 && spread > spreadP2 &&
		bar.Low < p1.Low+0.25*spreadP1 &&
		bar.Low < p2.Low+0.25*spreadP2 &&
		bar.High > p1.High &&
		bar.High > p2.Close &&
		bar.Close > maxOf([]float64{p1.High, p2.High})

	if !isBullishEngulfing {
		return noMatch()
	}

	spreadWin, okS := window(bars, idx, 21)
	if !okS || percentileRank(spreads(spreadWin)) <= 20 {
		return noMatch()
	}

	closePos := 0.0
	if spread != 0 {
		closePos = (bar.Close - bar.Low) / spread
	}
	if closePos <= 0.5 {
		return noMatch()
	}

	lowWin, okL := window(bars, idx, 21)
	if !okL || percentileRank(lows(lowWin)) >= 25 {
		return noMatch()
	}

	hl2Win, okH := window(bars, idx, 13)
	if !okH {
		return noMatch()
	}
	hl2s := make([]float64, len(hl2Win))
	for i, b := range hl2Win {
		hl2s[i] = (b.High + b.Low) / 2
	}
	if percentileRank(hl2s) >= 35 {
		return noMatch()
	}

	atr3Win, okA := window(bars, idx, 4)
	if !okA {
		return noMatch()
	}
	trs := make([]float64, 0, 3)
	for i := 1; i < len(atr3Win); i++ {
		hl := atr3Win[i].High - atr3Win[i].Low
		hc := absF(atr3Win[i].High - atr3Win[i-1].Close)
		lc := absF(atr3Win[i].Low - atr3Win[i-1].Close)
		tr := hl
		if hc > tr {
			tr = hc
		}
		if lc > tr {
			tr = lc
		}
		trs = append(trs, tr)
	}
	atr3 := meanOf(trs)
	lowWick0 := bar.Close - bar.Low
	lowWick1 := p1.Close - p1.Low
	lowWick2 := p2.Close - p2.Low
	isBuyingPower := (lowWick0 + lowWick1 + lowWick2) > atr3
	if !isBuyingPower {
		return noMatch()
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
			"close_position": closePos,
			"volume_ratio":   volumeRatio,
		},
		Flags: map[string]bool{
			"is_buying_power": isBuyingPower,
		},
	}
}
