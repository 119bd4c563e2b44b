package detectors

import "marketscanner/internal/frame"

const (
	trendHAMALength  = 13
	trendPivotLBL    = 2
	trendPivotLBR    = 2
	trendATRTrendMin = 0.01
	trendEMAWarmup   = 80
)

type haBar struct {
	open, high, low, close float64
}

// heikinAshiSeries computes the classic Heikin-Ashi transform (not the
// original's Jurik/AMA-smoothed variant; see DESIGN.md) over bars[from:upto].
func heikinAshiSeries(bars []frame.Bar, from, upto int) []haBar {
	out := make([]haBar, upto-from+1)
	for i := from; i <= upto; i++ {
		b := bars[i]
		c := (b.Open + b.High + b.Low + b.Close) / 4
		var o float64
		if i == from {
			o = (b.Open + b.Close) / 2
		} else {
			prev := out[i-1-from]
			o = (prev.open + prev.close) / 2
		}
		h := b.High
		if o > h {
			h = o
		}
		if c > h {
			h = c
		}
		l := b.Low
		if o < l {
			l = o
		}
		if c < l {
			l = c
		}
		out[i-from] = haBar{open: o, high: h, low: l, close: c}
	}
	return out
}

func emaOf(xs []float64, span int) float64 {
	if len(xs) == 0 {
		return 0
	}
	alpha := 2.0 / float64(span+1)
	v := xs[0]
	for _, x := range xs[1:] {
		v = alpha*x + (1-alpha)*v
	}
	return v
}

// pivotAt reports whether ha series index p (relative to the ha slice) is a
// confirmed swing pivot: an extreme among its LBL bars before and LBR bars
// after. Grounded on trend_breakout.py's _pivot_calc.
func pivotAt(xs []float64, p int, high bool) bool {
	left, right := p-trendPivotLBL, p+trendPivotLBR
	if left < 0 || right >= len(xs) {
		return false
	}
	ref := xs[p]
	for j := left; j <= right; j++ {
		if j == p {
			continue
		}
		if high && xs[j] >= ref {
			return false
		}
		if !high && xs[j] <= ref {
			return false
		}
	}
	return true
}

// lastConfirmedPivot scans backward from the most recent index that could
// be confirmed (upto-LBR) for the nearest swing pivot.
func lastConfirmedPivot(xs []float64, upto int, high bool) (float64, bool) {
	for p := upto - trendPivotLBR; p >= trendPivotLBL; p-- {
		if pivotAt(xs, p, high) {
			return xs[p], true
		}
	}
	return 0, false
}

// TrendBreakout detects a close clearing the smoothed Heikin-Ashi upper
// band by an ATR margin while a pivot-confirmed breakout, a bullish MA
// stack, HA momentum, and a non-exhausted flag-up candle all agree.
// Grounded on custom_strategies/trend_breakout.py's detect_trend_breakout;
// its Jurik/AMA-smoothed Heikin-Ashi construction is replaced with the
// classic HA transform and a bounded EMA warmup (see DESIGN.md).
func TrendBreakout(f *frame.Frame, checkBar int) Result {
	_, idx, ok := f.At(checkBar)
	if !ok || idx < 21 {
		return noMatch()
	}
	bars := f.Bars

	from := idx - trendEMAWarmup
	if from < 1 {
		from = 1
	}
	atr, atrOK := wilderATRSeries(bars, 7, 1, idx)
	if idx >= len(atr) || !atrOK[idx] || !atrOK[idx-1] {
		return noMatch()
	}
	atrNow, atrPrev := atr[idx], atr[idx-1]

	ha := heikinAshiSeries(bars, from, idx)
	rel := idx - from

	haHighs := make([]float64, len(ha))
	haLows := make([]float64, len(ha))
	haCloses := make([]float64, len(ha))
	haOpens := make([]float64, len(ha))
	for i, h := range ha {
		haHighs[i], haLows[i], haCloses[i], haOpens[i] = h.high, h.low, h.close, h.open
	}

	wmaWin := trendHAMALength
	if rel+1 < wmaWin {
		wmaWin = rel + 1
	}
	sHabHigh := (emaOf(haHighs[:rel+1], trendHAMALength) + wma(haHighs[rel+1-wmaWin:rel+1])) / 2
	sHabLow := emaOf(haLows[:rel+1], trendHAMALength)

	ma1 := emaOf(haCloses[:rel+1], 5)
	ma2 := emaOf(haOpens[:rel+1], 10)

	pivotHigh, foundPH := lastConfirmedPivot(highsFromBars(bars, from, idx), rel, true)
	if !foundPH {
		return noMatch()
	}

	levelPH := pivotHigh + 0.3*atrNow
	levelSH := sHabHigh + 0.1*atrNow

	bar := bars[idx]
	breakupNow := bar.Close >= levelPH
	breakupPrev := false
	if idx-1 >= from {
		breakupPrev = bars[idx-1].Close >= levelPH
	}
	upwego := breakupNow

	breakoutNow := bar.Close > levelSH
	breakoutPrev := false
	if idx-1 >= from {
		prevSHigh := (emaOf(haHighs[:rel], trendHAMALength) + wma(haHighs[max0(rel-wmaWin):rel])) / 2
		breakoutPrev = bars[idx-1].Close > prevSHigh+0.1*atrPrev
	}
	isCrossover := breakoutNow && !breakoutPrev
	_ = breakupPrev

	atrTrend := (atrNow-atrPrev) >= trendATRTrendMin*maxF(1e-12, atrPrev)
	maBull := ma1 > ma2
	haMomentum := ha[rel].close > ha[rel].open

	higherHigh := bar.High > bars[idx-1].High
	closeUpperHalf := (bar.High - bar.Close) < (bar.Close - bar.Low)
	flagUp := higherHigh && closeUpperHalf && !bearishTopAt(bars, idx)

	conditionsMet := 0
	for _, c := range []bool{atrTrend, upwego, maBull, haMomentum, flagUp} {
		if c {
			conditionsMet++
		}
	}

	detected := conditionsMet >= 5 && isCrossover
	if !detected {
		return noMatch()
	}

	return Result{
		Detected: true,
		Index:    idx,
		Ts:       bar.Ts,
		Data: map[string]float64{
			"s_habhigh":       sHabHigh,
			"s_hablow":        sHabLow,
			"breakout_level":  levelSH,
			"ph_range":        pivotHigh,
			"conditions_met":  float64(conditionsMet),
		},
		Flags: map[string]bool{
			"atr_trend":    atrTrend,
			"upwego":       upwego,
			"ma_bull":      maBull,
			"ha_momentum":  haMomentum,
			"flagup":       flagUp,
			"is_crossover": isCrossover,
		},
	}
}

func highsFromBars(bars []frame.Bar, from, upto int) []float64 {
	out := make([]float64, upto-from+1)
	for i := from; i <= upto; i++ {
		out[i-from] = bars[i].High
	}
	return out
}

func max0(x int) int {
	if x < 0 {
		return 0
	}
	return x
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
