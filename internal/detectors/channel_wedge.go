package detectors

import (
	"math"
	"sort"

	"marketscanner/internal/frame"
)

// theilSenFit computes the median-of-all-pairwise-slopes (Theil-Sen) line
// through ys (indexed 0..len(ys)-1), matching channel_breakout.py and
// wedge_breakout.py's compute_fit. ys are assumed already log-transformed
// by the caller when use_log applies.
func theilSenFit(ys []float64) (slope, intercept float64, ok bool) {
	n := len(ys)
	if n < 2 {
		return 0, 0, false
	}
	slopes := make([]float64, 0, n*(n-1)/2)
	for j := 0; j < n-1; j++ {
		for k := j + 1; k < n; k++ {
			slopes = append(slopes, (ys[k]-ys[j])/float64(k-j))
		}
	}
	slope = median(slopes)
	intercepts := make([]float64, n)
	for j := 0; j < n; j++ {
		intercepts[j] = ys[j] - slope*float64(j)
	}
	intercept = median(intercepts)
	return slope, intercept, true
}

func median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func logAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = math.Log(x)
	}
	return out
}

// wilderATRAndSlow computes a single Wilder ATR(atrLen) value and its
// SMA(atrSMA) ending at bar i, from the start of bars. Shared by channel
// and wedge breakout's volatility filter.
func wilderATRAndSlow(bars []frame.Bar, atrLen, atrSMA, i int) (atr, slow float64, ok bool) {
	atrs, atrOK := wilderATRSeries(bars, atrLen, atrSMA, i)
	if i >= len(atrs) || !atrOK[i] {
		return 0, 0, false
	}
	s, ok := atrSlowOK(atrs, atrOK, atrSMA, i)
	if !ok {
		return 0, 0, false
	}
	return atrs[i], s, true
}

const (
	chanN       = 7
	chanAtrLen  = 14
	chanAtrSMA  = 7
	chanAtrK    = 1.5
	wedgeN      = 14
	wedgeAtrLen = 14
	wedgeAtrSMA = 7
	wedgeAtrK   = 1.0
)

// ChannelBreakout detects a close breaking out of a fitted log-price
// channel: a Theil-Sen regression through the trailing N=7 closes,
// extended one bar, with an ATR volatility filter confirming the prior
// consolidation was tight. Grounded on custom_strategies/channel_breakout.py;
// its stateful multi-bar channel-lifecycle tracking is condensed to a
// single trailing-window fit evaluated at the checked bar (see DESIGN.md).
func ChannelBreakout(f *frame.Frame, checkBar int) Result {
	return fitBreakout(f, checkBar, chanN, chanAtrLen, chanAtrSMA, chanAtrK, false)
}

// WedgeBreakout mirrors ChannelBreakout with a wider N=14 window and
// separate high/low regressions (a converging wedge rather than a
// parallel channel). Grounded on custom_strategies/wedge_breakout.py.
func WedgeBreakout(f *frame.Frame, checkBar int) Result {
	return fitBreakout(f, checkBar, wedgeN, wedgeAtrLen, wedgeAtrSMA, wedgeAtrK, true)
}

func fitBreakout(f *frame.Frame, checkBar, n, atrLen, atrSMA int, atrK float64, wedge bool) Result {
	_, idx, ok := f.At(checkBar)
	if !ok {
		return noMatch()
	}
	bars := f.Bars
	minLen := n
	if atrLen+atrSMA > minLen {
		minLen = atrLen + atrSMA
	}
	if idx < minLen+2 {
		return noMatch()
	}

	atr, slow, ok := wilderATRAndSlow(bars, atrLen, atrSMA, idx-1)
	if !ok || atr >= atrK*slow {
		return noMatch()
	}

	priorWin, ok := window(bars, idx-1, n)
	if !ok {
		return noMatch()
	}

	var upperAt, lowerAt func(x float64) float64
	if wedge {
		uSlope, uInter, ok1 := theilSenFit(logAll(highs(priorWin)))
		lSlope, lInter, ok2 := theilSenFit(logAll(lows(priorWin)))
		if !ok1 || !ok2 {
			return noMatch()
		}
		upperAt = func(x float64) float64 { return math.Exp(uInter + uSlope*x) }
		lowerAt = func(x float64) float64 { return math.Exp(lInter + lSlope*x) }
	} else {
		mSlope, mInter, ok1 := theilSenFit(logAll(closes(priorWin)))
		if !ok1 {
			return noMatch()
		}
		req := 0.0
		for j, b := range priorWin {
			fit := math.Exp(mInter + mSlope*float64(j))
			if d := b.High - fit; d > req {
				req = d
			}
			if d := fit - b.Low; d > req {
				req = d
			}
		}
		upperAt = func(x float64) float64 { return math.Exp(mInter+mSlope*x) + req }
		lowerAt = func(x float64) float64 { return math.Exp(mInter+mSlope*x) - req }
	}

	x := float64(n)
	upper, lower := upperAt(x), lowerAt(x)
	bar := bars[idx]
	breakUp := bar.Close > upper
	breakDown := bar.Close < lower
	if !breakUp && !breakDown {
		return noMatch()
	}

	return Result{
		Detected: true,
		Index:    idx,
		Ts:       bar.Ts,
		Data: map[string]float64{
			"upper_projection": upper,
			"lower_projection": lower,
			"atr":              atr,
			"atr_slow":         slow,
		},
		Flags: map[string]bool{
			"break_up":   breakUp,
			"break_down": breakDown,
		},
	}
}
