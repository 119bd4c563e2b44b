// Package detectors implements the pure pattern-detection functions (C5):
// each detector takes a *frame.Frame and a check_bar index and returns
// whether the pattern fired at that bar plus a payload of the numbers that
// drove the decision.
package detectors

import (
	"math"
	"time"

	"marketscanner/internal/frame"
)

// Result is the payload every detector returns. Data carries the numeric
// readings behind the decision (spreads, ratios, scores); Flags carries
// the named boolean sub-conditions so composed strategies (C6) can inspect
// which pillars fired without recomputing them; Labels carries the rare
// categorical string outputs (direction, breakout type, strength) that a
// composed strategy reports alongside its primitives. Primitive detectors
// leave Labels nil; only composed strategies populate it.
type Result struct {
	Detected bool
	Index    int
	Ts       time.Time
	Data     map[string]float64
	Flags    map[string]bool
	Labels   map[string]string
}

func noMatch() Result {
	return Result{Detected: false}
}

// window returns bars[start:idx+1], i.e. the trailing window of length n
// ending at and including idx, or ok=false if idx-n+1 < 0.
func window(bars []frame.Bar, idx, n int) ([]frame.Bar, bool) {
	start := idx - n + 1
	if start < 0 || idx >= len(bars) || idx < 0 {
		return nil, false
	}
	return bars[start : idx+1], true
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdOf computes the sample standard deviation (ddof=1), matching
// pandas.Series.rolling(...).std() default behavior.
func stdOf(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	m := meanOf(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func spreads(bars []frame.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High - b.Low
	}
	return out
}

func volumes(bars []frame.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

func highs(bars []frame.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

func lows(bars []frame.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// wma computes a weighted moving average over xs (oldest to newest) with
// weights 1..len(xs), matching pandas rolling().apply(np.dot(x, weights)).
func wma(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	var num, den float64
	for i, x := range xs {
		w := float64(i + 1)
		num += x * w
		den += w
	}
	return num / den
}

func closes(bars []frame.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
