package detectors

import (
	"strings"

	"marketscanner/internal/frame"
)

// vsaParams mirrors the per-strategy configuration of the original VSA
// detector (spread/volume/momentum/close/direction/bar-type/macro
// filters), trimmed to the options the six bar strategies actually use.
type vsaParams struct {
	Lookback int

	DirectionOpt string // "", "Up", "Down"
	BarTypeOpt   string // "", "New High", "New Low", "Outside Bar", "Inside Bar",
	                     // "New High or Outside Bar", "New Low or Outside Bar", "Not Outside Bar"

	SpreadOpt         string // "", "Wide", "Narrow", "Abnormal"
	SpreadStd         float64
	SpreadAbnormalStd float64

	MomentumOpt string // "", "Wide", "Narrow"
	MomentumStd float64

	VolumeOpt         string // "", "High", "Low", "Abnormal"
	VolumeStd         float64
	VolumeAbnormalStd float64

	CloseOpt string // "", "In Highs", "Off Highs", "In Lows", "Off Lows"

	MacroOpt        string // "", "Macro Low", "Macro High"
	MacroMethod     string // "Price Based (V1)", "Count Based (V2)", "Combined (Strict)"
	V1ShortLookback int
	V1MediumLookback int
	V1LongLookback  int
	V1Percentile    float64
	V2ShortLookback int
	V2MediumLookback int
	V2LongLookback  int
	V2Percentile    float64

	UseBreakoutClose     bool
	BreakoutClosePercent float64
	V1ShortLookbackClose int // v1_macro_short_lookback reused for breakout-close window

	UseHighBreakout          bool
	HighBreakoutLookback     int
	HighBreakoutCountPercent float64
}

// evalVSA evaluates the generic VSA condition set at bars[idx], mirroring
// breakout_vsa/core.py's vsa_detector + helpers.calculate_basic_indicators
// / apply_condition_filters, but computed on demand for a single bar
// rather than vectorized across a whole series.
func evalVSA(bars []frame.Bar, idx int, p vsaParams) Result {
	if idx < 0 || idx >= len(bars) {
		return noMatch()
	}
	bar := bars[idx]
	flags := map[string]bool{}
	data := map[string]float64{}

	spreadWin, okSpread := window(bars, idx, p.Lookback)
	volWin, okVol := window(bars, idx, p.Lookback)
	if !okSpread || !okVol {
		return noMatch()
	}

	spread := bar.High - bar.Low
	spr := spreads(spreadWin)
	meanSpread, stdSpread := meanOf(spr), stdOf(spr)
	flags["is_narrow_spread"] = spread < meanSpread-p.SpreadStd*stdSpread
	flags["is_wide_spread"] = spread > meanSpread+p.SpreadStd*stdSpread && spread <= meanSpread+p.SpreadAbnormalStd*stdSpread
	flags["is_abnormal_spread"] = spread > meanSpread+p.SpreadAbnormalStd*stdSpread
	data["spread"] = spread
	data["mean_spread"] = meanSpread

	vol := volumes(volWin)
	meanVol, stdVol := meanOf(vol), stdOf(vol)
	flags["is_low_volume"] = bar.Volume < meanVol-p.VolumeStd*stdVol
	flags["is_high_volume"] = bar.Volume >= meanVol-p.VolumeStd*stdVol && bar.Volume <= meanVol+p.VolumeAbnormalStd*stdVol
	flags["is_abnormal_volume"] = bar.Volume > meanVol+p.VolumeAbnormalStd*stdVol
	data["volume"] = bar.Volume
	data["mean_volume"] = meanVol

	barRange := bar.High - bar.Low
	closePos := 0.0
	if barRange != 0 {
		closePos = (bar.Close - bar.Low) / barRange
	}
	flags["is_in_highs"] = closePos > 0.75
	flags["is_off_highs"] = closePos <= 0.5
	flags["is_in_lows"] = closePos < 0.25
	flags["is_off_lows"] = closePos >= 0.5
	data["close_position"] = closePos

	if idx >= 1 {
		prev := bars[idx-1]
		flags["is_up_bar"] = bar.Close > prev.Close
		flags["is_down_bar"] = bar.Close < prev.Close
		flags["is_new_high"] = bar.High > prev.High && bar.Low >= prev.Low
		flags["is_new_low"] = bar.Low < prev.Low && bar.High <= prev.High
		flags["is_outside_bar"] = bar.High > prev.High && bar.Low < prev.Low
		flags["is_inside_bar"] = bar.High < prev.High && bar.Low > prev.Low
	}

	if momWin, ok := window(bars, idx, p.Lookback+1); ok {
		absMom := make([]float64, 0, len(momWin)-1)
		for i := 1; i < len(momWin); i++ {
			absMom = append(absMom, absF(momWin[i].Close-momWin[i-1].Close))
		}
		curMom := absF(0)
		if idx >= 1 {
			curMom = absF(bar.Close - bars[idx-1].Close)
		}
		meanMom, stdMom := meanOf(absMom), stdOf(absMom)
		flags["is_narrow_momentum"] = curMom < meanMom-p.MomentumStd*stdMom
		flags["is_wide_momentum"] = curMom > meanMom+p.MomentumStd*stdMom
	}

	flags["is_macro_low"], flags["is_macro_high"] = macroFlags(bars, idx, p)

	if p.UseBreakoutClose {
		win, ok := window(bars, idx, p.V1ShortLookback)
		if ok {
			cl := closes(win)
			hi, lo := maxOf(cl), minOf(cl)
			threshold := hi - (hi-lo)*(p.BreakoutClosePercent/100)
			flags["is_breakout_close"] = bar.Close >= threshold
		}
	}

	if p.UseHighBreakout {
		flags["is_high_breakout"] = highBreakout(bars, idx, p.HighBreakoutLookback, p.HighBreakoutCountPercent)
	}

	detected := true
	switch p.SpreadOpt {
	case "Wide":
		detected = detected && flags["is_wide_spread"]
	case "Narrow":
		detected = detected && flags["is_narrow_spread"]
	case "Abnormal":
		detected = detected && flags["is_abnormal_spread"]
	}
	switch p.MomentumOpt {
	case "Wide":
		detected = detected && flags["is_wide_momentum"]
	case "Narrow":
		detected = detected && flags["is_narrow_momentum"]
	}
	switch p.VolumeOpt {
	case "High":
		detected = detected && flags["is_high_volume"]
	case "Low":
		detected = detected && flags["is_low_volume"]
	case "Abnormal":
		detected = detected && flags["is_abnormal_volume"]
	}
	switch normalizeCloseOpt(p.CloseOpt) {
	case "in highs":
		detected = detected && flags["is_in_highs"]
	case "off highs":
		detected = detected && flags["is_off_highs"]
	case "in lows":
		detected = detected && flags["is_in_lows"]
	case "off lows":
		detected = detected && flags["is_off_lows"]
	}
	switch p.DirectionOpt {
	case "Up":
		detected = detected && flags["is_up_bar"]
	case "Down":
		detected = detected && flags["is_down_bar"]
	}
	switch p.BarTypeOpt {
	case "New High":
		detected = detected && flags["is_new_high"]
	case "New Low":
		detected = detected && flags["is_new_low"]
	case "Outside Bar":
		detected = detected && flags["is_outside_bar"]
	case "Not Outside Bar":
		detected = detected && !flags["is_outside_bar"]
	case "Inside Bar":
		detected = detected && flags["is_inside_bar"]
	case "New High or Outside Bar":
		detected = detected && (flags["is_new_high"] || flags["is_outside_bar"])
	case "New Low or Outside Bar":
		detected = detected && (flags["is_new_low"] || flags["is_outside_bar"])
	}
	switch p.MacroOpt {
	case "Macro Low":
		detected = detected && flags["is_macro_low"]
	case "Macro High":
		detected = detected && flags["is_macro_high"] && !v1IsLowShort(bars, idx, p)
	}
	if p.UseBreakoutClose {
		detected = detected && flags["is_breakout_close"]
	}
	if p.UseHighBreakout {
		detected = detected && flags["is_high_breakout"]
	}

	return Result{Detected: detected, Index: idx, Ts: bar.Ts, Data: data, Flags: flags}
}

func normalizeCloseOpt(s string) string { return strings.ToLower(s) }

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// v1IsLowShort reports the V1 price-based "is in the short-term lows"
// condition, used to disqualify Macro-High detections per the original
// apply_condition_filters nuance (macro high requires NOT v1 low-short).
func v1IsLowShort(bars []frame.Bar, idx int, p vsaParams) bool {
	win, ok := window(bars, idx, p.V1ShortLookback)
	if !ok {
		return false
	}
	lo := minOf(lows(win))
	if p.V1Percentile == 100 {
		return true
	}
	return bars[idx].Low <= lo*(1+p.V1Percentile/100)
}

// macroFlags computes is_macro_low/is_macro_high per the configured
// macro_method, combining V1 (price-based percentile-of-range) and V2
// (count-based rank) detection as the original scanner does.
func macroFlags(bars []frame.Bar, idx int, p vsaParams) (low, high bool) {
	v1Low, v1High := v1Macro(bars, idx, p)
	v2Low, v2High := v2Macro(bars, idx, p)
	switch p.MacroMethod {
	case "Price Based (V1)":
		return v1Low, v1High
	case "Count Based (V2)":
		return v2Low, v2High
	default: // Combined (Strict)
		return v1Low && v2Low, v1High && v2High
	}
}

func v1Macro(bars []frame.Bar, idx int, p vsaParams) (low, high bool) {
	check := func(lookback int) (bool, bool) {
		win, ok := window(bars, idx, lookback)
		if !ok {
			return false, false
		}
		lo, hi := minOf(lows(win)), maxOf(highs(win))
		isLow := p.V1Percentile == 100 || bars[idx].Low <= lo*(1+p.V1Percentile/100)
		isHigh := p.V1Percentile == 100 || bars[idx].High >= hi*(1-p.V1Percentile/100)
		return isLow, isHigh
	}
	sl, sh := check(p.V1ShortLookback)
	ml, mh := check(p.V1MediumLookback)
	ll, lh := check(p.V1LongLookback)
	return sl && ml && ll, sh && mh && lh
}

func v2Macro(bars []frame.Bar, idx int, p vsaParams) (low, high bool) {
	check := func(lookback int) (bool, bool) {
		if idx < lookback {
			return false, false
		}
		countLL, countHH := 0, 0
		for j := 1; j <= lookback; j++ {
			if idx-j < 0 {
				continue
			}
			if bars[idx].Low > bars[idx-j].Low {
				countLL++
			}
			if bars[idx].High < bars[idx-j].High {
				countHH++
			}
		}
		pctLL := float64(countLL) / float64(lookback) * 100
		pctHH := float64(countHH) / float64(lookback) * 100
		return pctLL <= p.V2Percentile, pctHH <= p.V2Percentile
	}
	sl, sh := check(p.V2ShortLookback)
	ml, mh := check(p.V2MediumLookback)
	ll, lh := check(p.V2LongLookback)
	return sl && ml && ll, sh && mh && lh
}

// highBreakout reports the "high breakout" condition: close above the
// prior two bars' highs, with at least countPercent% of the lookback
// window's highs (excluding the last two bars) also below the close.
func highBreakout(bars []frame.Bar, idx, lookback int, countPercent float64) bool {
	if idx < lookback+2 {
		return false
	}
	if !(bars[idx].Close > bars[idx-1].High && bars[idx].Close > bars[idx-2].High) {
		return false
	}
	count := 0
	for j := 3; j <= lookback+2; j++ {
		if idx-j < 0 {
			continue
		}
		if bars[idx].Close > bars[idx-j].High {
			count++
		}
	}
	pct := float64(count) / float64(lookback) * 100
	return pct >= countPercent
}
