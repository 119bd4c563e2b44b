package detectors

import "marketscanner/internal/frame"

// BreakoutBar detects an up bar breaking out of a macro low on high volume
// and a wide spread, closing off its lows, confirmed by a high-breakout
// count filter. Grounded on breakout_vsa/strategies/breakout_bar_original.py.
func BreakoutBar(f *frame.Frame, checkBar int) Result {
	_, idx, ok := f.At(checkBar)
	if !ok {
		return noMatch()
	}
	return evalVSA(f.Bars, idx, vsaParams{
		Lookback:             7,
		DirectionOpt:         "Up",
		SpreadOpt:            "Wide",
		SpreadStd:            0.5,
		SpreadAbnormalStd:    4.0,
		MomentumOpt:          "Wide",
		MomentumStd:          0.75,
		VolumeOpt:            "High",
		VolumeStd:            0.5,
		VolumeAbnormalStd:    3.0,
		CloseOpt:             "Off Lows",
		MacroOpt:             "Macro Low",
		MacroMethod:          "Price Based (V1)",
		V1ShortLookback:      7,
		V1MediumLookback:     23,
		V1LongLookback:       50,
		V1Percentile:         10.0,
		V2ShortLookback:      8,
		V2MediumLookback:     28,
		V2LongLookback:       48,
		V2Percentile:         25.0,
		UseBreakoutClose:     true,
		BreakoutClosePercent: 30.0,
		UseHighBreakout:      true,
		HighBreakoutLookback: 10,
		HighBreakoutCountPercent: 10,
	})
}

// StopBar detects an up bar stopping a decline: new low or outside bar on
// high volume, closing in the highs near a macro low. Grounded on
// breakout_vsa/strategies/stop_bar.py.
func StopBar(f *frame.Frame, checkBar int) Result {
	_, idx, ok := f.At(checkBar)
	if !ok {
		return noMatch()
	}
	return evalVSA(f.Bars, idx, vsaParams{
		Lookback:          50,
		DirectionOpt:      "Up",
		BarTypeOpt:        "New Low or Outside Bar",
		VolumeOpt:         "High",
		VolumeStd:         1.5,
		VolumeAbnormalStd: 6.0,
		CloseOpt:          "In Highs",
		MacroOpt:          "Macro Low",
		MacroMethod:       "Count Based (V2)",
		V1ShortLookback:   5,
		V1MediumLookback:  21,
		V1LongLookback:    21,
		V1Percentile:      10.0,
		V2ShortLookback:   20,
		V2MediumLookback:  20,
		V2LongLookback:    20,
		V2Percentile:      4.0,
	})
}

// ReversalBar detects a bar at the extreme highs making a new high but
// closing in the lows on wide spread and high volume; direction is not
// constrained. Grounded on breakout_vsa/strategies/reversal_bar.py.
func ReversalBar(f *frame.Frame, checkBar int) Result {
	_, idx, ok := f.At(checkBar)
	if !ok {
		return noMatch()
	}
	return evalVSA(f.Bars, idx, vsaParams{
		Lookback:          14,
		BarTypeOpt:        "New High or Outside Bar",
		SpreadOpt:         "Wide",
		SpreadStd:         0.5,
		SpreadAbnormalStd: 4.0,
		VolumeOpt:         "High",
		VolumeStd:         0.5,
		VolumeAbnormalStd: 3.0,
		CloseOpt:          "In Lows",
		MacroOpt:          "Macro High",
		MacroMethod:       "Count Based (V2)",
		V1ShortLookback:   14,
		V1MediumLookback:  34,
		V1LongLookback:    50,
		V1Percentile:      5.0,
		V2ShortLookback:   8,
		V2MediumLookback:  28,
		V2LongLookback:    48,
		V2Percentile:      20.0,
	})
}

// LoadedBar detects a narrow-spread, abnormal-volume bar closing off its
// lows — absorption without a corresponding directional move. Grounded on
// breakout_vsa/strategies/loaded_bar.py.
func LoadedBar(f *frame.Frame, checkBar int) Result {
	_, idx, ok := f.At(checkBar)
	if !ok {
		return noMatch()
	}
	return evalVSA(f.Bars, idx, vsaParams{
		Lookback:          50,
		SpreadOpt:         "Narrow",
		SpreadStd:         0.5,
		SpreadAbnormalStd: 2.0,
		VolumeOpt:         "Abnormal",
		VolumeStd:         2.0,
		VolumeAbnormalStd: 3.0,
		CloseOpt:          "Off Lows",
		MacroMethod:       "Count Based (V2)",
		V1ShortLookback:   7,
		V1MediumLookback:  23,
		V1LongLookback:    50,
		V1Percentile:      10.0,
		V2ShortLookback:   8,
		V2MediumLookback:  28,
		V2LongLookback:    48,
		V2Percentile:      25.0,
	})
}

// TestBar detects a down bar on shrinking volume and spread following an
// up bar that itself closed strong, optionally confirmed by a breakout on
// the prior bar. Unlike the other five, this pattern chains conditions
// across the two most recent bars directly rather than through the
// generic VSA filter set, mirroring breakout_vsa/core.py's test_bar_vsa.
// Grounded on breakout_vsa/strategies/test_bar.py.
func TestBar(f *frame.Frame, checkBar int) Result {
	_, idx, ok := f.At(checkBar)
	if !ok || idx < 2 {
		return noMatch()
	}
	bars := f.Bars
	bar := bars[idx]
	prev := bars[idx-1]

	const (
		volumeRatio        = 0.8
		spreadRatio        = 0.5
		closePositionPct   = 0.65
		breakoutLookback   = 5
	)

	if !(bar.Close < prev.Close) { // is_down_bar base condition
		return noMatch()
	}
	if !(prev.Close > prev.Open) { // yesterday was up
		return noMatch()
	}
	if bar.Volume >= prev.Volume*volumeRatio { // today vol < ratio * yesterday vol
		return noMatch()
	}
	todaySpread := bar.High - bar.Low
	prevSpread := prev.High - prev.Low
	if prevSpread == 0 || todaySpread >= prevSpread*spreadRatio {
		return noMatch()
	}
	prevPos := (prev.Close - prev.Low) / prevSpread
	if prevPos < closePositionPct {
		return noMatch()
	}
	win, ok := window(bars, idx-2, breakoutLookback)
	if ok {
		if prev.Close <= maxOf(highs(win)) {
			return noMatch()
		}
	}

	return Result{
		Detected: true,
		Index:    idx,
		Ts:       bar.Ts,
		Data: map[string]float64{
			"spread":      todaySpread,
			"prev_spread": prevSpread,
			"prev_close_position": prevPos,
		},
	}
}

// StartBar detects a high-volume bar making a new high with a wide range,
// closing strong, far from the previous close, while still sitting near
// recent macro lows — the first thrust out of a base. Grounded on
// breakout_vsa/core.py's calculate_start_bar.
func StartBar(f *frame.Frame, checkBar int) Result {
	_, idx, ok := f.At(checkBar)
	if !ok {
		return noMatch()
	}
	const (
		lookback             = 5
		volumeLookback       = 30
		volumePercentile     = 50.0
		lowPercentile        = 75.0
		rangePercentile      = 75.0
		closeOffLowsPercent  = 50.0
		prevCloseRangePct    = 75.0
	)
	bars := f.Bars
	if idx < volumeLookback {
		return noMatch()
	}
	bar := bars[idx]
	barRange := bar.High - bar.Low

	volWin, _ := window(bars, idx, lookback)
	volRank := percentileRank(volumes(volWin))
	isHigherVolume := volRank >= volumePercentile

	macroWin, _ := window(bars, idx, volumeLookback)
	macroLow := minOf(lows(macroWin))
	volSMA := meanOf(volumes(macroWin))
	isHighVolume := bar.Volume > 0.75*volSMA && (idx == 0 || bar.Volume > bars[idx-1].Volume)

	hasHigherHigh := idx > 0 && bar.High > bars[idx-1].High

	rangeWin, _ := window(bars, idx, lookback)
	rangeRank := percentileRank(spreads(rangeWin))
	noNarrowRange := rangeRank >= rangePercentile

	closeInHighs := barRange != 0 && (bar.Close-bar.Low)/barRange >= closeOffLowsPercent/100

	farPrevClose := false
	if idx > 0 {
		prevRange := bars[idx-1].High - bars[idx-1].Low
		farPrevClose = absF(bar.Close-bars[idx-1].Close) >= prevRange*(prevCloseRangePct/100)
	}

	lowWin, _ := window(bars, idx, volumeLookback)
	lowRank := percentileRank(lows(lowWin))
	isInTheLows := absF(bar.Low-macroLow) < barRange || lowRank <= lowPercentile

	highestHigh := maxOf(highs(volWin))
	newHighs := bar.High >= 0.75*highestHigh

	rangeSMA, rangeStd := meanOf(spreads(macroWin)), stdOf(spreads(macroWin))
	excessRange := barRange > rangeSMA+3.0*rangeStd
	excessVolume := bar.Volume > volSMA+3.0*stdOf(volumes(macroWin))

	detected := isHighVolume && hasHigherHigh && noNarrowRange && closeInHighs &&
		farPrevClose && !excessRange && !excessVolume && newHighs && isInTheLows
	_ = isHigherVolume // retained for payload parity with the original's volume_rank column

	return Result{
		Detected: detected,
		Index:    idx,
		Ts:       bar.Ts,
		Data: map[string]float64{
			"volume_rank": volRank,
			"range_rank":  rangeRank,
			"low_rank":    lowRank,
		},
		Flags: map[string]bool{
			"is_high_volume":  isHighVolume,
			"has_higher_high": hasHigherHigh,
			"no_narrow_range": noNarrowRange,
			"close_in_highs":  closeInHighs,
			"far_prev_close":  farPrevClose,
			"is_in_the_lows":  isInTheLows,
			"new_highs":       newHighs,
			"excess_range":    excessRange,
			"excess_volume":   excessVolume,
		},
	}
}

// percentileRank returns the percentile rank of the last element within
// xs: the fraction of elements <= the last one, as a percentage.
func percentileRank(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	cur := xs[len(xs)-1]
	count := 0
	for _, x := range xs {
		if x <= cur {
			count++
		}
	}
	return float64(count) / float64(len(xs)) * 100
}
