package detectors

import "marketscanner/internal/frame"

// VolumeSurge detects a bar whose volume sits more than stdDev sample
// standard deviations above its trailing mean, scored by how far the close
// pushed beyond the prior bar's range. Grounded on
// custom_strategies/volume_surge.py's detect_volume_surge/calculate_score.
func VolumeSurge(f *frame.Frame, checkBar int) Result {
	const (
		lookbackPeriod = 65
		stdDev         = 4.0
		alpha          = 1.5
		extremeLookback = 50
	)
	_, idx, ok := f.At(checkBar)
	if !ok || idx < 1 {
		return noMatch()
	}
	bars := f.Bars

	win, ok := window(bars, idx, lookbackPeriod)
	if !ok {
		return noMatch()
	}
	vol := volumes(win)
	meanVol, stdVol := meanOf(vol), stdOf(vol)
	upperBand := meanVol + stdDev*stdVol

	bar := bars[idx]
	if bar.Volume <= upperBand {
		return noMatch()
	}

	prev := bars[idx-1]
	rangePrev := prev.High - prev.Low
	rangeCurr := bar.High - bar.Low
	score := 0.0
	if rangePrev != 0 && rangeCurr != 0 {
		var closeRel float64
		switch {
		case bar.Close < prev.Low:
			closeRel = -1 + alpha*(bar.Close-prev.Low)/rangePrev
		case bar.Close > prev.High:
			closeRel = 1 + alpha*(bar.Close-prev.High)/rangePrev
		default:
			closeRel = (bar.Close - prev.Close) / rangePrev
		}
		score = (rangeCurr/rangePrev)*(2*(bar.Close-bar.Low)/(bar.High-bar.Low)-1) + closeRel
	}

	extremeWin, okExt := window(bars, idx-1, extremeLookback)
	newHigh, newLow, whiteCandle := false, false, bar.Close > prev.Close
	if okExt {
		priorHigh := maxOf(highs(extremeWin))
		priorLow := minOf(lows(extremeWin))
		newHigh = bar.High > priorHigh
		newLow = bar.Low < priorLow
	}

	volRatioWin, okRatio := window(bars, idx-1, 8)
	volumeRatio := 1.0
	if okRatio {
		volumeRatio = bar.Volume / meanOf(volumes(volRatioWin))
	}

	return Result{
		Detected: true,
		Index:    idx,
		Ts:       bar.Ts,
		Data: map[string]float64{
			"volume":       bar.Volume,
			"volume_usd":   bar.VolumeUSD(),
			"volume_ratio": volumeRatio,
			"score":        score,
		},
		Flags: map[string]bool{
			"white_candle": whiteCandle,
			"new_high":     newHigh,
			"new_low":      newLow,
		},
	}
}
