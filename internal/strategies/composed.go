package strategies

import (
	"marketscanner/internal/detectors"
	"marketscanner/internal/frame"
)

// hbsBreakout implements the `hbs_breakout` composed strategy: a confluence
// detection together with either a consolidation breakout or a channel
// breakout. It calls its primitive dependencies through the registry
// rather than importing detectors.Confluence/etc. directly, so a future
// registry override of a primitive (e.g. a tuned confluence variant) is
// picked up here too.
func (r *Registry) hbsBreakout(f *frame.Frame, checkBar int) detectors.Result {
	confluence, err := r.Run("confluence", f, checkBar)
	if err != nil || !confluence.Detected {
		return detectors.Result{}
	}

	consBreak, err := r.Run("consolidation_breakout", f, checkBar)
	if err != nil {
		consBreak = detectors.Result{}
	}
	chanBreak, err := r.Run("channel_breakout", f, checkBar)
	if err != nil {
		chanBreak = detectors.Result{}
	}
	if !consBreak.Detected && !chanBreak.Detected {
		return detectors.Result{}
	}

	breakoutType := "channel_breakout"
	switch {
	case consBreak.Detected && chanBreak.Detected:
		breakoutType = "both"
	case consBreak.Detected:
		breakoutType = "consolidation_breakout"
	}

	breakUp := consBreak.Flags["break_up"] || chanBreak.Flags["break_up"]
	breakDown := consBreak.Flags["break_down"] || chanBreak.Flags["break_down"]
	direction := "Down"
	if breakUp {
		direction = "Up"
	}

	strength := "regular"
	if consBreak.Detected && consBreak.Flags["strong"] {
		strength = "strong"
	}

	hasSMA50, _ := r.Run("sma50_breakout", f, checkBar)
	hasEngulfing, _ := r.Run("bullish_engulfing", f, checkBar)
	hasVolume, _ := r.Run("volume_surge", f, checkBar)

	flags := map[string]bool{
		"has_sma50_breakout":     hasSMA50.Detected,
		"has_engulfing_reversal": hasEngulfing.Detected,
		"has_volume_breakout":    hasVolume.Detected,
		"break_up":               breakUp,
		"break_down":             breakDown,
	}
	for name, v := range confluence.Flags {
		flags["confluence_"+name] = v
	}

	data := map[string]float64{}
	for name, v := range confluence.Data {
		data["confluence_"+name] = v
	}

	return detectors.Result{
		Detected: true,
		Index:    confluence.Index,
		Ts:       confluence.Ts,
		Data:     data,
		Flags:    flags,
		Labels: map[string]string{
			"direction":     direction,
			"breakout_type": breakoutType,
			"strength":      strength,
		},
	}
}

// vsWakeup implements the `vs_wakeup` composed strategy: the checked bar
// must lie inside an active consolidation box (not a breakout) and a
// confluence-wakeup signal (volume + range breakout, momentum not
// required) must also fire.
func (r *Registry) vsWakeup(f *frame.Frame, checkBar int) detectors.Result {
	box, err := r.Run("consolidation_box", f, checkBar)
	if err != nil || !box.Detected {
		return detectors.Result{}
	}

	breakout, err := r.Run("consolidation_breakout", f, checkBar)
	if err == nil && breakout.Detected {
		return detectors.Result{}
	}

	wakeup, err := r.Run("confluence_wakeup", f, checkBar)
	if err != nil || !wakeup.Detected {
		return detectors.Result{}
	}

	data := map[string]float64{}
	for name, v := range box.Data {
		data["box_"+name] = v
	}
	for name, v := range wakeup.Data {
		data["wakeup_"+name] = v
	}

	flags := map[string]bool{}
	for name, v := range wakeup.Flags {
		flags["wakeup_"+name] = v
	}

	return detectors.Result{
		Detected: true,
		Index:    wakeup.Index,
		Ts:       wakeup.Ts,
		Data:     data,
		Flags:    flags,
	}
}
