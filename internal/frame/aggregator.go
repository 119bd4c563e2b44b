package frame

import "time"

// Derived timeframe identifiers. Native timeframes (4h, 1d) pass through
// unaggregated; these four are always built from a 1d source frame
// regardless of whether a venue offers a native equivalent (spec §3), so
// that bar boundaries line up across venues.
const (
	TF4h = "4h"
	TF1d = "1d"
	TF2d = "2d"
	TF3d = "3d"
	TF4d = "4d"
	TF1w = "1w"
)

// Multiplier reports how many 1d bars compose one bar of the derived
// timeframe tf. Used for SMA-50-warmup source-count requirements.
func Multiplier(tf string) int {
	switch tf {
	case TF2d:
		return 2
	case TF3d:
		return 3
	case TF4d:
		return 4
	case TF1w:
		return 7
	default:
		return 1
	}
}

// IsDerived reports whether tf must be built by aggregating 1d bars.
func IsDerived(tf string) bool {
	switch tf {
	case TF2d, TF3d, TF4d, TF1w:
		return true
	default:
		return false
	}
}

var (
	ref2d = time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)
	ref3d = time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)
	ref4d = time.Date(2025, time.March, 22, 0, 0, 0, 0, time.UTC)
)

// periodIndex computes floor((date-ref)/period days) as an integer, which
// for dates before ref is a negative index (Go's integer division on a
// negative numerator truncates toward zero, so we floor explicitly).
func periodIndex(date, ref time.Time, periodDays int) int64 {
	days := int64(date.Sub(ref).Hours() / 24)
	p := int64(periodDays)
	if days < 0 && days%p != 0 {
		return days/p - 1
	}
	return days / p
}

// periodStart returns the calendar date (UTC midnight) that begins the
// period index idx for the given reference date and period length.
func periodStart(ref time.Time, periodDays int, idx int64) time.Time {
	return ref.AddDate(0, 0, int(idx)*periodDays)
}

// mondayOf returns the Monday (UTC midnight) of the week containing t.
func mondayOf(t time.Time) time.Time {
	d := dateOnly(t)
	offset := (int(d.Weekday()) + 6) % 7 // Monday=0 .. Sunday=6
	return d.AddDate(0, 0, -offset)
}

func dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Aggregate folds the 1d bars of src into the target derived timeframe,
// grouping by the fixed reference-date anchor for that timeframe (or by
// Monday for 1w) and reducing each group with
// open=first, high=max, low=min, close=last, volume=sum.
//
// Aggregation is idempotent and commutes with prefix truncation: the result
// of aggregating a prefix of src is the prefix of aggregating src in full,
// because each emitted bar depends only on the source bars that fall inside
// its own complete or trailing-partial period.
func Aggregate(src *Frame, target string) (*Frame, error) {
	if src == nil || src.Timeframe != TF1d {
		return nil, ErrInsufficientData
	}
	if len(src.Bars) < 10 {
		return nil, ErrInsufficientData
	}

	groups := groupByPeriod(src.Bars, target)
	if len(groups) == 0 {
		return nil, ErrInsufficientData
	}

	out := make([]Bar, 0, len(groups))
	for _, g := range groups {
		out = append(out, reduce(g))
	}
	return &Frame{Venue: src.Venue, Symbol: src.Symbol, Timeframe: target, Bars: out}, nil
}

// periodGroup is one aggregation bucket: the bars contributing to it and
// the period's own anchor (the earliest period boundary <= those bars),
// which is the timestamp the emitted bar must carry (spec §8 invariant 2)
// even when the source frame's leading edge falls mid-period.
type periodGroup struct {
	anchor time.Time
	bars   []Bar
}

// Weekly is a convenience alias for Aggregate(src, TF1w).
func Weekly(src *Frame) (*Frame, error) {
	return Aggregate(src, TF1w)
}

func groupByPeriod(bars []Bar, target string) []periodGroup {
	var groups []periodGroup
	var curKey int64
	started := false

	keyOf := func(b Bar) (int64, time.Time) {
		switch target {
		case TF2d:
			idx := periodIndex(dateOnly(b.Ts), ref2d, 2)
			return idx, periodStart(ref2d, 2, idx)
		case TF3d:
			idx := periodIndex(dateOnly(b.Ts), ref3d, 3)
			return idx, periodStart(ref3d, 3, idx)
		case TF4d:
			idx := periodIndex(dateOnly(b.Ts), ref4d, 4)
			return idx, periodStart(ref4d, 4, idx)
		case TF1w:
			m := mondayOf(b.Ts)
			return m.Unix(), m
		default:
			return b.Ts.Unix(), b.Ts
		}
	}

	for _, b := range bars {
		key, anchor := keyOf(b)
		if !started || key != curKey {
			groups = append(groups, periodGroup{anchor: anchor, bars: []Bar{b}})
			curKey = key
			started = true
			continue
		}
		last := &groups[len(groups)-1]
		last.bars = append(last.bars, b)
	}
	return groups
}

func reduce(g periodGroup) Bar {
	bars := g.bars
	out := Bar{
		Ts:     g.anchor,
		Open:   bars[0].Open,
		High:   bars[0].High,
		Low:    bars[0].Low,
		Close:  bars[len(bars)-1].Close,
		Volume: 0,
	}
	for _, b := range bars {
		if b.High > out.High {
			out.High = b.High
		}
		if b.Low < out.Low {
			out.Low = b.Low
		}
		out.Volume += b.Volume
		out.QuoteVolume += b.QuoteVolume
	}
	return out
}

// IsActiveOn reports whether timeframe tf has a period boundary on the
// given calendar date, per spec §4.8's multi-timeframe calendar gating:
// 1d and 4h are always active; 1w is active on Mondays; 2d/3d/4d are
// active when `today` falls exactly on one of their fixed-anchor period
// starts (the same ref2d/ref3d/ref4d anchors Aggregate groups bars by).
func IsActiveOn(tf string, today time.Time) bool {
	d := dateOnly(today)
	switch tf {
	case TF1d, TF4h:
		return true
	case TF1w:
		return d.Weekday() == time.Monday
	case TF2d:
		return atPeriodBoundary(d, ref2d, 2)
	case TF3d:
		return atPeriodBoundary(d, ref3d, 3)
	case TF4d:
		return atPeriodBoundary(d, ref4d, 4)
	default:
		return false
	}
}

func atPeriodBoundary(d, ref time.Time, periodDays int) bool {
	idx := periodIndex(d, ref, periodDays)
	return periodStart(ref, periodDays, idx).Equal(d)
}

// MinSourceBars returns the minimum number of 1d source bars required for
// SMA-50 warmup (50 + 10 periods) on the given target timeframe, scaled by
// that timeframe's multiplier. Native 1d/4h frames need 50+10 bars outright.
func MinSourceBars(targetTF string) int {
	return (50 + 10) * Multiplier(targetTF)
}
