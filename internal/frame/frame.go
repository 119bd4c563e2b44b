// Package frame implements the canonical OHLCV bar series (C1) and the
// deterministic aggregator that derives higher timeframes from it (C3).
package frame

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrInsufficientData is returned when a source series has too few usable
// bars to produce a derived frame.
var ErrInsufficientData = errors.New("frame: insufficient data")

// Bar is one OHLCV candlestick. Ts is the opening instant of the bar's
// interval, stored as UTC and treated as timezone-naive by every consumer.
type Bar struct {
	Ts     time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	// QuoteVolume is the venue-reported turnover in quote-currency units
	// (e.g. Binance's quoteAssetVolume, Bybit's turnover, KuCoin's turnover
	// field) when the venue's kline response carries one. Every venue
	// wired into internal/exchanges quotes in USDT, so a non-zero
	// QuoteVolume is already a USD-equivalent figure; zero means the venue
	// response didn't carry one and callers should fall back to
	// Volume*Close (spec §9's Open Question on base-vs-quote volume).
	QuoteVolume float64
}

// VolumeUSD returns the bar's USD-equivalent traded volume: the venue's own
// quote-currency turnover when available, otherwise the base-volume*close
// approximation.
func (b Bar) VolumeUSD() float64 {
	if b.QuoteVolume > 0 {
		return b.QuoteVolume
	}
	return b.Volume * b.Close
}

// Valid reports whether the bar satisfies the OHLCV invariants from the data
// model: low <= min(open,close) <= max(open,close) <= high, volume >= 0.
func (b Bar) Valid() bool {
	if math.IsNaN(b.Open) || math.IsNaN(b.High) || math.IsNaN(b.Low) || math.IsNaN(b.Close) || math.IsNaN(b.Volume) {
		return false
	}
	lo := math.Min(b.Open, b.Close)
	hi := math.Max(b.Open, b.Close)
	return b.Low <= lo && hi <= b.High && b.Volume >= 0
}

// Frame is an ordered, gapless, strictly-increasing-timestamp sequence of
// bars for one (venue, symbol, timeframe).
type Frame struct {
	Venue     string
	Symbol    string
	Timeframe string
	Bars      []Bar
}

// Len returns the number of bars in the frame.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Bars)
}

// Last returns the most recent bar and true, or the zero Bar and false if
// the frame is empty.
func (f *Frame) Last() (Bar, bool) {
	if f.Len() == 0 {
		return Bar{}, false
	}
	return f.Bars[len(f.Bars)-1], true
}

// At resolves a spec "check_bar" index (-1 = currently forming bar, -2 =
// last closed bar, or any other negative offset from the end) against the
// frame. ok is false when the index falls outside the available bars.
func (f *Frame) At(checkBar int) (bar Bar, idx int, ok bool) {
	if checkBar >= 0 {
		return Bar{}, 0, false
	}
	idx = f.Len() + checkBar
	if idx < 0 || idx >= f.Len() {
		return Bar{}, 0, false
	}
	return f.Bars[idx], idx, true
}

// IsCurrentBar reports whether checkBar refers to the open (still forming)
// bar, i.e. check_bar == -1.
func IsCurrentBar(checkBar int) bool {
	return checkBar == -1
}

// New builds a Frame from raw bars: drops NaN/invalid rows, sorts
// ascending by timestamp, and removes duplicate timestamps (keeping the
// last-seen row for a given ts, mirroring how venues occasionally resend
// the still-forming bar).
func New(venue, symbol, timeframe string, rows []Bar) *Frame {
	clean := make([]Bar, 0, len(rows))
	for _, r := range rows {
		if !r.Valid() {
			continue
		}
		clean = append(clean, r)
	}
	sort.SliceStable(clean, func(i, j int) bool { return clean[i].Ts.Before(clean[j].Ts) })

	deduped := make([]Bar, 0, len(clean))
	for _, b := range clean {
		if n := len(deduped); n > 0 && deduped[n-1].Ts.Equal(b.Ts) {
			deduped[n-1] = b
			continue
		}
		deduped = append(deduped, b)
	}

	return &Frame{Venue: venue, Symbol: symbol, Timeframe: timeframe, Bars: deduped}
}

// Prefix returns a new Frame containing only the first n bars, used to
// verify the aggregation prefix-commutation contract.
func (f *Frame) Prefix(n int) *Frame {
	if n > f.Len() {
		n = f.Len()
	}
	out := make([]Bar, n)
	copy(out, f.Bars[:n])
	return &Frame{Venue: f.Venue, Symbol: f.Symbol, Timeframe: f.Timeframe, Bars: out}
}

// Closes returns the Close price series, oldest first.
func (f *Frame) Closes() []float64 {
	out := make([]float64, f.Len())
	for i, b := range f.Bars {
		out[i] = b.Close
	}
	return out
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame{%s/%s/%s, %d bars}", f.Venue, f.Symbol, f.Timeframe, f.Len())
}
