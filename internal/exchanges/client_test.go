package exchanges

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"marketscanner/internal/frame"
)

func TestIsLeveragedToken(t *testing.T) {
	cases := map[string]bool{
		"BTC":   false,
		"ETH":   false,
		"BTC3L": true,
		"BTC3S": true,
		"SOL2L": true,
		"ADA5L": true,
		"ADA5S": true,
	}
	for sym, want := range cases {
		if got := IsLeveragedToken(sym); got != want {
			t.Errorf("IsLeveragedToken(%q) = %v, want %v", sym, got, want)
		}
	}
}

func TestNativeInterval(t *testing.T) {
	if got := nativeInterval(frame.TF1d); got != frame.TF1d {
		t.Errorf("1d native = %v, want 1d", got)
	}
	if got := nativeInterval(frame.TF2d); got != frame.TF1d {
		t.Errorf("2d native = %v, want 1d", got)
	}
	if got := nativeInterval(frame.TF1w); got != frame.TF1d {
		t.Errorf("1w native = %v, want 1d", got)
	}
	if got := nativeInterval(frame.TF4h); got != frame.TF4h {
		t.Errorf("4h native = %v, want 4h", got)
	}
}

func TestSFProxyRejectsNonWeeklyTimeframe(t *testing.T) {
	c := NewSFProxy(zap.NewNop(), []string{"BTCUSDT"})
	_, err := c.FetchKlines(nil, "BTCUSDT", frame.TF1d, 60)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestRegistryRejectsUnknownVenue(t *testing.T) {
	_, err := NewRegistry(zap.NewNop(), VenueConfig{Enabled: []string{"nonsense_venue"}})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestRegistryRejectsSFProxyWithoutPairs(t *testing.T) {
	_, err := NewRegistry(zap.NewNop(), VenueConfig{Enabled: []string{"sf_mexc"}})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestRegistryBuildsFastAndSlowVenues(t *testing.T) {
	r, err := NewRegistry(zap.NewNop(), VenueConfig{Enabled: []string{"binance_spot", "bybit", "okx", "kucoin", "mexc"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fast, slow := r.BySpeed()
	if len(fast) != 2 {
		t.Errorf("expected 2 fast venues (binance, bybit), got %d", len(fast))
	}
	if len(slow) != 3 {
		t.Errorf("expected 3 slow venues (okx, kucoin, mexc), got %d", len(slow))
	}
	if _, ok := r.Get("binance_spot"); !ok {
		t.Errorf("expected binance_spot registered")
	}
}
