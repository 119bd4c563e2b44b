package scanner

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"marketscanner/internal/cache"
	"marketscanner/internal/exchanges"
	"marketscanner/internal/frame"
	"marketscanner/internal/strategies"
)

// fakeClient is a minimal exchanges.Client stub for scanner tests: it never
// hits the network, returning canned frames/symbol lists set up per test.
type fakeClient struct {
	name    string
	symbols []string
	frames  map[string]*frame.Frame
	fetches int
}

func (c *fakeClient) Name() string { return c.name }
func (c *fakeClient) Speed() exchanges.Speed { return exchanges.SpeedFast }
func (c *fakeClient) ListSymbols(ctx context.Context) ([]string, error) {
	return c.symbols, nil
}
func (c *fakeClient) FetchKlines(ctx context.Context, symbol, timeframe string, targetCount int) (*frame.Frame, error) {
	c.fetches++
	return c.frames[symbol], nil
}

func flatFrame(n int, open, high, low, close, volume float64) *frame.Frame {
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]frame.Bar, n)
	for i := 0; i < n; i++ {
		rows[i] = frame.Bar{
			Ts:     base.AddDate(0, 0, i),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: volume,
		}
	}
	return frame.New("fake", "BTCUSDT", frame.TF1d, rows)
}

func TestScanSymbolSkipsWhenFrameTooShort(t *testing.T) {
	logger := zap.NewNop()
	client := &fakeClient{name: "fake", frames: map[string]*frame.Frame{
		"BTCUSDT": flatFrame(3, 10, 11, 9, 10, 1000),
	}}
	c := cache.New()
	reg := strategies.NewDefaultRegistry()

	res, err := ScanSymbol(context.Background(), logger, client, c, reg, frame.TF1d, "BTCUSDT", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != nil {
		t.Errorf("expected nil result for a frame under the 10-bar floor, got %+v", res)
	}
}

func TestScanSymbolAppliesVolumeGate(t *testing.T) {
	logger := zap.NewNop()
	// close*volume = 10*100 = 1000, well under the 1d default of 75,000.
	client := &fakeClient{name: "fake", frames: map[string]*frame.Frame{
		"BTCUSDT": flatFrame(30, 10, 10.2, 9.8, 10, 100),
	}}
	c := cache.New()
	reg := strategies.NewDefaultRegistry()

	res, err := ScanSymbol(context.Background(), logger, client, c, reg, frame.TF1d, "BTCUSDT", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != nil {
		t.Errorf("expected the volume gate to suppress this symbol, got %+v", res)
	}
}

func TestScanSymbolCachesFetchedFrame(t *testing.T) {
	logger := zap.NewNop()
	client := &fakeClient{name: "fake", frames: map[string]*frame.Frame{
		// close*volume = 100*1000 = 100,000 clears the 1d default gate.
		"BTCUSDT": flatFrame(30, 100, 100.2, 99.8, 100, 1000),
	}}
	c := cache.New()
	reg := strategies.NewDefaultRegistry()

	if _, err := ScanSymbol(context.Background(), logger, client, c, reg, frame.TF1d, "BTCUSDT", Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ScanSymbol(context.Background(), logger, client, c, reg, frame.TF1d, "BTCUSDT", Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.fetches != 1 {
		t.Errorf("expected the second scan to hit the cache, got %d fetches", client.fetches)
	}
}

func TestRunExchangeScanLoopCollectsAcrossBatches(t *testing.T) {
	logger := zap.NewNop()
	frames := map[string]*frame.Frame{
		"AAAUSDT": flatFrame(30, 100, 100.2, 99.8, 100, 1000),
		"BBBUSDT": flatFrame(30, 100, 100.2, 99.8, 100, 1000),
		"CCCUSDT": flatFrame(3, 100, 100.2, 99.8, 100, 1000),
	}
	client := &fakeClient{name: "fake", symbols: []string{"AAAUSDT", "BBBUSDT", "CCCUSDT"}, frames: frames}
	c := cache.New()
	reg := strategies.NewDefaultRegistry()

	results, err := RunExchangeScanLoop(context.Background(), logger, client, c, reg, frame.TF1d, Options{BatchSize: 2, BatchSleep: time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 symbols to clear the volume/length gates, got %d: %+v", len(results), results)
	}
}
