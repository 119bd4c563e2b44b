package scanner

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"marketscanner/internal/cache"
	"marketscanner/internal/exchanges"
	"marketscanner/internal/frame"
	"marketscanner/internal/strategies"
)

func resolveBarSelection(sel BarSelection) BarSelection {
	if sel == "" {
		return BarLastClosed
	}
	return sel
}

func checkBarsFor(sel BarSelection) []int {
	switch resolveBarSelection(sel) {
	case BarCurrent:
		return []int{-1}
	case BarBoth:
		return []int{-1, -2}
	default:
		return []int{-2}
	}
}

// ScanSymbol implements the Symbol Scanner (C7) for one
// (venue, timeframe, symbol): look up or fetch the frame, apply the
// volume gate, run every requested strategy in parallel, and merge the
// outcomes. A nil result with a nil error means "no results" (spec §4.6
// steps 2/3); a non-nil error means the caller's own fetch failed in a way
// the Exchange Scan Loop should log and skip.
func ScanSymbol(ctx context.Context, logger *zap.Logger, client exchanges.Client, c *cache.Cache, reg *strategies.Registry, timeframe, symbol string, opts Options) (*SymbolResult, error) {
	f, ok := c.Get(client.Name(), timeframe, symbol)
	if !ok {
		fetched, err := client.FetchKlines(ctx, symbol, timeframe, scanTargetCount)
		if err != nil {
			logger.Warn("kline fetch failed, skipping symbol",
				zap.String("venue", client.Name()), zap.String("symbol", symbol),
				zap.String("timeframe", timeframe), zap.Error(err))
			return nil, err
		}
		f = fetched
		c.Put(client.Name(), timeframe, symbol, f)
	}

	if f == nil || f.Len() < minFrameBars {
		return nil, nil
	}

	lastClosed, _, ok := f.At(-2)
	if !ok {
		return nil, nil
	}
	volumeUSD := lastClosed.VolumeUSD()
	floor := opts.MinVolumeUSD
	if floor == 0 {
		floor = MinVolumeUSD(timeframe)
	}
	if floor > 0 && volumeUSD < floor {
		return nil, nil
	}

	names := opts.Strategies
	if len(names) == 0 {
		names = reg.Names()
	}
	checkBars := checkBarsFor(opts.BarSelection)

	outcomes := make(map[string]StrategyOutcome, len(names))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, name := range names {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, ok := evalStrategy(reg, name, f, checkBars)
			if !ok {
				return
			}
			mu.Lock()
			outcomes[name] = outcome
			mu.Unlock()
		}()
	}
	wg.Wait()

	barRange := lastClosed.High - lastClosed.Low
	closeOffLow, closePos := 0.0, 0.0
	if barRange > 0 {
		closeOffLow = (lastClosed.Close - lastClosed.Low) / barRange * 100
		closePos = (lastClosed.Close - lastClosed.Low) / barRange
	}

	return &SymbolResult{
		Venue:                  client.Name(),
		Timeframe:              timeframe,
		Symbol:                 symbol,
		Close:                  lastClosed.Close,
		VolumeUSD:              volumeUSD,
		CloseOffLow:            closeOffLow,
		ClosePositionIndicator: closePos,
		Strategies:             outcomes,
	}, nil
}

// evalStrategy runs name at every candidate check_bar in order and returns
// the most recent detection (bar-selection policy "both" prefers -1 over
// -2 per spec §4.6 step 5). ok is false when no candidate bar fired, or the
// strategy name isn't registered (not fatal; the caller drops it silently).
func evalStrategy(reg *strategies.Registry, name string, f *frame.Frame, checkBars []int) (StrategyOutcome, bool) {
	for _, cb := range checkBars {
		res, err := reg.Run(name, f, cb)
		if err != nil {
			return StrategyOutcome{}, false
		}
		if res.Detected {
			return StrategyOutcome{CheckBar: cb, Result: res}, true
		}
	}
	return StrategyOutcome{}, false
}
