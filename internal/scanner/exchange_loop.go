package scanner

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"marketscanner/internal/cache"
	"marketscanner/internal/exchanges"
	"marketscanner/internal/strategies"
)

const (
	defaultBatchSize  = 25
	defaultBatchSleep = 500 * time.Millisecond
)

func resolveBatching(opts Options) (int, time.Duration) {
	size := opts.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	sleep := opts.BatchSleep
	if sleep <= 0 {
		sleep = defaultBatchSleep
	}
	return size, sleep
}

// RunExchangeScanLoop implements the Exchange Scan Loop (C8) for one
// (venue, timeframe): list symbols, process them in fixed-size batches
// with parallelism inside each batch, and sleep briefly between batches.
// A single symbol's failure is logged and skipped; it never aborts the
// loop (spec §7: "a single symbol's failure never propagates beyond its
// task").
func RunExchangeScanLoop(ctx context.Context, logger *zap.Logger, client exchanges.Client, c *cache.Cache, reg *strategies.Registry, timeframe string, opts Options) ([]SymbolResult, error) {
	symbols, err := client.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}

	batchSize, batchSleep := resolveBatching(opts)
	results := make([]SymbolResult, 0, len(symbols))

	for start := 0; start < len(symbols); start += batchSize {
		end := start + batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, symbol := range batch {
			symbol := symbol
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := ScanSymbol(ctx, logger, client, c, reg, timeframe, symbol, opts)
				if err != nil {
					logger.Warn("symbol scan failed, skipping",
						zap.String("venue", client.Name()), zap.String("symbol", symbol),
						zap.String("timeframe", timeframe), zap.Error(err))
					return
				}
				if res == nil {
					return
				}
				mu.Lock()
				results = append(results, *res)
				mu.Unlock()
			}()
		}
		wg.Wait()

		if end < len(symbols) {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(batchSleep):
			}
		}
	}

	return results, nil
}
