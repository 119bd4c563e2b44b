package orchestrator

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"marketscanner/internal/cache"
	"marketscanner/internal/exchanges"
	"marketscanner/internal/frame"
	"marketscanner/internal/scanner"
	"marketscanner/internal/sink"
	"marketscanner/internal/strategies"
)

// Orchestrator drives the per-timeframe phase plan (spec §4.8) over a
// shared Frame Cache, venue registry and strategy registry, invoking the
// Event Sink (C10) on every result it collects.
type Orchestrator struct {
	logger   *zap.Logger
	venues   *exchanges.Registry
	registry *strategies.Registry
	cache    *cache.Cache
	sink     *sink.Sink
}

// New builds an Orchestrator over the given venue registry, strategy
// registry, Frame Cache and Event Sink — all constructed once at process
// startup and shared across every tick. s may be nil to run scans without
// persistence or notifications (e.g. in tests).
func New(logger *zap.Logger, venues *exchanges.Registry, registry *strategies.Registry, c *cache.Cache, s *sink.Sink) *Orchestrator {
	return &Orchestrator{logger: logger, venues: venues, registry: registry, cache: c, sink: s}
}

func isFuturesVenue(name string) bool {
	return strings.HasSuffix(name, "_futures")
}

// RunPhase implements the Phased Orchestrator's per-timeframe plan (spec
// §4.8 steps 1-7): clear the cache, partition venues into fast/slow/
// futures-only groups, run each priority group sequentially with a
// breather between them, and merge the results. A single venue's loop
// failure is logged and does not abort the phase (spec §7: "a single
// venue's failure never aborts the phase").
func (o *Orchestrator) RunPhase(ctx context.Context, cfg Config, timeframe string) ([]scanner.SymbolResult, error) {
	cfg = cfg.withDefaults()
	o.cache.Clear()

	fastAll, slowAll := o.venues.BySpeed()
	fastAll = filterEnabled(fastAll, cfg.Venues)
	slowAll = filterEnabled(slowAll, cfg.Venues)

	var fastSpot, fastFutures []exchanges.Client
	for _, c := range fastAll {
		if isFuturesVenue(c.Name()) {
			fastFutures = append(fastFutures, c)
		} else {
			fastSpot = append(fastSpot, c)
		}
	}

	primary, composed := splitStrategies(strategyNames(cfg, o.registry))

	opts := scanner.Options{
		BarSelection: cfg.BarSelection,
		BatchSize:    cfg.BatchSize,
		BatchSleep:   cfg.BatchSleep,
	}
	if len(cfg.VolumeOverride) > 0 {
		if v, ok := cfg.VolumeOverride[timeframe]; ok {
			opts.MinVolumeUSD = v
		}
	}

	var all []scanner.SymbolResult

	run := func(label string, venues []exchanges.Client, names []string, maxConcurrent int) {
		if len(venues) == 0 || len(names) == 0 {
			return
		}
		o.logger.Info("running priority group",
			zap.String("group", label), zap.String("timeframe", timeframe),
			zap.Int("venues", len(venues)), zap.Int("strategies", len(names)))
		groupOpts := opts
		groupOpts.Strategies = names
		results := o.runVenueGroup(ctx, venues, maxConcurrent, cfg.StartStagger, timeframe, groupOpts)
		all = append(all, results...)
		o.breather(ctx, cfg)
	}

	run("fast-primary", fastSpot, primary, cfg.FastMaxExchanges)
	run("fast-composed", fastSpot, composed, cfg.FastMaxExchanges)
	run("fast-futures-only", fastFutures, primary, cfg.FastMaxExchanges)
	run("slow-primary", slowAll, primary, cfg.SlowMaxExchanges)
	run("slow-composed", slowAll, composed, cfg.SlowMaxExchanges)

	if frame.IsDerived(timeframe) {
		o.cache.Clear()
	}

	return all, nil
}

func strategyNames(cfg Config, registry *strategies.Registry) []string {
	if len(cfg.Strategies) > 0 {
		return cfg.Strategies
	}
	return registry.Names()
}

func filterEnabled(venues []exchanges.Client, enabled []string) []exchanges.Client {
	if len(enabled) == 0 {
		return venues
	}
	allow := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		allow[name] = true
	}
	out := make([]exchanges.Client, 0, len(venues))
	for _, c := range venues {
		if allow[c.Name()] {
			out = append(out, c)
		}
	}
	return out
}

// runVenueGroup runs one Exchange Scan Loop per venue, bounded to
// maxConcurrent simultaneously active loops (spec §8 invariant 9), each
// started after a randomized stagger in [0, startStagger) for rate-limit
// friendliness (spec §4.8 step 3).
func (o *Orchestrator) runVenueGroup(ctx context.Context, venues []exchanges.Client, maxConcurrent int, startStagger time.Duration, timeframe string, opts scanner.Options) []scanner.SymbolResult {
	sem := make(chan struct{}, maxConcurrent)
	var mu sync.Mutex
	var wg sync.WaitGroup
	var results []scanner.SymbolResult

	for _, client := range venues {
		client := client
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if startStagger > 0 {
				delay := time.Duration(rand.Int63n(int64(startStagger)))
				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}
			}

			res, err := scanner.RunExchangeScanLoop(ctx, o.logger, client, o.cache, o.registry, timeframe, opts)
			if err != nil {
				o.logger.Warn("exchange scan loop failed, skipping venue",
					zap.String("venue", client.Name()), zap.String("timeframe", timeframe), zap.Error(err))
				return
			}
			if o.sink != nil {
				for _, sr := range res {
					if err := o.sink.Handle(ctx, sr); err != nil {
						o.logger.Warn("event sink handling failed",
							zap.String("venue", client.Name()), zap.String("symbol", sr.Symbol), zap.Error(err))
					}
				}
			}
			mu.Lock()
			results = append(results, res...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// breather sleeps a randomized pause in [BreatherMin, BreatherMax] between
// priority groups (spec §4.8: "a short breather (5-15s) separates priority
// groups to allow rate-limit windows to refresh").
func (o *Orchestrator) breather(ctx context.Context, cfg Config) {
	span := int64(cfg.BreatherMax - cfg.BreatherMin)
	d := cfg.BreatherMin
	if span > 0 {
		d += time.Duration(rand.Int63n(span))
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
