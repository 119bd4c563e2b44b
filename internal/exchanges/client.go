// Package exchanges implements the per-venue kline acquisition layer (C2):
// REST pagination, symbol listing with leveraged-token exclusion, and
// normalization into a canonical frame.Frame, aggregating through
// internal/frame when a derived timeframe is requested.
package exchanges

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"marketscanner/internal/frame"
)

// Error kinds from spec §7. These are sentinels, not an exception
// hierarchy: callers use errors.Is against them.
var (
	ErrRateLimited       = errors.New("exchanges: rate limited")
	ErrSymbolNotFound    = errors.New("exchanges: symbol not found")
	ErrVenueProtocol     = errors.New("exchanges: venue protocol error")
	ErrConfiguration     = errors.New("exchanges: configuration error")
)

// Speed is the venue's phase-scheduling speed class (spec §4.8).
type Speed string

const (
	SpeedFast Speed = "fast"
	SpeedSlow Speed = "slow"
)

// Client is the per-venue collaborator the Orchestrator/Scanner drive.
// Implementations paginate backward from "now" until target_count rows are
// collected, normalize venue-specific rows into a frame.Frame at the
// venue's native interval, and aggregate when the requested timeframe is
// derived (2d/3d/4d/1w always fold up from a native 1d frame, per spec §3).
type Client interface {
	// Name is the venue identifier used in cache keys, logs and config.
	Name() string
	// Speed classifies the venue for phase concurrency (fast vs slow).
	Speed() Speed
	// ListSymbols returns active quote-currency trading pairs, excluding
	// leveraged tokens by suffix.
	ListSymbols(ctx context.Context) ([]string, error)
	// FetchKlines resolves timeframe to the venue's native interval (1d for
	// any derived timeframe), pages backward until targetCount rows are
	// collected or the venue runs out of history, normalizes, and
	// aggregates if needed.
	FetchKlines(ctx context.Context, symbol, timeframe string, targetCount int) (*frame.Frame, error)
}

// leveragedSuffixes lists the leveraged-token suffixes excluded at
// ListSymbols time (spec §4.2): 2L, 3L, 3S, 5L, 5S.
var leveragedSuffixes = []string{"2L", "3L", "3S", "5L", "5S"}

// IsLeveragedToken reports whether base currency symbol (e.g. "BTC3L")
// names a leveraged token that must be excluded from scanning.
func IsLeveragedToken(base string) bool {
	for _, suf := range leveragedSuffixes {
		if strings.HasSuffix(base, suf) {
			return true
		}
	}
	return false
}

// nativeInterval resolves a requested timeframe to the venue-native
// interval string that must actually be requested from the REST API: any
// derived timeframe (2d/3d/4d/1w) is always built from "1d" source bars.
func nativeInterval(timeframe string) string {
	if frame.IsDerived(timeframe) {
		return frame.TF1d
	}
	return timeframe
}

// fetchAndAggregate is the shared tail end of FetchKlines: fetch native 1d
// (or whatever native timeframe) bars via fetchNative, then aggregate if
// the caller actually wanted a derived timeframe.
func fetchAndAggregate(venue, symbol, timeframe string, targetCount int, fetchNative func(nativeTF string, count int) (*frame.Frame, error)) (*frame.Frame, error) {
	native := nativeInterval(timeframe)
	count := targetCount
	if frame.IsDerived(timeframe) {
		// Need enough 1d bars to cover targetCount periods of the derived
		// timeframe plus SMA-50 warmup headroom.
		need := targetCount * frame.Multiplier(timeframe)
		if warm := frame.MinSourceBars(timeframe); warm > need {
			need = warm
		}
		count = need
	}

	nf, err := fetchNative(native, count)
	if err != nil {
		return nil, err
	}
	if !frame.IsDerived(timeframe) {
		return nf, nil
	}
	return frame.Aggregate(nf, timeframe)
}

// retryBackoff implements spec §4.2/§7's transient-fetch retry policy: up
// to 3 retries with an approximately 2s/4s/6s backoff ladder. Returns the
// last error if all retries are exhausted; the caller treats that as an
// empty frame per spec, not a propagated failure.
func retryBackoff(ctx context.Context, logger *zap.Logger, venue, symbol string, attempt func() error) error {
	delays := []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}
	var lastErr error
	for i := 0; i <= len(delays); i++ {
		lastErr = attempt()
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, ErrRateLimited) && !isTransient(lastErr) {
			return lastErr
		}
		if i == len(delays) {
			break
		}
		logger.Warn("transient fetch error, retrying",
			zap.String("venue", venue), zap.String("symbol", symbol),
			zap.Int("attempt", i+1), zap.Duration("backoff", delays[i]), zap.Error(lastErr))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delays[i]):
		}
	}
	return lastErr
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// RegistryError wraps a failed client construction (e.g. an SF-proxied
// venue requested at an unsupported timeframe) as a ConfigurationError,
// per spec §7: "fail fast at Orchestrator entry".
type RegistryError struct {
	Venue string
	Err   error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("exchanges: %s: %v", e.Venue, e.Err)
}

func (e *RegistryError) Unwrap() error { return e.Err }

func (e *RegistryError) Is(target error) bool { return target == ErrConfiguration }
