package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"marketscanner/internal/frame"
)

// State is the long-running scheduler's state (spec §4.8).
type State string

const (
	StateIdle        State = "idle"
	StateScanning    State = "scanning"
	StateCoolingDown State = "cooling_down"
)

const (
	minCooldown       = 1 * time.Minute
	fatalSchedulerSleep = 2 * time.Minute
)

// Scheduler drives the Orchestrator against candle-close boundaries,
// implementing the Idle -> Scanning -> CoolingDown -> Idle state machine
// from spec §4.8.
type Scheduler struct {
	logger       *zap.Logger
	orchestrator *Orchestrator
	cfg          Config
	state        State

	// now is overridable in tests; defaults to time.Now.
	now func() time.Time
}

// NewScheduler builds a Scheduler over an already-constructed Orchestrator.
func NewScheduler(logger *zap.Logger, o *Orchestrator, cfg Config) *Scheduler {
	return &Scheduler{logger: logger, orchestrator: o, cfg: cfg.withDefaults(), state: StateIdle, now: time.Now}
}

// State returns the scheduler's current state, for health/metrics reporting.
func (s *Scheduler) State() State { return s.state }

// activeTimeframes returns cfg.Timeframes filtered to those whose calendar
// gate (spec §4.8) is open today.
func (s *Scheduler) activeTimeframes(today time.Time) []string {
	active := make([]string, 0, len(s.cfg.Timeframes))
	for _, tf := range s.cfg.Timeframes {
		if frame.IsActiveOn(tf, today) {
			active = append(active, tf)
		}
	}
	return active
}

// nextBoundary returns the next "candle close + 1 minute" instant across
// every configured timeframe's native candle interval, used to decide how
// long Idle waits before transitioning to Scanning.
func nextBoundary(tfs []string, now time.Time) time.Time {
	best := now.Add(24 * time.Hour)
	for _, tf := range tfs {
		interval := candleInterval(tf)
		if interval <= 0 {
			continue
		}
		elapsed := now.Sub(now.Truncate(interval))
		boundary := now.Add(interval - elapsed).Add(time.Minute)
		if boundary.Before(best) {
			best = boundary
		}
	}
	return best
}

func candleInterval(tf string) time.Duration {
	switch tf {
	case frame.TF4h:
		return 4 * time.Hour
	case frame.TF1d, frame.TF2d, frame.TF3d, frame.TF4d, frame.TF1w:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Run drives the scheduler loop until ctx is cancelled. A fatal error
// inside a single tick is logged and the loop continues from Idle; a
// fatal error escaping the tick loop itself triggers a 2-minute sleep
// before retrying (spec §7's FatalSchedulerError policy).
func (s *Scheduler) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.runOnce(ctx); err != nil {
			s.logger.Error("fatal scheduler error, sleeping before retry", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(fatalSchedulerSleep):
			}
		}
	}
}

// waitUntilBoundary blocks until the next candle-close boundary (or ctx
// cancellation) and returns the calendar-gated timeframe set evaluated
// against the clock *after* that wait. nextBoundary almost always lands on
// the following calendar day, so gating on the pre-sleep instant would run
// multi-day timeframes a day late (or early); ok is false if ctx was
// cancelled before the boundary was reached.
func (s *Scheduler) waitUntilBoundary(ctx context.Context) (active []string, ok bool) {
	wait := time.Until(nextBoundary(s.cfg.Timeframes, s.now()))
	if wait > 0 {
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(wait):
		}
	}
	return s.activeTimeframes(s.now()), true
}

func (s *Scheduler) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &schedulerPanicError{r}
		}
	}()

	s.state = StateIdle
	active, ok := s.waitUntilBoundary(ctx)
	if !ok {
		return nil
	}

	s.state = StateScanning
	for _, tf := range active {
		if _, err := s.orchestrator.RunPhase(ctx, s.cfg, tf); err != nil {
			s.logger.Error("phase failed, continuing with remaining phases",
				zap.String("timeframe", tf), zap.Error(err))
		}
	}

	s.state = StateCoolingDown
	cooldown := time.Until(nextBoundary(s.cfg.Timeframes, s.now()))
	if cooldown < minCooldown {
		cooldown = minCooldown
	}
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(cooldown):
	}
	return nil
}

type schedulerPanicError struct{ v interface{} }

func (e *schedulerPanicError) Error() string { return "orchestrator: scheduler tick panicked" }
