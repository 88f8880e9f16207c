// File: internal/botsim/botsim.go
package botsim

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Sleeper pauses for d or until ctx is done, whichever comes first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper is the production Sleeper.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Simulator pretends to be an automated session for a fixed duration. It shares no
// state with the detector; it only gives operators something to watch.
type Simulator struct {
	duration time.Duration
	step     time.Duration
	sleeper  Sleeper
	running  atomic.Bool
	stopped  atomic.Bool
	log      *zap.Logger
}

// New creates a simulator that runs for duration in increments of step.
// A nil sleeper selects TimerSleeper.
func New(duration, step time.Duration, sleeper Sleeper, logger *zap.Logger) (*Simulator, error) {
	if duration < 0 {
		return nil, fmt.Errorf("botsim: duration cannot be negative, got %s", duration)
	}
	if step <= 0 {
		return nil, fmt.Errorf("botsim: step must be positive, got %s", step)
	}
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}
	return &Simulator{
		duration: duration,
		step:     step,
		sleeper:  sleeper,
		log:      logger.Named("botsim"),
	}, nil
}

// Result describes how a run ended.
type Result struct {
	Elapsed time.Duration
	Steps   int
	// Stopped is true when Stop ended the run before the duration elapsed.
	Stopped bool
}

// Run blocks until the duration has elapsed, Stop is called or ctx is done.
// Elapsed time is the sum of completed steps, so it does not depend on the wall clock.
// A Stop issued before Run starts still ends the run at its first step boundary.
func (s *Simulator) Run(ctx context.Context) (Result, error) {
	s.running.Store(true)
	defer s.running.Store(false)

	s.log.Info("Bot simulation started", zap.Duration("duration", s.duration), zap.Duration("step", s.step))

	var res Result
	for res.Elapsed < s.duration {
		if s.stopped.Load() {
			res.Stopped = true
			break
		}
		step := min(s.step, s.duration-res.Elapsed)
		if err := s.sleeper.Sleep(ctx, step); err != nil {
			s.log.Info("Bot simulation cancelled", zap.Duration("elapsed", res.Elapsed))
			return res, err
		}
		res.Elapsed += step
		res.Steps++
	}

	s.log.Info("Bot simulation completed",
		zap.Duration("elapsed", res.Elapsed),
		zap.Int("steps", res.Steps),
		zap.Bool("stopped_early", res.Stopped),
	)
	return res, nil
}

// Stop ends a run at the next step boundary. It is sticky: a stopped simulator
// never runs again.
func (s *Simulator) Stop() {
	s.stopped.Store(true)
}

// IsRunning reports whether Run is in progress.
func (s *Simulator) IsRunning() bool {
	return s.running.Load()
}
