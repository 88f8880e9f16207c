// File: internal/monitor/loop.go
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xkilldash9x/authsim/api/schemas"
	"go.uber.org/zap"
)

// Summary counts what a Loop did.
type Summary struct {
	RunID      string
	Ticks      int
	Detections int
	Failures   int
	Improper   int
	Elapsed    time.Duration
}

// Loop calls RunDetectionOnce on a fixed interval for as long as the monitor is
// running. The first tick fires immediately.
type Loop struct {
	monitor  *Monitor
	interval time.Duration
	maxTicks int
	runID    string
	// OnDetection, when set, is called after every successful tick.
	OnDetection func(tick int, rec schemas.DetectionRecord)
	log         *zap.Logger
}

// NewLoop creates a loop tagged with runID, or a fresh one when runID is empty.
// maxTicks of zero runs until the monitor is stopped or the context is cancelled.
func NewLoop(m *Monitor, interval time.Duration, maxTicks int, runID string, logger *zap.Logger) (*Loop, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("monitor: loop interval must be positive, got %s", interval)
	}
	if maxTicks < 0 {
		return nil, fmt.Errorf("monitor: max ticks cannot be negative, got %d", maxTicks)
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Loop{
		monitor:  m,
		interval: interval,
		maxTicks: maxTicks,
		runID:    runID,
		log:      logger.Named("loop").With(zap.String("run_id", runID)),
	}, nil
}

// RunID identifies this loop's detections in persistent sinks.
func (l *Loop) RunID() string {
	return l.runID
}

// Run blocks until the monitor is stopped, maxTicks ticks have run or ctx is done.
// Failed ticks are counted and never end the loop; the monitor has already logged them.
func (l *Loop) Run(ctx context.Context) Summary {
	started := time.Now()
	s := Summary{RunID: l.runID}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.log.Info("Detection loop started", zap.Duration("interval", l.interval), zap.Int("max_ticks", l.maxTicks))
	for l.monitor.IsRunning() && ctx.Err() == nil {
		s.Ticks++
		rec, err := l.monitor.RunDetectionOnce(ctx)
		if err != nil {
			s.Failures++
		} else {
			s.Detections++
			if rec.IsImproper {
				s.Improper++
			}
			if l.OnDetection != nil {
				l.OnDetection(s.Ticks, rec)
			}
		}

		if l.maxTicks > 0 && s.Ticks >= l.maxTicks {
			break
		}
		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}

	s.Elapsed = time.Since(started)
	l.log.Info("Detection loop finished",
		zap.Int("ticks", s.Ticks),
		zap.Int("detections", s.Detections),
		zap.Int("failures", s.Failures),
		zap.Int("improper", s.Improper),
		zap.Duration("elapsed", s.Elapsed),
	)
	return s
}
