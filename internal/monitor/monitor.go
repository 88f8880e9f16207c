// File: internal/monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/xkilldash9x/authsim/api/schemas"
	"github.com/xkilldash9x/authsim/internal/features"
	"github.com/xkilldash9x/authsim/internal/model"
	"github.com/xkilldash9x/authsim/internal/observability"
	"go.uber.org/zap"
)

// Per-tick failure kinds. Errors returned by RunDetectionOnce wrap exactly one of
// these together with the underlying cause.
var (
	ErrFeatures  = errors.New("feature generation failed")
	ErrScaling   = errors.New("feature scaling failed")
	ErrInference = errors.New("inference failed")
	ErrSink      = errors.New("detection log write failed")
)

// FeatureSource produces one behavioural observation per call.
type FeatureSource interface {
	Generate() (features.Vector, error)
}

// Scaler normalises a feature slice before inference.
type Scaler interface {
	Transform(x []float64) ([]float64, error)
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithClock replaces time.Now as the source of record timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithScaler overrides the scaler from the loaded model.
func WithScaler(s Scaler) Option {
	return func(m *Monitor) { m.scaler = s }
}

// Monitor scores simulated behaviour with a loaded classifier and records every
// verdict. The running flag only gates callers such as Loop; RunDetectionOnce works
// in either state.
type Monitor struct {
	userID     string
	modelName  string
	classifier model.Classifier
	scaler     Scaler
	source     FeatureSource
	sink       schemas.DetectionSink
	now        func() time.Time
	running    atomic.Bool
	log        *zap.Logger
}

// New builds a stopped monitor for userID around a loaded model.
func New(userID string, loaded *model.Loaded, source FeatureSource, sink schemas.DetectionSink, logger *zap.Logger, opts ...Option) (*Monitor, error) {
	switch {
	case loaded == nil || loaded.Classifier.IsZero():
		return nil, fmt.Errorf("monitor: a loaded classifier is required")
	case source == nil:
		return nil, fmt.Errorf("monitor: a feature source is required")
	case sink == nil:
		return nil, fmt.Errorf("monitor: a detection sink is required")
	}

	m := &Monitor{
		userID:     userID,
		modelName:  loaded.Name,
		classifier: loaded.Classifier,
		source:     source,
		sink:       sink,
		now:        time.Now,
		log:        logger.Named("monitor").With(zap.String("user_id", userID), zap.String("model", loaded.Name)),
	}
	// A nil *StandardScaler must not become a non-nil interface.
	if loaded.Scaler != nil {
		m.scaler = loaded.Scaler
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// ModelName is the name of the classifier in use.
func (m *Monitor) ModelName() string {
	return m.modelName
}

// Start marks the monitor as running. It schedules nothing.
func (m *Monitor) Start() {
	m.running.Store(true)
	m.log.Info("Started behavioural monitoring")
}

// Stop marks the monitor as stopped. An in-flight detection is not interrupted.
func (m *Monitor) Stop() {
	m.running.Store(false)
	m.log.Info("Stopped behavioural monitoring")
}

// IsRunning reports the current state of the flag.
func (m *Monitor) IsRunning() bool {
	return m.running.Load()
}

// RunDetectionOnce generates one observation, scores it, appends the verdict to the
// sink and returns it. On failure no record is returned and the error wraps one of
// ErrFeatures, ErrScaling, ErrInference or ErrSink.
func (m *Monitor) RunDetectionOnce(ctx context.Context) (schemas.DetectionRecord, error) {
	vec, err := m.source.Generate()
	if err != nil {
		return m.fail(ErrFeatures, err)
	}

	x := vec.Slice()
	if m.scaler != nil {
		if x, err = m.scaler.Transform(x); err != nil {
			return m.fail(ErrScaling, err)
		}
	}

	score, err := m.classifier.Score(x)
	if err != nil {
		return m.fail(ErrInference, err)
	}

	improper, prediction := schemas.Verdict(score)
	rec := schemas.DetectionRecord{
		Timestamp:  m.now().UTC(),
		UserID:     m.userID,
		Model:      m.modelName,
		Score:      score,
		IsImproper: improper,
		Prediction: prediction,
		Features:   vec,
	}

	if err := m.sink.Append(ctx, rec); err != nil {
		return m.fail(ErrSink, err)
	}

	m.log.Debug("Detection recorded", observability.DetectionFields(rec)...)
	return rec, nil
}

func (m *Monitor) fail(kind, cause error) (schemas.DetectionRecord, error) {
	err := fmt.Errorf("%w: %w", kind, cause)
	m.log.Error("Detection failed", zap.Error(err))
	return schemas.DetectionRecord{}, err
}
