// File: cmd/env.go
package cmd

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/authsim/api/schemas"
	"github.com/xkilldash9x/authsim/internal/config"
	"github.com/xkilldash9x/authsim/internal/features"
	"github.com/xkilldash9x/authsim/internal/model"
	"github.com/xkilldash9x/authsim/internal/monitor"
	"github.com/xkilldash9x/authsim/internal/store"
)

// storeProvider creates the detection sinks and readers for a command. Tests swap
// in an implementation that needs no database.
type storeProvider interface {
	// Sink returns the sink detections of runID are appended to, and a cleanup
	// function releasing its resources.
	Sink(ctx context.Context, cfg *config.Config, runID string, logger *zap.Logger) (schemas.DetectionSink, func(), error)
	// Reader returns read access to persisted detections.
	Reader(ctx context.Context, cfg *config.Config, logger *zap.Logger) (schemas.DetectionReader, func(), error)
}

// defaultStoreProvider always writes the CSV log and adds PostgreSQL when it is enabled.
type defaultStoreProvider struct{}

// NewStoreProvider is a factory function that creates a new defaultStoreProvider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

func (p *defaultStoreProvider) Sink(ctx context.Context, cfg *config.Config, runID string, logger *zap.Logger) (schemas.DetectionSink, func(), error) {
	csvLog, err := store.NewCSVLog(cfg.Monitor.LogFile, logger)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Store.Postgres.Enabled {
		return csvLog, func() {}, nil
	}

	pg, cleanup, err := p.openPostgres(ctx, cfg, runID, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	return store.NewTee(csvLog, logger, pg), cleanup, nil
}

func (p *defaultStoreProvider) Reader(ctx context.Context, cfg *config.Config, logger *zap.Logger) (schemas.DetectionReader, func(), error) {
	if !cfg.Store.Postgres.Enabled {
		return nil, nil, fmt.Errorf("run history requires the postgres store (store.postgres.enabled)")
	}
	return p.openPostgres(ctx, cfg, "", logger)
}

func (p *defaultStoreProvider) openPostgres(ctx context.Context, cfg *config.Config, runID string, logger *zap.Logger) (*store.Postgres, func(), error) {
	pool, err := store.Connect(ctx, cfg.Store.Postgres.URL)
	if err != nil {
		return nil, nil, err
	}
	pg, err := store.NewPostgres(ctx, pool, runID, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pg, pool.Close, nil
}

// newSimulator builds the feature simulator from config. A zero seed draws one
// from the clock.
func newSimulator(cfg config.SimulatorConfig) (*features.Simulator, error) {
	var profile features.Profile
	for i, b := range cfg.Baselines() {
		profile[i] = features.Baseline{Mean: b.Mean, StdDev: b.StdDev}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return features.NewSimulator(profile, rand.NewPCG(seed, seed>>32|1))
}

// newMonitor loads a model and wires it to the simulator and sink.
func newMonitor(ctx context.Context, cfg *config.Config, sink schemas.DetectionSink, logger *zap.Logger) (*monitor.Monitor, error) {
	loaded, err := model.NewLoader(cfg.Model, features.Count, logger).Load(ctx)
	if err != nil {
		return nil, err
	}
	sim, err := newSimulator(cfg.Simulator)
	if err != nil {
		return nil, fmt.Errorf("invalid feature simulator settings: %w", err)
	}
	return monitor.New(cfg.Monitor.UserID, loaded, sim, sink, logger)
}
