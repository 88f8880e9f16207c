// File: internal/trainer/trainer.go
package trainer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"

	"github.com/xkilldash9x/authsim/internal/config"
	"github.com/xkilldash9x/authsim/internal/features"
	"github.com/xkilldash9x/authsim/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Labels used in synthesised data.
const (
	LabelHuman = 0
	LabelBot   = 1
)

// Options configures a training run. Zero model params select each trainer's defaults.
type Options struct {
	// Samples is the number of rows drawn per class.
	Samples   int
	Seed      uint64
	Forest    model.ForestParams
	Boost     model.BoostParams
	Isolation model.IsolationParams
}

// DefaultOptions mirrors the shape of the shipped models.
func DefaultOptions() Options {
	return Options{
		Samples:   500,
		Seed:      42,
		Forest:    model.ForestParams{Trees: 100, MaxDepth: 10},
		Boost:     model.BoostParams{Rounds: 50, MaxDepth: 3},
		Isolation: model.IsolationParams{Trees: 100, Contamination: 0.05},
	}
}

// Bundle holds a scaler and the three models fitted on its output.
type Bundle struct {
	Scaler    *model.StandardScaler
	Forest    *model.RandomForest
	Boost     *model.GradientBoosting
	Isolation *model.IsolationForest
}

// byName maps loader candidate names to the models of the bundle.
func (b *Bundle) byName() map[string]any {
	return map[string]any{
		"RandomForest":    b.Forest,
		"XGBoost":         b.Boost,
		"IsolationForest": b.Isolation,
	}
}

// Synthesize draws n human rows labelled LabelHuman followed by n bot rows labelled LabelBot.
func Synthesize(n int, seed uint64) (model.Dataset, error) {
	if n <= 0 {
		return model.Dataset{}, fmt.Errorf("trainer: samples per class must be positive, got %d", n)
	}

	var d model.Dataset
	profiles := []struct {
		profile features.Profile
		label   int
	}{
		{features.HumanProfile(), LabelHuman},
		{features.BotProfile(), LabelBot},
	}
	for i, p := range profiles {
		sim, err := features.NewSimulator(p.profile, rand.NewPCG(seed, uint64(i)))
		if err != nil {
			return model.Dataset{}, err
		}
		rows, err := sim.Batch(n)
		if err != nil {
			return model.Dataset{}, err
		}
		d.X = append(d.X, rows...)
		for range rows {
			d.Y = append(d.Y, p.label)
		}
	}
	return d, nil
}

// Train synthesises data, fits the scaler and trains the models concurrently.
// The isolation forest only sees human rows.
func Train(ctx context.Context, opts Options, logger *zap.Logger) (*Bundle, error) {
	log := logger.Named("trainer")

	raw, err := Synthesize(opts.Samples, opts.Seed)
	if err != nil {
		return nil, err
	}
	scaler, err := model.FitStandardScaler(raw.X)
	if err != nil {
		return nil, fmt.Errorf("trainer: failed to fit scaler: %w", err)
	}
	scaled, err := scaler.TransformAll(raw.X)
	if err != nil {
		return nil, err
	}
	d := model.Dataset{X: scaled, Y: raw.Y}
	humans := model.Dataset{X: scaled[:opts.Samples], Y: raw.Y[:opts.Samples]}

	b := &Bundle{Scaler: scaler}
	g, gctx := errgroup.WithContext(ctx)
	rng := func(stream uint64) *rand.Rand {
		return rand.New(rand.NewPCG(opts.Seed, stream))
	}

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		f, err := model.TrainRandomForest(d, opts.Forest, rng(10))
		if err != nil {
			return fmt.Errorf("trainer: random forest: %w", err)
		}
		b.Forest = f
		log.Info("Trained random forest", zap.Int("trees", len(f.Trees)))
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		m, err := model.TrainGradientBoosting(d, opts.Boost, rng(11))
		if err != nil {
			return fmt.Errorf("trainer: gradient boosting: %w", err)
		}
		b.Boost = m
		log.Info("Trained gradient boosting", zap.Int("rounds", len(m.Trees)))
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		f, err := model.TrainIsolationForest(humans, opts.Isolation, rng(12))
		if err != nil {
			return fmt.Errorf("trainer: isolation forest: %w", err)
		}
		b.Isolation = f
		log.Info("Trained isolation forest", zap.Int("trees", len(f.Trees)), zap.Float64("threshold", f.Threshold))
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return b, nil
}

// Save writes every model named in cfg.Candidates, plus its scaler, under dir.
// It returns the paths written.
func Save(b *Bundle, cfg config.ModelConfig, dir string, logger *zap.Logger) ([]string, error) {
	log := logger.Named("trainer")
	models := b.byName()

	var written []string
	for _, c := range cfg.Candidates {
		m, ok := models[c.Name]
		if !ok {
			log.Warn("No trainer for model candidate, skipping", zap.String("model", c.Name))
			continue
		}

		path := c.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if err := model.SaveFile(path, m); err != nil {
			return written, err
		}
		written = append(written, path)

		scalerPath, ok := model.ScalerPathFor(path, cfg.ModelSuffix, cfg.ScalerSuffix)
		if !ok {
			log.Warn("Model path has no scaler counterpart", zap.String("path", path))
			continue
		}
		if err := model.SaveFile(scalerPath, b.Scaler); err != nil {
			return written, err
		}
		written = append(written, scalerPath)
		log.Info("Saved model", zap.String("model", c.Name), zap.String("path", path), zap.String("scaler", scalerPath))
	}
	return written, nil
}
