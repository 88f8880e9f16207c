// File: internal/model/loader.go
package model

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/xkilldash9x/authsim/internal/config"
	"go.uber.org/zap"
)

// DemoModelName names the classifier trained when no model file could be loaded.
const DemoModelName = "Demo_RandomForest"

// Metadata is optional side information shipped with a model. The file-based loader
// never produces it.
type Metadata map[string]string

// Loaded is the result of model discovery. Scaler and Meta are nil when absent.
type Loaded struct {
	Name       string
	Classifier Classifier
	Scaler     *StandardScaler
	Meta       Metadata
}

// Loader tries an ordered list of model files and falls back to a demo classifier.
type Loader struct {
	cfg       config.ModelConfig
	nFeatures int
	logger    *zap.Logger
}

// NewLoader creates a loader expecting models with nFeatures inputs.
func NewLoader(cfg config.ModelConfig, nFeatures int, logger *zap.Logger) *Loader {
	return &Loader{cfg: cfg, nFeatures: nFeatures, logger: logger.Named("model")}
}

// Load returns the first candidate that decodes, with its scaler when one is present.
// If none does, it trains the demo classifier. ErrNoModel is returned when the
// fallback is disabled or fails.
func (l *Loader) Load(ctx context.Context) (*Loaded, error) {
	for _, c := range l.cfg.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := l.resolve(c.Path)
		if _, err := os.Stat(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				l.logger.Warn("Cannot stat model file", zap.String("model", c.Name), zap.String("path", path), zap.Error(err))
			}
			continue
		}

		classifier, err := LoadClassifierFile(path)
		if err == nil && !l.accepts(classifier) {
			err = fmt.Errorf("%w: model does not take %d features", ErrDimension, l.nFeatures)
		}
		if err != nil {
			l.logger.Warn("Failed to load model", zap.String("model", c.Name), zap.String("path", path), zap.Error(err))
			continue
		}
		l.logger.Info("Loaded model", zap.String("model", c.Name), zap.String("path", path))

		return &Loaded{
			Name:       c.Name,
			Classifier: classifier,
			Scaler:     l.loadScaler(path),
		}, nil
	}

	if !l.cfg.Fallback.Enabled {
		return nil, fmt.Errorf("%w: no model file found and the demo fallback is disabled", ErrNoModel)
	}

	l.logger.Info("No trained models found, creating demo classifier")
	forest, err := TrainDemo(l.cfg.Fallback, l.nFeatures)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoModel, err)
	}
	l.logger.Info("Created demo model", zap.String("model", DemoModelName), zap.Int("trees", len(forest.Trees)))
	return &Loaded{Name: DemoModelName, Classifier: NewProbabilistic(forest)}, nil
}

// ScalerPath derives the scaler file that accompanies a model file.
// It returns false when the model path does not carry the model suffix.
func (l *Loader) ScalerPath(modelPath string) (string, bool) {
	return ScalerPathFor(modelPath, l.cfg.ModelSuffix, l.cfg.ScalerSuffix)
}

// ScalerPathFor replaces modelSuffix with scalerSuffix, so "rf_model.json" pairs
// with "rf_scaler.json".
func ScalerPathFor(modelPath, modelSuffix, scalerSuffix string) (string, bool) {
	if modelSuffix == "" || !strings.HasSuffix(modelPath, modelSuffix) {
		return "", false
	}
	return strings.TrimSuffix(modelPath, modelSuffix) + scalerSuffix, true
}

// loadScaler is best-effort: any failure means the model runs on raw features.
func (l *Loader) loadScaler(modelPath string) *StandardScaler {
	path, ok := l.ScalerPath(modelPath)
	if !ok {
		return nil
	}
	scaler, err := LoadScalerFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Debug("Ignoring unusable scaler", zap.String("path", path), zap.Error(err))
		}
		return nil
	}
	if scaler.NFeatures() != l.nFeatures {
		l.logger.Debug("Ignoring scaler with wrong width", zap.String("path", path), zap.Int("features", scaler.NFeatures()))
		return nil
	}
	l.logger.Info("Loaded scaler", zap.String("path", path))
	return scaler
}

func (l *Loader) resolve(p string) string {
	if filepath.IsAbs(p) || l.cfg.Dir == "" {
		return p
	}
	return filepath.Join(l.cfg.Dir, p)
}

func (l *Loader) accepts(c Classifier) bool {
	d, ok := c.Unwrap().(decodable)
	return ok && d.inputs() == l.nFeatures
}

// TrainDemo fits a small forest on uniform random features and coin-flip labels.
// The result carries no signal; it only keeps the monitor runnable.
func TrainDemo(opts config.FallbackConfig, nFeatures int) (*RandomForest, error) {
	if opts.Samples < 2 {
		return nil, fmt.Errorf("model: demo training needs at least 2 samples, got %d", opts.Samples)
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))

	d := Dataset{X: make([][]float64, opts.Samples), Y: make([]int, opts.Samples)}
	for i := range d.X {
		row := make([]float64, nFeatures)
		for j := range row {
			row[j] = rng.Float64()
		}
		d.X[i] = row
		d.Y[i] = rng.IntN(2)
	}
	return TrainRandomForest(d, ForestParams{Trees: opts.Trees, MaxDepth: opts.MaxDepth}, rng)
}
