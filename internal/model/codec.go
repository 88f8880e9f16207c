// File: internal/model/codec.go
package model

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind tags the payload of a model file.
type Kind string

const (
	KindRandomForest     Kind = "random_forest"
	KindGradientBoosting Kind = "gradient_boosting"
	KindIsolationForest  Kind = "isolation_forest"
	KindStandardScaler   Kind = "standard_scaler"
)

// envelope is the on-disk wrapper shared by every model and scaler file.
type envelope struct {
	Kind      Kind                `json:"kind"`
	NFeatures int                 `json:"n_features"`
	Model     jsoniter.RawMessage `json:"model"`
}

// Encode writes a model or scaler as a tagged envelope.
func Encode(w io.Writer, v any) error {
	var (
		kind Kind
		n    int
	)
	switch m := v.(type) {
	case *RandomForest:
		kind, n = KindRandomForest, m.NFeatures
	case *GradientBoosting:
		kind, n = KindGradientBoosting, m.NFeatures
	case *IsolationForest:
		kind, n = KindIsolationForest, m.NFeatures
	case *StandardScaler:
		kind, n = KindStandardScaler, m.NFeatures()
	default:
		return fmt.Errorf("model: cannot encode %T", v)
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("model: failed to marshal %s: %w", kind, err)
	}
	return json.NewEncoder(w).Encode(envelope{Kind: kind, NFeatures: n, Model: payload})
}

func readEnvelope(r io.Reader) (envelope, error) {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return env, fmt.Errorf("model: malformed model file: %w", err)
	}
	if len(env.Model) == 0 {
		return env, fmt.Errorf("model: %q file has no payload", env.Kind)
	}
	return env, nil
}

// decodable is implemented by every classifier payload.
type decodable interface {
	validate() error
	inputs() int
}

func (f *RandomForest) inputs() int     { return f.NFeatures }
func (g *GradientBoosting) inputs() int { return g.NFeatures }
func (f *IsolationForest) inputs() int  { return f.NFeatures }

// DecodeClassifier reads a model envelope and wraps it with the capability its kind implies.
func DecodeClassifier(r io.Reader) (Classifier, error) {
	env, err := readEnvelope(r)
	if err != nil {
		return Classifier{}, err
	}

	var (
		c       Classifier
		payload decodable
	)
	switch env.Kind {
	case KindRandomForest:
		m := &RandomForest{}
		c, payload = NewProbabilistic(m), m
	case KindGradientBoosting:
		m := &GradientBoosting{}
		c, payload = NewProbabilistic(m), m
	case KindIsolationForest:
		m := &IsolationForest{}
		c, payload = NewLabelOnly(m), m
	default:
		return Classifier{}, fmt.Errorf("model: unsupported classifier kind %q", env.Kind)
	}

	if err := json.Unmarshal(env.Model, payload); err != nil {
		return Classifier{}, fmt.Errorf("model: failed to decode %s: %w", env.Kind, err)
	}
	if err := payload.validate(); err != nil {
		return Classifier{}, fmt.Errorf("model: invalid %s: %w", env.Kind, err)
	}
	if n := payload.inputs(); env.NFeatures != n {
		return Classifier{}, fmt.Errorf("%w: envelope declares %d features, %s has %d", ErrDimension, env.NFeatures, env.Kind, n)
	}
	return c, nil
}

// DecodeScaler reads a scaler envelope.
func DecodeScaler(r io.Reader) (*StandardScaler, error) {
	env, err := readEnvelope(r)
	if err != nil {
		return nil, err
	}
	if env.Kind != KindStandardScaler {
		return nil, fmt.Errorf("model: expected %s, found %q", KindStandardScaler, env.Kind)
	}
	s := &StandardScaler{}
	if err := json.Unmarshal(env.Model, s); err != nil {
		return nil, fmt.Errorf("model: failed to decode scaler: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("model: invalid scaler: %w", err)
	}
	return s, nil
}

// SaveFile writes v to path, creating parent directories as needed.
func SaveFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("model: failed to create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("model: failed to create %s: %w", path, err)
	}
	if err := Encode(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadClassifierFile decodes the classifier stored at path.
func LoadClassifierFile(path string) (Classifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return Classifier{}, err
	}
	defer f.Close()
	return DecodeClassifier(f)
}

// LoadScalerFile decodes the scaler stored at path.
func LoadScalerFile(path string) (*StandardScaler, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeScaler(f)
}
