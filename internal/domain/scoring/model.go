package scoring

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"

	json "github.com/goccy/go-json"

	"github.com/okian/flok/internal/domain/pulse"
	"github.com/okian/flok/pkg/logger"
	"github.com/okian/flok/pkg/metrics"
)

// Sentinel errors for model artifacts.
var (
	ErrModelMissing   = errors.New("model artifact missing")
	ErrModelMalformed = errors.New("model artifact malformed")
)

// NeutralVersion labels the built-in model with zero weights.
const NeutralVersion = "neutral"

// Model is either the neutral model or a trained logistic model. Both are
// evaluated by Predict.
type Model struct {
	trained bool
	version string
	weights map[string]float64
	bias    float64
}

// Neutral returns the model that scores every pair at 0.5.
func Neutral() Model {
	return Model{version: NeutralVersion}
}

// Trained returns a logistic model keyed by feature name.
func Trained(version string, weights map[string]float64, bias float64) Model {
	w := make(map[string]float64, len(weights))
	for k, v := range weights {
		w[k] = v
	}
	return Model{trained: true, version: version, weights: w, bias: bias}
}

// IsTrained reports whether m carries learned weights.
func (m Model) IsTrained() bool { return m.trained }

// Version returns the artifact version or NeutralVersion.
func (m Model) Version() string { return m.version }

// Predict returns sigmoid(bias + w·x).
func (m Model) Predict(f Features) float64 {
	if !m.trained {
		return 0.5
	}
	z := m.bias
	for _, name := range FeatureOrder {
		x, _ := f.Value(name)
		z += m.weights[name] * x
	}
	return pulse.Sigmoid(z)
}

// artifact is the on-disk model format.
type artifact struct {
	Version      string    `json:"version"`
	FeatureOrder []string  `json:"feature_order"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
}

// ParseModel decodes a JSON artifact. A missing feature order means the
// canonical one and missing weights mean zeros.
func ParseModel(data []byte) (Model, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return Neutral(), fmt.Errorf("%w: %v", ErrModelMalformed, err)
	}
	order := a.FeatureOrder
	if len(order) == 0 {
		order = FeatureOrder
	}
	weights := a.Weights
	if len(weights) == 0 {
		weights = make([]float64, len(order))
	}
	if len(weights) != len(order) {
		return Neutral(), fmt.Errorf("%w: %d weights for %d features", ErrModelMalformed, len(weights), len(order))
	}
	if math.IsNaN(a.Bias) || math.IsInf(a.Bias, 0) {
		return Neutral(), fmt.Errorf("%w: bias is not finite", ErrModelMalformed)
	}
	byName := make(map[string]float64, len(order))
	for i, name := range order {
		if _, ok := (Features{}).Value(name); !ok {
			return Neutral(), fmt.Errorf("%w: unknown feature %q", ErrModelMalformed, name)
		}
		if _, dup := byName[name]; dup {
			return Neutral(), fmt.Errorf("%w: duplicate feature %q", ErrModelMalformed, name)
		}
		if math.IsNaN(weights[i]) || math.IsInf(weights[i], 0) {
			return Neutral(), fmt.Errorf("%w: weight for %q is not finite", ErrModelMalformed, name)
		}
		byName[name] = weights[i]
	}
	version := a.Version
	if version == "" {
		version = "unversioned"
	}
	return Trained(version, byName, a.Bias), nil
}

// LoadModel reads and parses the artifact at path.
func LoadModel(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Neutral(), fmt.Errorf("%w: %s", ErrModelMissing, path)
		}
		return Neutral(), fmt.Errorf("%w: %v", ErrModelMalformed, err)
	}
	return ParseModel(data)
}

// ResolveModel loads the artifact at path and falls back to Neutral when it
// is missing or malformed. An empty path selects Neutral without a warning.
func ResolveModel(ctx context.Context, path string, log logger.Logger) Model {
	if path == "" {
		return Neutral()
	}
	m, err := LoadModel(path)
	if err == nil {
		log.Info(ctx, "fit model loaded", logger.String("path", path), logger.String("version", m.Version()))
		return m
	}
	reason := "malformed"
	if errors.Is(err, ErrModelMissing) {
		reason = "missing"
	}
	metrics.RecordModelFallback(reason)
	log.Warn(ctx, "fit model unavailable, using neutral weights",
		logger.String("path", path), logger.String("reason", reason), logger.Error(err))
	return Neutral()
}
