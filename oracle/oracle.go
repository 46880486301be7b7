// Package oracle abstracts the deadlock-risk classifier: production code
// loads a trained model's weights, tests inject a stub. The interface
// represents "unavailable" as a value rather than an error or an
// exception swallowed to zero.
package oracle

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Features is the feature row fed to the classifier, matching the
// original's pandas DataFrame column set exactly.
type Features struct {
	FromRow, FromCol int
	ToRow, ToCol     int
	Wait             int
}

// Prediction is the classifier's output distribution over {normal,
// deadlock}.
type Prediction struct {
	PNormal   float64
	PDeadlock float64
}

// Oracle predicts deadlock risk for a candidate move. The bool return is
// false when no prediction is available (model not loaded, malformed
// input) — callers must treat that as zero contribution, never panic or
// propagate an error.
type Oracle interface {
	PredictDeadlock(ctx context.Context, f Features) (Prediction, bool)
}

// NullOracle never has a prediction available. It is the default when no
// trained model is configured.
type NullOracle struct{}

func (NullOracle) PredictDeadlock(context.Context, Features) (Prediction, bool) {
	return Prediction{}, false
}

// Weights holds a trained logistic-regression model: one coefficient per
// feature plus an intercept, in the order {FromRow, FromCol, ToRow,
// ToCol, Wait}.
type Weights struct {
	Coef      [5]float64 `json:"coef" yaml:"coef"`
	Intercept float64    `json:"intercept" yaml:"intercept"`
}

// LogisticOracle evaluates a simple sigmoid over a trained weight set.
// It is the Go-side inference counterpart to the offline training script
// that produces Weights; training itself is out of scope.
type LogisticOracle struct {
	w Weights
}

// LoadLogisticOracle reads a JSON or YAML sidecar file containing
// Weights (format chosen by the file extension; ".yaml"/".yml" decode
// via yaml.v3, everything else via encoding/json). The offline training
// pipeline that produces this file is out of scope here.
func LoadLogisticOracle(path string) (*LogisticOracle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var w Weights
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &w); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
	}
	return &LogisticOracle{w: w}, nil
}

// NewLogisticOracle builds an oracle directly from weights, useful for
// tests.
func NewLogisticOracle(w Weights) *LogisticOracle {
	return &LogisticOracle{w: w}
}

func (o *LogisticOracle) PredictDeadlock(_ context.Context, f Features) (Prediction, bool) {
	if o == nil {
		return Prediction{}, false
	}
	x := [5]float64{float64(f.FromRow), float64(f.FromCol), float64(f.ToRow), float64(f.ToCol), float64(f.Wait)}
	z := o.w.Intercept
	for i, xi := range x {
		z += o.w.Coef[i] * xi
	}
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return Prediction{}, false
	}
	pDeadlock := 1.0 / (1.0 + math.Exp(-z))
	return Prediction{PNormal: 1 - pDeadlock, PDeadlock: pDeadlock}, true
}
