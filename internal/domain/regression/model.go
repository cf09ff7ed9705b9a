// Package regression defines the revenue models and how their serialized
// artifacts are loaded and kept fresh.
package regression

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Feature names shared by the shipped artifacts.
const (
	FeatureSizeKg     = "size_kg"
	FeatureCoffeeType = "coffee_type"
	FeatureRoastType  = "roast_type"
)

// Features is one model input row.
type Features struct {
	Numeric     map[string]float64
	Categorical map[string]string
}

// Model predicts revenue for one input row.
type Model interface {
	// Predict returns the model output, honoring ctx for cancellation.
	Predict(ctx context.Context, f Features) (float64, error)
	// Inputs lists the declared feature names in sorted order.
	Inputs() []string
	// Name identifies the artifact.
	Name() string
}

// Artifact is the on-disk form of a linear model with one-hot categoricals.
type Artifact struct {
	Name        string                        `json:"name"`
	Intercept   float64                       `json:"intercept"`
	Numeric     map[string]float64            `json:"numeric"`
	Categorical map[string]map[string]float64 `json:"categorical"`
}

// Validate checks that every coefficient is finite and that no feature is
// declared twice.
func (a Artifact) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidArtifact)
	}
	if !finite(a.Intercept) {
		return fmt.Errorf("%w: %s: intercept is not finite", ErrInvalidArtifact, a.Name)
	}
	if len(a.Numeric)+len(a.Categorical) == 0 {
		return fmt.Errorf("%w: %s: no features declared", ErrInvalidArtifact, a.Name)
	}
	for name, w := range a.Numeric {
		if !finite(w) {
			return fmt.Errorf("%w: %s: coefficient %s is not finite", ErrInvalidArtifact, a.Name, name)
		}
	}
	for name, levels := range a.Categorical {
		if _, dup := a.Numeric[name]; dup {
			return fmt.Errorf("%w: %s: feature %s declared twice", ErrInvalidArtifact, a.Name, name)
		}
		for level, w := range levels {
			if !finite(w) {
				return fmt.Errorf("%w: %s: coefficient %s=%s is not finite", ErrInvalidArtifact, a.Name, name, level)
			}
		}
	}
	return nil
}

// Linear evaluates an Artifact.
type Linear struct {
	artifact Artifact
	inputs   []string
}

// NewLinear validates a and builds its model.
func NewLinear(a Artifact) (*Linear, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	inputs := make([]string, 0, len(a.Numeric)+len(a.Categorical))
	for name := range a.Numeric {
		inputs = append(inputs, name)
	}
	for name := range a.Categorical {
		inputs = append(inputs, name)
	}
	sort.Strings(inputs)
	return &Linear{artifact: a, inputs: inputs}, nil
}

// Name implements Model.
func (m *Linear) Name() string { return m.artifact.Name }

// Inputs implements Model.
func (m *Linear) Inputs() []string {
	out := make([]string, len(m.inputs))
	copy(out, m.inputs)
	return out
}

// Predict implements Model. Unknown categorical levels contribute nothing.
func (m *Linear) Predict(ctx context.Context, f Features) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	y := m.artifact.Intercept
	for name, w := range m.artifact.Numeric {
		v, ok := f.Numeric[name]
		if !ok {
			return 0, fmt.Errorf("%w: %s needs %s", ErrMissingFeature, m.artifact.Name, name)
		}
		y += w * v
	}
	for name, levels := range m.artifact.Categorical {
		level, ok := f.Categorical[name]
		if !ok {
			return 0, fmt.Errorf("%w: %s needs %s", ErrMissingFeature, m.artifact.Name, name)
		}
		y += levels[level]
	}
	return y, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
