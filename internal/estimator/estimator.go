// Package estimator predicts how many hours a task will take.
package estimator

import (
	"errors"
	"fmt"
	"math"

	"taskflow-ai/internal/features"
)

// ErrInvalidFeatureVector is returned when a model receives a vector of the
// wrong shape or with non-finite values. It signals a caller bug.
var ErrInvalidFeatureVector = errors.New("invalid feature vector")

// MinEstimateHours is the lowest estimate any model reports
const MinEstimateHours = 0.25

// Model predicts hours from a feature vector. Implementations must reject
// vectors whose length differs from features.NumFeatures.
type Model interface {
	Predict(features []float64) (float64, error)
	Confidence(features []float64) (float64, error)
}

// LinearModel is a fixed linear combination of the features plus an
// intercept. Its confidence is a heuristic, not a statistical uncertainty.
type LinearModel struct {
	Coefficients []float64
	Intercept    float64
}

// DefaultCoefficients weight the features in features.Names order
var DefaultCoefficients = []float64{0.01, 0.005, -0.1, -0.05, 0.5, 0.0, 0.0, 0.1, 0.75, 0.2, 0.3}

// DefaultIntercept is the baseline estimate in hours
const DefaultIntercept = 1.5

// Confidence heuristic constants
const (
	baseConfidence           = 0.7
	deadlineConfidenceBonus  = 0.1
	shortDescriptionBonus    = 0.05
	shortDescriptionMaxChars = 50
)

// NewLinearModel returns the model with the default coefficients
func NewLinearModel() *LinearModel {
	coef := make([]float64, len(DefaultCoefficients))
	copy(coef, DefaultCoefficients)
	return &LinearModel{Coefficients: coef, Intercept: DefaultIntercept}
}

// Predict returns the estimate in hours, never below MinEstimateHours
func (m *LinearModel) Predict(x []float64) (float64, error) {
	if err := validate(x); err != nil {
		return 0, err
	}
	if len(m.Coefficients) != features.NumFeatures {
		return 0, fmt.Errorf("%w: model has %d coefficients, want %d", ErrInvalidFeatureVector, len(m.Coefficients), features.NumFeatures)
	}

	y := m.Intercept
	for i, c := range m.Coefficients {
		y += c * x[i]
	}
	return math.Max(MinEstimateHours, y), nil
}

// Confidence starts at 0.7, adds 0.1 when a deadline is set and 0.05 for
// short descriptions, clamped to [0,1].
func (m *LinearModel) Confidence(x []float64) (float64, error) {
	if err := validate(x); err != nil {
		return 0, err
	}

	c := baseConfidence
	if x[features.HasDeadline] != 0 {
		c += deadlineConfidenceBonus
	}
	if x[features.DescriptionLength] < shortDescriptionMaxChars {
		c += shortDescriptionBonus
	}
	return clamp01(c), nil
}

func validate(x []float64) error {
	if len(x) != features.NumFeatures {
		return fmt.Errorf("%w: got %d values, want %d", ErrInvalidFeatureVector, len(x), features.NumFeatures)
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidFeatureVector, features.Names()[i])
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
