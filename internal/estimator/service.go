package estimator

import (
	"taskflow-ai/internal/features"
)

// TaskTimeEstimation is the estimation payload returned to callers
type TaskTimeEstimation struct {
	AIEstimatedTimeHours float64            `json:"ai_estimated_time_hours"`
	ConfidenceScore      *float64           `json:"confidence_score"`
	Features             map[string]float64 `json:"features,omitempty"`
}

// Estimator ties the feature extractor to a model. Both are constructed once
// and shared; Estimate is safe for concurrent use when the model is.
type Estimator struct {
	extractor *features.Extractor
	model     Model
}

// New creates an estimator. A nil extractor uses the wall clock and a nil
// model uses the default linear model.
func New(extractor *features.Extractor, model Model) *Estimator {
	if extractor == nil {
		extractor = features.NewExtractor()
	}
	if model == nil {
		model = NewLinearModel()
	}
	return &Estimator{extractor: extractor, model: model}
}

// Estimate predicts hours and confidence for task, rounded to two decimals.
// An out-of-range priority is a validation error.
func (e *Estimator) Estimate(task features.TaskInput) (*TaskTimeEstimation, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}
	return e.estimate(e.extractor.Extract(task))
}

// Explain is Estimate plus the named feature map
func (e *Estimator) Explain(task features.TaskInput) (*TaskTimeEstimation, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}
	vec := e.extractor.Extract(task)
	est, err := e.estimate(vec)
	if err != nil {
		return nil, err
	}
	est.Features = vec.Map()
	return est, nil
}

func (e *Estimator) estimate(vec features.Vector) (*TaskTimeEstimation, error) {
	x := vec.Slice()

	hours, err := e.model.Predict(x)
	if err != nil {
		return nil, err
	}
	confidence, err := e.model.Confidence(x)
	if err != nil {
		return nil, err
	}

	confidence = round2(clamp01(confidence))
	return &TaskTimeEstimation{
		AIEstimatedTimeHours: round2(hours),
		ConfidenceScore:      &confidence,
	}, nil
}
