package risk

import (
	"math"

	"github.com/google/uuid"

	"certflow/internal/domain"
)

// Default hyperparameters, used for any field left at zero.
const (
	DefaultLearningRate = 0.5
	DefaultEpochs       = 200
	DefaultBatchSize    = 16
)

// holdoutFraction is the share of examples, taken from the tail, that the
// benchmark is computed on.
const holdoutFraction = 0.2

// Example is one labeled training example.
type Example struct {
	FeedbackID uuid.UUID
	Features   []float64
	// Target is the corrected risk in [0,1].
	Target float64
}

// Model is a logistic scorer over the normalized factor vector.
type Model struct {
	Weights []float64
	Bias    float64
}

// ModelFrom rebuilds a scorer from a stored model.
func ModelFrom(m *domain.RiskModel) *Model {
	return &Model{Weights: append([]float64(nil), m.Weights...), Bias: m.Bias}
}

// Predict returns the model's risk in [0,1].
func (m *Model) Predict(x []float64) float64 {
	z := m.Bias
	for i, w := range m.Weights {
		if i < len(x) {
			z += w * x[i]
		}
	}
	return sigmoid(z)
}

// Score returns the model's risk scaled to [0,100].
func (m *Model) Score(f domain.RiskFactors) float64 {
	return round2(100 * m.Predict(f.Vector()))
}

// WithDefaults fills unset hyperparameters.
func WithDefaults(hp domain.Hyperparameters) domain.Hyperparameters {
	if hp.LearningRate <= 0 {
		hp.LearningRate = DefaultLearningRate
	}
	if hp.Epochs <= 0 {
		hp.Epochs = DefaultEpochs
	}
	if hp.BatchSize <= 0 {
		hp.BatchSize = DefaultBatchSize
	}
	return hp
}

// Split separates the held-out tail from the training head. At least one
// example is held out whenever there are two or more.
func Split(examples []Example) (train, holdout []Example) {
	if len(examples) < 2 {
		return examples, nil
	}
	n := int(math.Ceil(float64(len(examples)) * holdoutFraction))
	n = min(max(n, 1), len(examples)-1)
	cut := len(examples) - n
	return examples[:cut], examples[cut:]
}

// Train fits a model with mini-batch gradient descent on squared error.
// Example order is kept, so the same inputs always give the same model.
func Train(examples []Example, hp domain.Hyperparameters) *Model {
	hp = WithDefaults(hp)
	dims := 5
	if len(examples) > 0 {
		dims = len(examples[0].Features)
	}
	m := &Model{Weights: make([]float64, dims)}
	if len(hp.FeatureWeights) == dims {
		copy(m.Weights, hp.FeatureWeights)
	}

	grad := make([]float64, dims)
	for epoch := 0; epoch < hp.Epochs; epoch++ {
		for start := 0; start < len(examples); start += hp.BatchSize {
			batch := examples[start:min(start+hp.BatchSize, len(examples))]
			for i := range grad {
				grad[i] = 0
			}
			var gradBias float64
			for _, ex := range batch {
				p := m.Predict(ex.Features)
				g := (p - ex.Target) * p * (1 - p)
				for i := range grad {
					grad[i] += g * ex.Features[i]
				}
				gradBias += g
			}
			scale := hp.LearningRate / float64(len(batch))
			for i := range m.Weights {
				m.Weights[i] -= scale * grad[i]
			}
			m.Bias -= scale * gradBias
		}
	}
	return m
}

// Benchmark is 100 × (1 − mean absolute error) over examples. An empty set
// scores zero.
func Benchmark(m *Model, examples []Example) float64 {
	if len(examples) == 0 {
		return 0
	}
	var sum float64
	for _, ex := range examples {
		sum += math.Abs(m.Predict(ex.Features) - ex.Target)
	}
	return round2(100 * (1 - sum/float64(len(examples))))
}

// ExampleFrom derives a training label from feedback. Feedback that neither
// confirms the prediction nor says what it should have been is skipped.
func ExampleFrom(f domain.LabeledFeedback) (Example, bool) {
	var target float64
	switch {
	case f.CorrectedScore != nil:
		target = *f.CorrectedScore
	case f.CorrectedCategory != nil:
		target = categoryMidpoint(*f.CorrectedCategory)
	case f.Outcome == domain.FeedbackCorrect:
		target = f.BlendedScore
	default:
		return Example{}, false
	}
	return Example{
		FeedbackID: f.ID,
		Features:   f.Factors.Vector(),
		Target:     clamp(target) / 100,
	}, true
}

func categoryMidpoint(c domain.RiskCategory) float64 {
	switch c {
	case domain.RiskCategoryCritical:
		return 87.5
	case domain.RiskCategoryHigh:
		return (HighFrom + CriticalFrom) / 2
	case domain.RiskCategoryMedium:
		return (MediumFrom + HighFrom) / 2
	default:
		return MediumFrom / 2
	}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
