// Package classifier trains and applies a logistic-regression ham/spam model
// over embedding vectors.
package classifier

import "math"

// Threshold separates ham (>=) from spam (<).
const Threshold = 0.5

// Decision is the recommended action for an email.
type Decision string

const (
	Forward Decision = "forward"
	Discard Decision = "discard"
)

// DecisionFor maps a ham probability to an action.
func DecisionFor(score float64) Decision {
	if score >= Threshold {
		return Forward
	}
	return Discard
}

// HistoryEntry records validation accuracy after one epoch.
type HistoryEntry struct {
	Epoch    int     `json:"epoch"`
	Accuracy float64 `json:"accuracy"`
}

// Model is a trained weight vector plus bias. A persisted Model is treated
// as immutable and may be shared by concurrent predictors.
type Model struct {
	Weights []float64      `json:"weights"`
	Bias    float64        `json:"bias"`
	History []HistoryEntry `json:"metrics"`
}

// Dim is the embedding dimension the model expects.
func (m *Model) Dim() int { return len(m.Weights) }

// Sigmoid is the logistic function.
func Sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// Score computes sigmoid(w·x + b) for an already-embedded vector.
func Score(m *Model, vec []float64) (float64, error) {
	if len(vec) != len(m.Weights) {
		return 0, &DimensionMismatchError{Want: len(m.Weights), Got: len(vec)}
	}
	p := Sigmoid(dot(m.Weights, vec) + m.Bias)
	if math.IsNaN(p) {
		return 0, ErrNaNScore
	}
	return p, nil
}

func dot(w, x []float64) float64 {
	var z float64
	for i := range w {
		z += w[i] * x[i]
	}
	return z
}
