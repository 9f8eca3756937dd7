// Package metrics computes confusion-matrix statistics and keeps an
// append-only history of evaluation runs.
package metrics

import "github.com/straja-ai/mailsieve/internal/classifier"

// Record is one scored item. ID is resolved to a gold label by the caller.
type Record struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Metrics treats ham as the positive class.
type Metrics struct {
	TP        int     `json:"tp"`
	TN        int     `json:"tn"`
	FP        int     `json:"fp"`
	FN        int     `json:"fn"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Accuracy  float64 `json:"accuracy"`
}

// Total is the number of counted records.
func (m Metrics) Total() int { return m.TP + m.TN + m.FP + m.FN }

// Evaluate thresholds each score and compares it against its gold label.
// Records whose gold label is unknown are left out of every count.
func Evaluate(records []Record, goldLabelOf func(id string) (int, bool)) Metrics {
	m, _ := EvaluateWithSkipped(records, goldLabelOf)
	return m
}

// EvaluateWithSkipped is Evaluate that also reports how many records had no
// gold label.
func EvaluateWithSkipped(records []Record, goldLabelOf func(id string) (int, bool)) (Metrics, int) {
	var m Metrics
	skipped := 0
	for _, r := range records {
		gold, ok := goldLabelOf(r.ID)
		if !ok {
			skipped++
			continue
		}
		predHam := r.Score >= classifier.Threshold
		goldHam := gold == 1
		switch {
		case predHam && goldHam:
			m.TP++
		case !predHam && !goldHam:
			m.TN++
		case predHam && !goldHam:
			m.FP++
		default:
			m.FN++
		}
	}
	m.derive()
	return m, skipped
}

func (m *Metrics) derive() {
	m.Precision = ratio(m.TP, m.TP+m.FP)
	m.Recall = ratio(m.TP, m.TP+m.FN)
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	m.Accuracy = ratio(m.TP+m.TN, m.Total())
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
