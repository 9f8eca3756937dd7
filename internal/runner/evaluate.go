package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/straja-ai/mailsieve/internal/activation"
	"github.com/straja-ai/mailsieve/internal/classifier"
	"github.com/straja-ai/mailsieve/internal/dataset"
	"github.com/straja-ai/mailsieve/internal/metrics"
)

// Evaluate scores a labeled test set with the saved model and appends the
// result to the metrics history.
func (r *Runner) Evaluate(ctx context.Context, testPath string) (metrics.Metrics, error) {
	testPath = firstNonEmpty(testPath, r.cfg.Paths.TestSet)

	m, err := r.models.Load()
	if err != nil {
		return metrics.Metrics{}, err
	}
	test, err := dataset.LoadJSONL(testPath)
	if err != nil {
		return metrics.Metrics{}, err
	}

	pred := classifier.NewPredictor(m, r.deps.Embedder)
	records := make([]metrics.Record, 0, len(test))
	for i, ex := range test {
		start := time.Now()
		score, err := pred.Predict(ctx, ex.Text)
		if err != nil {
			return metrics.Metrics{}, fmt.Errorf("evaluate %s: %w", ex.ID, err)
		}
		records = append(records, metrics.Record{ID: ex.ID, Score: score})
		r.debugf("evaluate: example=%d score=%.4f label=%d", i, score, ex.Label)

		label := ex.Label
		r.emit(ctx, activation.BuildParams{
			Kind:      activation.KindEvaluate,
			Email:     ex.ID,
			Text:      ex.Text,
			Scores:    []float64{score},
			Decision:  string(classifier.DecisionFor(score)),
			GoldLabel: &label,
			Predict:   time.Since(start),
		})
	}

	result, skipped := metrics.EvaluateWithSkipped(records, dataset.LabelIndex(test))
	r.printf("Test accuracy = %g\n", result.Accuracy)
	log.Printf("evaluate: examples=%d accuracy=%.4f precision=%.4f recall=%.4f f1=%.4f", result.Total(), result.Accuracy, result.Precision, result.Recall, result.F1)

	if _, err := r.history.Append("evaluate", result, skipped); err != nil {
		return result, fmt.Errorf("metrics history: %w", err)
	}
	return result, nil
}
