package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/straja-ai/mailsieve/internal/activation"
	"github.com/straja-ai/mailsieve/internal/classifier"
	"github.com/straja-ai/mailsieve/internal/dataset"
	"github.com/straja-ai/mailsieve/internal/metrics"
	"github.com/straja-ai/mailsieve/internal/store"
)

// ClassifyResult is one entry of the results file.
type ClassifyResult struct {
	Email          string              `json:"email"`
	HamScore       float64             `json:"ham_score"`
	Recommendation classifier.Decision `json:"recommendation"`
}

// Classify scores every email file once, writes the results file and
// records metrics against gold labels taken from the file names.
func (r *Runner) Classify(ctx context.Context, emailsDir string) ([]ClassifyResult, metrics.Metrics, error) {
	emailsDir = firstNonEmpty(emailsDir, r.cfg.Paths.EmailsDir)

	m, err := r.models.Load()
	if err != nil {
		return nil, metrics.Metrics{}, err
	}
	emails, err := dataset.ReadEmails(emailsDir)
	if err != nil {
		return nil, metrics.Metrics{}, err
	}

	pred := classifier.NewPredictor(m, r.deps.Embedder)
	results := make([]ClassifyResult, 0, len(emails))
	records := make([]metrics.Record, 0, len(emails))
	for _, e := range emails {
		start := time.Now()
		score, err := pred.Predict(ctx, e.Text)
		if err != nil {
			return nil, metrics.Metrics{}, fmt.Errorf("classify %s: %w", e.Name, err)
		}
		decision := classifier.DecisionFor(score)
		res := ClassifyResult{Email: e.Name, HamScore: score, Recommendation: decision}
		results = append(results, res)
		records = append(records, metrics.Record{ID: e.Name, Score: score})

		line, _ := json.Marshal(struct {
			HamScore       float64             `json:"ham_score"`
			Recommendation classifier.Decision `json:"recommendation"`
		}{score, decision})
		r.printf("Email: %s\n%s\n\n", e.Name, line)

		r.deps.Telemetry.RecordPrediction(ctx, "classify", string(decision))
		r.emit(ctx, activation.BuildParams{
			Kind:      activation.KindClassify,
			Email:     e.Name,
			Text:      e.Text,
			Scores:    []float64{score},
			Decision:  string(decision),
			GoldLabel: goldPtr(e.Name),
			Predict:   time.Since(start),
		})
	}

	if err := store.WriteJSON(r.cfg.Paths.ResultsFile, results); err != nil {
		return nil, metrics.Metrics{}, err
	}
	r.printf("Results saved to %s\n", r.cfg.Paths.ResultsFile)

	result, skipped := metrics.EvaluateWithSkipped(records, dataset.GoldLabelFromFilename)
	log.Printf("classify: emails=%d labeled=%d precision=%.4f recall=%.4f f1=%.4f accuracy=%.4f",
		len(emails), result.Total(), result.Precision, result.Recall, result.F1, result.Accuracy)
	if _, err := r.history.Append("classify", result, skipped); err != nil {
		return results, result, fmt.Errorf("metrics history: %w", err)
	}
	return results, result, nil
}

func goldPtr(name string) *int {
	if l, ok := dataset.GoldLabelFromFilename(name); ok {
		return &l
	}
	return nil
}
