package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/straja-ai/mailsieve/internal/activation"
	"github.com/straja-ai/mailsieve/internal/classifier"
	"github.com/straja-ai/mailsieve/internal/dataset"
	"github.com/straja-ai/mailsieve/internal/store"
)

// AggregateRecord is one entry of the aggregation file.
type AggregateRecord struct {
	Email     string              `json:"email"`
	Final     classifier.Decision `json:"final"`
	Reasoning string              `json:"reasoning"`
	Scores    []float64           `json:"scores"`
}

// Aggregate runs n predictions per email, takes the majority decision and
// attaches an explanation. n <= 0 uses the configured sample count.
func (r *Runner) Aggregate(ctx context.Context, emailsDir string, n int) ([]AggregateRecord, error) {
	emailsDir = firstNonEmpty(emailsDir, r.cfg.Paths.EmailsDir)
	if n <= 0 {
		n = r.cfg.Aggregation.Samples
	}

	m, err := r.models.Load()
	if err != nil {
		return nil, err
	}
	emails, err := dataset.ReadEmails(emailsDir)
	if err != nil {
		return nil, err
	}

	agg := classifier.NewAggregator(
		classifier.NewPredictor(m, r.deps.Embedder),
		r.deps.Explainer,
		classifier.AggregatorOptions{Concurrency: r.cfg.Aggregation.Concurrency},
	)

	out := make([]AggregateRecord, 0, len(emails))
	for _, e := range emails {
		start := time.Now()
		res, err := agg.Aggregate(ctx, e.Text, n)
		if err != nil {
			return nil, fmt.Errorf("aggregate %s: %w", e.Name, err)
		}
		out = append(out, AggregateRecord{
			Email:     e.Name,
			Final:     res.FinalDecision,
			Reasoning: res.Reasoning,
			Scores:    res.Scores,
		})
		r.printf("Aggregated %s → %s\n", e.Name, res.FinalDecision)
		r.debugf("aggregate: email=%s scores=%v", e.Name, res.Scores)

		r.deps.Telemetry.RecordPrediction(ctx, "aggregate", string(res.FinalDecision))
		r.emit(ctx, activation.BuildParams{
			Kind:      activation.KindAggregate,
			Email:     e.Name,
			Text:      e.Text,
			Scores:    res.Scores,
			Decision:  string(res.FinalDecision),
			Reasoning: res.Reasoning,
			GoldLabel: goldPtr(e.Name),
			Predict:   time.Since(start),
		})
	}

	if err := store.WriteJSON(r.cfg.Paths.AggregationFile, out); err != nil {
		return nil, err
	}
	log.Printf("aggregate: emails=%d samples=%d path=%s", len(out), n, r.cfg.Paths.AggregationFile)
	return out, nil
}
