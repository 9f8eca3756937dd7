package classifier

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/straja-ai/mailsieve/internal/reasoning"
)

// AggregationResult is the outcome of N independent predictions.
type AggregationResult struct {
	Scores        []float64 `json:"scores"`
	FinalDecision Decision  `json:"final"`
	Reasoning     string    `json:"reasoning"`
}

type AggregatorOptions struct {
	// Concurrency bounds in-flight predictions; 1 runs them sequentially.
	Concurrency int
}

// Aggregator runs a Scorer several times, takes a strict majority vote and
// attaches a best-effort explanation.
type Aggregator struct {
	scorer    Scorer
	explainer reasoning.Explainer
	opts      AggregatorOptions
}

func NewAggregator(p Scorer, r reasoning.Explainer, opts AggregatorOptions) *Aggregator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if r == nil {
		r = reasoning.None{}
	}
	return &Aggregator{scorer: p, explainer: r, opts: opts}
}

// Aggregate calls the scorer exactly n times, decides by majority and then
// asks for one explanation. A scorer failure aborts; an explanation failure
// only yields reasoning.Fallback.
func (a *Aggregator) Aggregate(ctx context.Context, text string, n int) (*AggregationResult, error) {
	if n < 1 {
		return nil, ErrInvalidSampleCount
	}

	scores, err := a.sample(ctx, text, n)
	if err != nil {
		return nil, err
	}

	decision := MajorityDecision(scores)
	return &AggregationResult{
		Scores:        scores,
		FinalDecision: decision,
		Reasoning:     reasoning.ExplainOrFallback(ctx, a.explainer, text, string(decision)),
	}, nil
}

func (a *Aggregator) sample(ctx context.Context, text string, n int) ([]float64, error) {
	scores := make([]float64, n)
	if a.opts.Concurrency == 1 {
		for i := range scores {
			s, err := a.scorer.Predict(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("sample %d: %w", i, err)
			}
			scores[i] = s
		}
		return scores, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for i := range scores {
		i := i
		g.Go(func() error {
			s, err := a.scorer.Predict(gctx, text)
			if err != nil {
				return fmt.Errorf("sample %d: %w", i, err)
			}
			scores[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

// MajorityDecision forwards only when ham votes are a strict majority.
// A tie discards.
func MajorityDecision(scores []float64) Decision {
	hamVotes := 0
	for _, s := range scores {
		if s >= Threshold {
			hamVotes++
		}
	}
	if 2*hamVotes > len(scores) {
		return Forward
	}
	return Discard
}
