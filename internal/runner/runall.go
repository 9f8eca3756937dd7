package runner

import (
	"context"
	"errors"
	"log"
	"os"
)

// RunAll trains, evaluates, classifies and aggregates in order. Evaluation
// is skipped when the test set is absent; any other failure stops the run.
func (r *Runner) RunAll(ctx context.Context) error {
	r.printf("\n=== TRAINING MODEL ===\n")
	if _, err := r.Train(ctx, TrainOptions{}); err != nil {
		return err
	}

	r.printf("\n=== EVALUATING TRAINED MODEL ===\n")
	if _, err := os.Stat(r.cfg.Paths.TestSet); errors.Is(err, os.ErrNotExist) {
		log.Printf("run-all: test set %s missing, skipping evaluation", r.cfg.Paths.TestSet)
	} else if _, err := r.Evaluate(ctx, ""); err != nil {
		return err
	}

	r.printf("\n=== CLASSIFYING EMAILS ===\n")
	if _, _, err := r.Classify(ctx, ""); err != nil {
		return err
	}

	r.printf("\n=== AGGREGATION MODE (%d SAMPLES) ===\n", r.cfg.Aggregation.Samples)
	if _, err := r.Aggregate(ctx, "", 0); err != nil {
		return err
	}

	r.printf("\n=== ALL TASKS COMPLETED ===\n\n")
	return nil
}
