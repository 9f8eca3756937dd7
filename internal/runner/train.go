package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/straja-ai/mailsieve/internal/classifier"
	"github.com/straja-ai/mailsieve/internal/dataset"
)

// TrainOptions override the configured paths and epoch count when set.
type TrainOptions struct {
	TrainPath string
	ValPath   string
	Epochs    int
}

// Train fits a model on the training set, validates it after every epoch
// and saves it. Nothing is written when training fails.
func (r *Runner) Train(ctx context.Context, opts TrainOptions) (*classifier.Model, error) {
	trainPath := firstNonEmpty(opts.TrainPath, r.cfg.Paths.TrainSet)
	valPath := firstNonEmpty(opts.ValPath, r.cfg.Paths.ValidationSet)
	epochs := opts.Epochs
	if epochs == 0 {
		epochs = r.cfg.Training.Epochs
	}

	train, err := dataset.LoadJSONL(trainPath)
	if err != nil {
		return nil, err
	}
	val, err := dataset.LoadJSONL(valPath)
	if err != nil {
		return nil, err
	}
	log.Printf("train: examples=%d validation=%d epochs=%d lr=%g", len(train), len(val), epochs, r.cfg.Training.LearningRate)

	start := time.Now()
	tc := r.cfg.Training
	trainer := classifier.NewTrainer(r.deps.Embedder, classifier.TrainerOptions{
		LearningRate:    tc.LearningRate,
		InitScale:       tc.InitScale,
		Seed:            tc.Seed,
		Shuffle:         tc.Shuffle,
		CacheValidation: tc.CacheValidation,
		Concurrency:     tc.Concurrency,
		OnEpoch: func(h classifier.HistoryEntry) {
			log.Printf("train: epoch=%d accuracy=%.4f", h.Epoch, h.Accuracy)
			r.deps.Telemetry.RecordEpoch(ctx, h.Accuracy)
		},
	})
	m, err := trainer.Train(ctx, train, val, epochs)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	if err := r.models.Save(m); err != nil {
		return nil, err
	}
	log.Printf("train: model saved path=%s dim=%d elapsed=%s", r.models.Path(), m.Dim(), time.Since(start).Round(time.Millisecond))
	return m, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
