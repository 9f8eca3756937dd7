package classifier

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"github.com/straja-ai/mailsieve/internal/dataset"
	"github.com/straja-ai/mailsieve/internal/embedding"
)

// TrainerOptions tunes SGD. Zero values select the defaults.
type TrainerOptions struct {
	LearningRate float64 // default 0.05
	InitScale    float64 // weights start uniform in [-InitScale, InitScale]; default 0.005
	Seed         int64
	Rand         *rand.Rand // overrides Seed when set
	Shuffle      bool       // permute training order every epoch
	// CacheValidation embeds the validation set once instead of every epoch.
	CacheValidation bool
	Concurrency     int
	OnEpoch         func(HistoryEntry)
}

// Trainer fits a Model with per-example stochastic gradient descent.
type Trainer struct {
	emb  embedding.Provider
	opts TrainerOptions
	rng  *rand.Rand
}

func NewTrainer(emb embedding.Provider, opts TrainerOptions) *Trainer {
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.05
	}
	if opts.InitScale <= 0 {
		opts.InitScale = 0.005
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(opts.Seed))
	}
	return &Trainer{emb: emb, opts: opts, rng: rng}
}

// Train embeds every training example once, then runs epochs passes of SGD.
// Validation accuracy is recorded after each pass with epochs numbered from 0.
// Any embedding failure aborts training and no model is returned.
func (t *Trainer) Train(ctx context.Context, train, val []dataset.Example, epochs int) (*Model, error) {
	if len(train) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if epochs < 1 {
		return nil, ErrInvalidEpochs
	}

	xs, err := t.fetch(ctx, "train", train)
	if err != nil {
		return nil, err
	}
	dim := len(xs[0])
	for i, x := range xs {
		if len(x) != dim {
			return nil, &ExampleError{Set: "train", Index: i, Err: &DimensionMismatchError{Want: dim, Got: len(x)}}
		}
	}

	m := &Model{Weights: make([]float64, dim)}
	for i := range m.Weights {
		m.Weights[i] = (t.rng.Float64()*2 - 1) * t.opts.InitScale
	}

	order := make([]int, len(train))
	for i := range order {
		order[i] = i
	}

	var cached [][]float64
	lr := t.opts.LearningRate
	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t.opts.Shuffle {
			t.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		for _, i := range order {
			x := xs[i]
			p := Sigmoid(dot(m.Weights, x) + m.Bias)
			if math.IsNaN(p) {
				return nil, &ExampleError{Set: "train", Index: i, Err: ErrNaNScore}
			}
			e := p - float64(train[i].Label)
			for j := range m.Weights {
				m.Weights[j] -= lr * e * x[j]
			}
			m.Bias -= lr * e
		}

		vecs := cached
		if vecs == nil {
			vecs, err = t.fetch(ctx, "validation", val)
			if err != nil {
				return nil, err
			}
			if t.opts.CacheValidation {
				cached = vecs
			}
		}
		acc, err := accuracy(m, val, vecs)
		if err != nil {
			return nil, err
		}

		entry := HistoryEntry{Epoch: epoch, Accuracy: acc}
		m.History = append(m.History, entry)
		if t.opts.OnEpoch != nil {
			t.opts.OnEpoch(entry)
		}
	}
	return m, nil
}

func (t *Trainer) fetch(ctx context.Context, set string, examples []dataset.Example) ([][]float64, error) {
	vecs, err := embedding.FetchAll(ctx, t.emb, dataset.Texts(examples), t.opts.Concurrency)
	if err != nil {
		var idxErr *embedding.IndexError
		if errors.As(err, &idxErr) {
			return nil, &ExampleError{Set: set, Index: idxErr.Index, Err: idxErr.Err}
		}
		return nil, &ExampleError{Set: set, Index: -1, Err: err}
	}
	return vecs, nil
}

// accuracy is the fraction of examples whose thresholded score matches the
// label; an empty set scores 0.
func accuracy(m *Model, examples []dataset.Example, vecs [][]float64) (float64, error) {
	if len(examples) == 0 {
		return 0, nil
	}
	correct := 0
	for i, ex := range examples {
		p, err := Score(m, vecs[i])
		if err != nil {
			return 0, &ExampleError{Set: "validation", Index: i, Err: err}
		}
		pred := dataset.LabelSpam
		if p >= Threshold {
			pred = dataset.LabelHam
		}
		if pred == ex.Label {
			correct++
		}
	}
	return float64(correct) / float64(len(examples)), nil
}
