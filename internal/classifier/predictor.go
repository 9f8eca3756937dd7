package classifier

import (
	"context"

	"github.com/straja-ai/mailsieve/internal/embedding"
)

// Scorer returns a ham probability for raw email text.
type Scorer interface {
	Predict(ctx context.Context, text string) (float64, error)
}

// Predictor applies a trained Model to new text. It never mutates the model
// and is safe for concurrent use.
type Predictor struct {
	model *Model
	emb   embedding.Provider
}

func NewPredictor(m *Model, emb embedding.Provider) *Predictor {
	return &Predictor{model: m, emb: emb}
}

// Model returns the model being applied.
func (p *Predictor) Model() *Model { return p.model }

// Predict embeds text and returns sigmoid(w·x + b).
func (p *Predictor) Predict(ctx context.Context, text string) (float64, error) {
	vec, err := p.emb.Embed(ctx, text)
	if err != nil {
		return 0, err
	}
	return Score(p.model, vec)
}
