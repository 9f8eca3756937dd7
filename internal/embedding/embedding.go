// Package embedding maps email text to fixed-length numeric vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Provider turns text into an embedding vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Func adapts a plain function to Provider.
type Func func(ctx context.Context, text string) ([]float64, error)

func (f Func) Embed(ctx context.Context, text string) ([]float64, error) { return f(ctx, text) }

// Error is returned when the backing service is unreachable or answers with
// something that is not a numeric vector.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("embedding %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrEmptyVector  = errors.New("empty embedding vector")
	ErrNonFinite    = errors.New("embedding contains NaN or Inf")
	ErrNoEmbeddings = errors.New("response has no embeddings")
)

// checkVector rejects vectors the classifier cannot use.
func checkVector(vec []float64) error {
	if len(vec) == 0 {
		return ErrEmptyVector
	}
	for _, v := range vec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNonFinite
		}
	}
	return nil
}

// AsError reports whether err carries an *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
