package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// FetchAll embeds texts with at most concurrency calls in flight. The result
// slice is index-aligned with texts regardless of completion order. The
// first failure cancels the rest and is returned with the failing index.
func FetchAll(ctx context.Context, p Provider, texts []string, concurrency int) ([][]float64, error) {
	out := make([][]float64, len(texts))
	if concurrency <= 1 {
		for i, text := range texts {
			vec, err := p.Embed(ctx, text)
			if err != nil {
				return nil, &IndexError{Index: i, Err: err}
			}
			out[i] = vec
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := p.Embed(gctx, text)
			if err != nil {
				return &IndexError{Index: i, Err: err}
			}
			out[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// IndexError names the input position whose embedding failed.
type IndexError struct {
	Index int
	Err   error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("example %d: %v", e.Index, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }
