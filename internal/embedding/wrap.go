package embedding

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sethvargo/go-retry"
)

type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

// WithTimeout bounds every Embed call. Expiry surfaces as an *Error.
func WithTimeout(p Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		return p
	}
	return &timeoutProvider{next: p, timeout: timeout}
}

func (t *timeoutProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	vec, err := t.next.Embed(callCtx, text)
	if err != nil {
		if _, ok := AsError(err); !ok {
			err = &Error{Provider: "timeout", Err: err}
		}
		return nil, err
	}
	return vec, nil
}

// RetryConfig controls bounded retry around embedding calls.
type RetryConfig struct {
	MaxRetries uint64
	BaseDelay  time.Duration
}

type retryProvider struct {
	next Provider
	cfg  RetryConfig
}

// WithRetry retries failed calls with Fibonacci backoff. Once retries are
// exhausted the last error is returned unchanged, so callers still see the
// original *Error.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	if cfg.MaxRetries == 0 {
		return p
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	return &retryProvider{next: p, cfg: cfg}
}

func (r *retryProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	var out []float64
	attempt := 0
	b := retry.WithMaxRetries(r.cfg.MaxRetries, retry.NewFibonacci(r.cfg.BaseDelay))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		vec, err := r.next.Embed(ctx, text)
		if err == nil {
			out = vec
			return nil
		}
		if !retryable(ctx, err) {
			return err
		}
		log.Printf("embedding: attempt=%d failed, retrying: %v", attempt, err)
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	// Malformed payloads will not fix themselves.
	if errors.Is(err, ErrEmptyVector) || errors.Is(err, ErrNonFinite) {
		return false
	}
	return true
}
