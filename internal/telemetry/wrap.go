package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/straja-ai/mailsieve/internal/embedding"
	"github.com/straja-ai/mailsieve/internal/inference"
	"github.com/straja-ai/mailsieve/internal/provider"
)

// WrapEmbedder traces every Embed call and records its latency. Text never
// becomes a span attribute.
func WrapEmbedder(next embedding.Provider, p *Provider, name string) embedding.Provider {
	if p == nil {
		return next
	}
	return &tracedEmbedder{next: next, tel: p, name: name}
}

type tracedEmbedder struct {
	next embedding.Provider
	tel  *Provider
	name string
}

func (t *tracedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, span := t.tel.Tracer().Start(ctx, "embedding.embed", trace.WithAttributes(SafeAttributes(map[string]interface{}{
		"mailsieve.provider": t.name,
		"mailsieve.text_len": len(text),
	})...))
	defer span.End()

	start := time.Now()
	vec, err := t.next.Embed(ctx, text)
	t.tel.RecordProviderCall(ctx, "embedding", t.name, float64(time.Since(start))/float64(time.Millisecond), err != nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embed failed")
		return nil, err
	}
	span.SetAttributes(SafeAttributes(map[string]interface{}{"mailsieve.dim": len(vec)})...)
	return vec, nil
}

// WrapChat does the same for reasoning calls.
func WrapChat(next provider.Provider, p *Provider, name string) provider.Provider {
	if p == nil || next == nil {
		return next
	}
	return &tracedChat{next: next, tel: p, name: name}
}

type tracedChat struct {
	next provider.Provider
	tel  *Provider
	name string
}

func (t *tracedChat) ChatCompletion(ctx context.Context, req *inference.Request) (*inference.Response, error) {
	ctx, span := t.tel.Tracer().Start(ctx, "reasoning.chat", trace.WithAttributes(SafeAttributes(map[string]interface{}{
		"mailsieve.provider": t.name,
		"mailsieve.model":    req.Model,
	})...))
	defer span.End()

	start := time.Now()
	resp, err := t.next.ChatCompletion(ctx, req)
	t.tel.RecordProviderCall(ctx, "reasoning", t.name, float64(time.Since(start))/float64(time.Millisecond), err != nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat failed")
		return nil, err
	}
	return resp, nil
}
