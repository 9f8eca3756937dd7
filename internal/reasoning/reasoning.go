// Package reasoning asks a chat model for a one-sentence explanation of a
// verdict. Explanations are best effort and never change a decision.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/straja-ai/mailsieve/internal/inference"
	"github.com/straja-ai/mailsieve/internal/provider"
	"github.com/straja-ai/mailsieve/internal/redact"
)

// Fallback is returned whenever no explanation could be obtained.
const Fallback = "No reasoning provided."

// ErrEmptyReasoning is returned when the model answers with blank text.
var ErrEmptyReasoning = errors.New("reasoning: empty response")

// Explainer produces a short human-readable reason for a decision.
type Explainer interface {
	Explain(ctx context.Context, text, decision string) (string, error)
}

// None always answers with Fallback.
type None struct{}

func (None) Explain(context.Context, string, string) (string, error) { return Fallback, nil }

// LLM explains decisions through a chat provider.
type LLM struct {
	chat      provider.Provider
	model     string
	timeout   time.Duration
	maxTokens int64
}

// New wraps a chat provider. A nil provider yields None.
func New(chat provider.Provider, model string, timeout time.Duration, maxTokens int64) Explainer {
	if chat == nil {
		return None{}
	}
	return &LLM{chat: chat, model: model, timeout: timeout, maxTokens: maxTokens}
}

// Prompt builds the instruction sent to the model.
func Prompt(text, decision string) string {
	return fmt.Sprintf("Explain in ONE short sentence why the following email was classified as %q.\n\nEmail:\n\"\"\"\n%s\n\"\"\"", decision, text)
}

func (l *LLM) Explain(ctx context.Context, text, decision string) (string, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	resp, err := l.chat.ChatCompletion(ctx, &inference.Request{
		Model:       l.model,
		Messages:    []inference.Message{inference.UserMessage(Prompt(text, decision))},
		Temperature: 0,
		MaxTokens:   l.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("reasoning model=%s: %w", l.model, err)
	}
	out := strings.TrimSpace(resp.Message.Content)
	if out == "" {
		return "", ErrEmptyReasoning
	}
	return out, nil
}

// ExplainOrFallback never fails: errors are logged and collapse to Fallback.
func ExplainOrFallback(ctx context.Context, e Explainer, text, decision string) string {
	if e == nil {
		return Fallback
	}
	out, err := e.Explain(ctx, text, decision)
	if err != nil {
		redact.Logf("reasoning: decision=%s falling back: %v", decision, err)
		return Fallback
	}
	if out = strings.TrimSpace(out); out == "" {
		log.Printf("reasoning: decision=%s empty explanation, falling back", decision)
		return Fallback
	}
	return out
}
