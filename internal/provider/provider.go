// Package provider implements chat backends used to explain verdicts.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/straja-ai/mailsieve/internal/config"
	"github.com/straja-ai/mailsieve/internal/inference"
)

// Provider is the interface for all upstream LLM providers.
type Provider interface {
	ChatCompletion(ctx context.Context, req *inference.Request) (*inference.Response, error)
}

// FromConfig builds the configured chat backend. A "none" type yields nil.
func FromConfig(cfg config.ReasoningConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "none":
		return nil, nil
	case "ollama":
		return NewOllama(cfg.BaseURL, cfg.Timeout), nil
	case "openai":
		key := config.ResolveAPIKey(cfg.APIKey, cfg.APIKeyEnv)
		return NewOpenAI(cfg.BaseURL, key, cfg.Timeout, 0), nil
	case "anthropic":
		key := config.ResolveAPIKey(cfg.APIKey, cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("anthropic reasoning: api key env %s is empty", cfg.APIKeyEnv)
		}
		return NewAnthropic(key, cfg.BaseURL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown reasoning type %q", cfg.Type)
	}
}
