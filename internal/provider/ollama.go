package provider

import (
	"context"
	"encoding/json"
	"time"

	"github.com/straja-ai/mailsieve/internal/inference"
)

// ollamaProvider talks to a local Ollama /api/chat endpoint without streaming.
type ollamaProvider struct {
	c *jsonClient
}

func NewOllama(baseURL string, timeout time.Duration) Provider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	c := newJSONClient("ollama", baseURL, timeout, 0)
	c.errorMessage = func(body []byte) string {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &e)
		return e.Error
	}
	return &ollamaProvider{c: c}
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  ollamaOptions       `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int64   `json:"num_predict,omitempty"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message         ollamaChatMessage `json:"message"`
	PromptEvalCount int               `json:"prompt_eval_count"`
	EvalCount       int               `json:"eval_count"`
	Error           string            `json:"error"`
}

func (p *ollamaProvider) ChatCompletion(ctx context.Context, req *inference.Request) (*inference.Response, error) {
	start := time.Now()
	in := ollamaChatRequest{
		Model:    req.Model,
		Messages: make([]ollamaChatMessage, 0, len(req.Messages)+1),
		Options:  ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens},
	}
	if req.System != "" {
		in.Messages = append(in.Messages, ollamaChatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		in.Messages = append(in.Messages, ollamaChatMessage{Role: m.Role, Content: m.Content})
	}

	var out ollamaChatResponse
	if err := p.c.post(ctx, "/api/chat", in, &out); err != nil {
		return nil, err
	}
	// Ollama can report a failure inside a 200 answer.
	if out.Error != "" {
		return nil, &StatusError{Provider: "ollama", Status: 200, Message: out.Error}
	}

	return &inference.Response{
		Message: inference.Message{Role: out.Message.Role, Content: out.Message.Content},
		Usage: inference.Usage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
		Provider: "ollama",
		Latency:  time.Since(start),
	}, nil
}
