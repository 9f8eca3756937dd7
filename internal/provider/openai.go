package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/straja-ai/mailsieve/internal/inference"
)

// openAIProvider speaks the Chat Completions API of OpenAI and compatible
// servers (vLLM, LM Studio, llama.cpp).
type openAIProvider struct {
	c *jsonClient
}

func NewOpenAI(baseURL, apiKey string, timeout time.Duration, maxResponseBytes int64) Provider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := newJSONClient("openai", baseURL, timeout, maxResponseBytes)
	if apiKey != "" {
		c.headers["Authorization"] = "Bearer " + apiKey
	}
	c.errorMessage = func(body []byte) string {
		var e struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &e) != nil || e.Error.Message == "" {
			return ""
		}
		return fmt.Sprintf("%s (type=%s)", e.Error.Message, e.Error.Type)
	}
	return &openAIProvider{c: c}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int64           `json:"max_tokens,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *openAIProvider) ChatCompletion(ctx context.Context, req *inference.Request) (*inference.Response, error) {
	start := time.Now()
	in := openAIChatRequest{
		Model:       req.Model,
		Messages:    make([]openAIMessage, 0, len(req.Messages)+1),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.System != "" {
		in.Messages = append(in.Messages, openAIMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		in.Messages = append(in.Messages, openAIMessage{Role: m.Role, Content: m.Content})
	}

	var out openAIChatResponse
	if err := p.c.post(ctx, "/chat/completions", in, &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("openai response had no choices")
	}

	first := out.Choices[0].Message
	return &inference.Response{
		Message: inference.Message{Role: first.Role, Content: first.Content},
		Usage: inference.Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
			TotalTokens:      out.Usage.TotalTokens,
		},
		Provider: "openai",
		Latency:  time.Since(start),
	}, nil
}
