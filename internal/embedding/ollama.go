package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama calls a local Ollama instance's /api/embeddings endpoint.
type Ollama struct {
	baseURL          string
	model            string
	client           *http.Client
	maxResponseBytes int64
}

// NewOllama creates an Ollama embedder. Empty values fall back to
// http://localhost:11434 and mxbai-embed-large.
func NewOllama(baseURL, model string, timeout time.Duration) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "mxbai-embed-large"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Ollama{
		baseURL:          strings.TrimSuffix(baseURL, "/"),
		model:            model,
		client:           &http.Client{Timeout: timeout},
		maxResponseBytes: 16 * 1024 * 1024,
	}
}

func (o *Ollama) Name() string { return "ollama-" + o.model }

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding json.RawMessage `json:"embedding"`
	Error     string          `json:"error"`
}

func (o *Ollama) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, err := o.embed(ctx, text)
	if err != nil {
		return nil, &Error{Provider: o.Name(), Err: err}
	}
	return vec, nil
}

func (o *Ollama) embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call ollama: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, o.maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(respBody)) > o.maxResponseBytes {
		return nil, fmt.Errorf("response exceeded limit (%d bytes)", o.maxResponseBytes)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama api error (status %d): %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", parsed.Error)
	}
	vec, err := decodeVector(parsed.Embedding)
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// decodeVector parses a JSON array of numbers, rejecting anything else.
func decodeVector(raw json.RawMessage) ([]float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrNoEmbeddings
	}
	var vec []float64
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, fmt.Errorf("embedding is not a numeric array: %w", err)
	}
	if err := checkVector(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
