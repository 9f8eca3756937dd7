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

// OpenAI calls an OpenAI-compatible /embeddings endpoint.
type OpenAI struct {
	baseURL          string
	apiKey           string
	model            string
	client           *http.Client
	maxResponseBytes int64
}

// NewOpenAI creates an OpenAI embedder.
func NewOpenAI(baseURL, apiKey, model string, timeout time.Duration, maxResponseBytes int64) *OpenAI {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if maxResponseBytes <= 0 {
		maxResponseBytes = 16 * 1024 * 1024
	}
	return &OpenAI{
		baseURL:          strings.TrimSuffix(baseURL, "/"),
		apiKey:           apiKey,
		model:            model,
		client:           &http.Client{Timeout: timeout},
		maxResponseBytes: maxResponseBytes,
	}
}

func (p *OpenAI) Name() string { return "openai-" + p.model }

type openAIEmbeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Index     int             `json:"index"`
		Embedding json.RawMessage `json:"embedding"`
	} `json:"data"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *OpenAI) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, err := p.embed(ctx, text)
	if err != nil {
		return nil, &Error{Provider: p.Name(), Err: err}
	}
	return vec, nil
}

func (p *OpenAI) embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(openAIEmbeddingRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call openai: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, p.maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read openai response: %w", err)
	}
	if int64(len(respBody)) > p.maxResponseBytes {
		return nil, fmt.Errorf("openai response exceeded limit (%d bytes)", p.maxResponseBytes)
	}

	if resp.StatusCode >= 400 {
		var errBody openAIErrorResponse
		if err := json.Unmarshal(respBody, &errBody); err != nil {
			return nil, fmt.Errorf("openai error status %d and failed to decode error body: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("openai error: %s (type=%s)", errBody.Error.Message, errBody.Error.Type)
	}

	var parsed openAIEmbeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, ErrNoEmbeddings
	}
	return decodeVector(parsed.Data[0].Embedding)
}
