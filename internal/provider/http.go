package provider

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

const defaultMaxResponseBytes = 4 * 1024 * 1024

// StatusError is a non-2xx answer from a chat backend.
type StatusError struct {
	Provider string
	Status   int
	Message  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.Status, e.Message)
}

// jsonClient posts JSON to one backend and reads a bounded JSON answer.
type jsonClient struct {
	name             string
	baseURL          string
	headers          map[string]string
	client           *http.Client
	maxResponseBytes int64
	// errorMessage pulls a human-readable message out of an error body.
	errorMessage func(body []byte) string
}

func newJSONClient(name, baseURL string, timeout time.Duration, maxResponseBytes int64) *jsonClient {
	if maxResponseBytes <= 0 {
		maxResponseBytes = defaultMaxResponseBytes
	}
	return &jsonClient{
		name:             name,
		baseURL:          strings.TrimSuffix(baseURL, "/"),
		headers:          map[string]string{},
		client:           &http.Client{Timeout: timeout},
		maxResponseBytes: maxResponseBytes,
	}
}

func (c *jsonClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", c.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return fmt.Errorf("read %s response (status %d): %w", c.name, resp.StatusCode, err)
	}
	if int64(len(respBody)) > c.maxResponseBytes {
		return fmt.Errorf("%s response exceeded limit (%d bytes)", c.name, c.maxResponseBytes)
	}

	if resp.StatusCode >= 400 {
		msg := ""
		if c.errorMessage != nil {
			msg = c.errorMessage(respBody)
		}
		if msg == "" {
			msg = strings.TrimSpace(string(respBody[:min(len(respBody), 200)]))
		}
		return &StatusError{Provider: c.name, Status: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.name, err)
	}
	return nil
}
