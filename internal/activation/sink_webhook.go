package activation

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	eventHeader     = "X-Mailsieve-Event"
	signatureHeader = "X-Mailsieve-Signature"
)

// WebhookConfig describes one HTTP endpoint for decision events.
type WebhookConfig struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
	// Secret, when set, signs each body with HMAC-SHA256 in
	// X-Mailsieve-Signature as "sha256=<hex>".
	Secret     string
	MaxRetries uint64
	BaseDelay  time.Duration
}

// WebhookSink POSTs one event per request. Transport errors, 429 and 5xx
// answers are retried with exponential backoff; other 4xx fail at once.
type WebhookSink struct {
	cfg    WebhookConfig
	client *http.Client
}

func NewWebhookSink(cfg WebhookConfig) (*WebhookSink, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook url is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	hdr := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		hdr[k] = v
	}
	cfg.Headers = hdr
	return &WebhookSink{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (s *WebhookSink) Name() string { return "webhook:" + s.cfg.URL }

func (s *WebhookSink) Deliver(ctx context.Context, ev *Event) error {
	if ev == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	signature := ""
	if s.cfg.Secret != "" {
		signature = Sign(s.cfg.Secret, payload)
	}

	b := retry.WithMaxRetries(s.cfg.MaxRetries, retry.NewExponential(s.cfg.BaseDelay))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		return s.post(ctx, ev.ID, payload, signature)
	})
}

func (s *WebhookSink) post(ctx context.Context, id string, payload []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(eventHeader, id)
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("post: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	statusErr := fmt.Errorf("status %d body=%q", resp.StatusCode, body)
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return retry.RetryableError(statusErr)
	}
	return statusErr
}

func (s *WebhookSink) Close(context.Context) error {
	s.client.CloseIdleConnections()
	return nil
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a header produced by Sign in constant time.
func VerifySignature(secret string, body []byte, header string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(header))
}
