package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/straja-ai/mailsieve/internal/config"
	"github.com/straja-ai/mailsieve/internal/inference"
)

func chatRequest() *inference.Request {
	return &inference.Request{
		Model:     "m",
		System:    "be brief",
		Messages:  []inference.Message{inference.UserMessage("why spam?")},
		MaxTokens: 32,
	}
}

func TestOpenAIChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req openAIChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Fatalf("expected system message first, got %+v", req.Messages)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Mentions a prize."}}],"usage":{"prompt_tokens":4,"completion_tokens":3,"total_tokens":7}}`))
	}))
	defer srv.Close()

	resp, err := NewOpenAI(srv.URL, "k", time.Second, 0).ChatCompletion(context.Background(), chatRequest())
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Message.Content != "Mentions a prize." || resp.Usage.TotalTokens != 7 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestOpenAIChatCompletionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.URL, "k", time.Second, 0).ChatCompletion(context.Background(), chatRequest())
	if err == nil || !strings.Contains(err.Error(), "slow down") {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusTooManyRequests || se.Provider != "openai" {
		t.Fatalf("expected *StatusError with 429, got %#v", err)
	}
}

func TestOpenAIResponseLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.URL, "k", time.Second, 16).ChatCompletion(context.Background(), chatRequest())
	if err == nil || !strings.Contains(err.Error(), "exceeded limit") {
		t.Fatalf("expected size limit error, got %v", err)
	}
}

func TestOllamaChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Stream {
			t.Fatalf("expected non-streaming request")
		}
		_, _ = w.Write([]byte(`{"model":"m","message":{"role":"assistant","content":"Routine invoice."},"done":true,"prompt_eval_count":5,"eval_count":2}`))
	}))
	defer srv.Close()

	resp, err := NewOllama(srv.URL, time.Second).ChatCompletion(context.Background(), chatRequest())
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Message.Content != "Routine invoice." || resp.Usage.TotalTokens != 7 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestOllamaChatCompletionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, time.Second).ChatCompletion(context.Background(), chatRequest())
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("expected model error, got %v", err)
	}
}

func TestAnthropicChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"m","content":[{"type":"text","text":"Urgent wire transfer request."}],"stop_reason":"end_turn","usage":{"input_tokens":6,"output_tokens":4}}`))
	}))
	defer srv.Close()

	resp, err := NewAnthropic("k", srv.URL, time.Second).ChatCompletion(context.Background(), chatRequest())
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Message.Content != "Urgent wire transfer request." || resp.Usage.TotalTokens != 10 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestFakeProvider(t *testing.T) {
	f := NewFake("ok")
	resp, err := f.ChatCompletion(context.Background(), chatRequest())
	if err != nil || resp.Message.Content != "ok" {
		t.Fatalf("unexpected fake response %+v err=%v", resp, err)
	}
	if len(f.Requests()) != 1 {
		t.Fatalf("expected one recorded request")
	}

	f.Error = errors.New("down")
	if _, err := f.ChatCompletion(context.Background(), chatRequest()); err == nil {
		t.Fatalf("expected configured error")
	}
}

func TestFromConfig(t *testing.T) {
	p, err := FromConfig(config.ReasoningConfig{Type: "none"})
	if err != nil || p != nil {
		t.Fatalf("expected nil provider for none, got %v err=%v", p, err)
	}
	if _, err := FromConfig(config.ReasoningConfig{Type: "ollama"}); err != nil {
		t.Fatalf("ollama: %v", err)
	}
	if _, err := FromConfig(config.ReasoningConfig{Type: "anthropic", APIKeyEnv: "MAILSIEVE_TEST_EMPTY_KEY"}); err == nil {
		t.Fatalf("expected error for missing anthropic key")
	}
	if _, err := FromConfig(config.ReasoningConfig{Type: "oracle"}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
