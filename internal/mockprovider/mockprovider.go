// Package mockprovider serves a local stand-in for Ollama and
// OpenAI-compatible embedding and chat endpoints. Embeddings come from the
// deterministic hashing embedder, so the same text always gets the same vector.
package mockprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/straja-ai/mailsieve/internal/embedding"
)

const (
	defaultPort    = 18080
	defaultDelayMS = 0
	defaultDim     = 256
)

// StartMockProvider launches the mock server.
// If addr is empty, it listens on 127.0.0.1:MOCK_PROVIDER_PORT (default 18080).
// MOCK_DELAY_MS adds latency to chat replies; MOCK_EMBED_DIM sets the vector size.
// It returns a shutdown function and the base URL (e.g., http://127.0.0.1:18080).
func StartMockProvider(addr string) (func(context.Context) error, string, error) {
	if strings.TrimSpace(addr) == "" {
		port := strings.TrimSpace(os.Getenv("MOCK_PROVIDER_PORT"))
		if port == "" {
			port = fmt.Sprintf("%d", defaultPort)
		}
		addr = "127.0.0.1:" + port
	}

	delay := envInt("MOCK_DELAY_MS", defaultDelayMS)
	hasher := embedding.NewHashing(envInt("MOCK_EMBED_DIM", defaultDim))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("mock upstream request method=%s path=%s", r.Method, r.URL.Path)

		p := r.URL.Path
		if len(p) > 1 {
			p = strings.TrimSuffix(p, "/")
		}
		if r.Method != http.MethodPost {
			writeNotFoundJSON(w)
			return
		}

		switch p {
		case "/api/embeddings":
			writeOllamaEmbedding(w, r, hasher)
		case "/api/chat":
			writeOllamaChat(w, r, delay)
		case "/v1/embeddings", "/embeddings":
			writeOpenAIEmbedding(w, r, hasher)
		case "/v1/chat/completions", "/chat/completions":
			writeChatCompletion(w, r, delay)
		default:
			writeNotFoundJSON(w)
		}
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("mock provider server error: %v", err)
		}
	}()

	shutdown := func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	}

	baseURL := "http://" + ln.Addr().String()
	log.Printf("mock provider listening on %s (delay_ms=%d dim=%d)", baseURL, delay, hasher.Dim)
	return shutdown, baseURL, nil
}

func envInt(key string, def int) int {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeNotFoundJSON(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error": map[string]any{
			"message": "Not found",
			"type":    "invalid_request_error",
		},
	})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
}

func writeOllamaEmbedding(w http.ResponseWriter, r *http.Request, h *embedding.Hashing) {
	var req struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	vec, err := h.Embed(r.Context(), req.Prompt)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"embedding": vec})
}

func writeOpenAIEmbedding(w http.ResponseWriter, r *http.Request, h *embedding.Hashing) {
	var req struct {
		Model string `json:"model"`
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	vec, err := h.Embed(r.Context(), req.Input)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]any{"message": err.Error()}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"model":  req.Model,
		"data":   []map[string]any{{"index": 0, "object": "embedding", "embedding": vec}},
	})
}

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// mockReasoning answers according to the decision quoted in the prompt.
func mockReasoning(req chatRequest) string {
	var last string
	if n := len(req.Messages); n > 0 {
		last = req.Messages[n-1].Content
	}
	switch {
	case strings.Contains(last, `"discard"`):
		return "The message uses promotional language typical of unsolicited bulk email."
	case strings.Contains(last, `"forward"`):
		return "The message reads like ordinary personal or business correspondence."
	default:
		return "I'm a mock provider response."
	}
}

func writeOllamaChat(w http.ResponseWriter, r *http.Request, delayMS int) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	sleep(r.Context(), delayMS)
	writeJSON(w, http.StatusOK, map[string]any{
		"model":             req.Model,
		"created_at":        time.Now().UTC().Format(time.RFC3339Nano),
		"message":           map[string]string{"role": "assistant", "content": mockReasoning(req)},
		"done":              true,
		"prompt_eval_count": 5,
		"eval_count":        5,
	})
}

func writeChatCompletion(w http.ResponseWriter, r *http.Request, delayMS int) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, err)
		return
	}
	sleep(r.Context(), delayMS)

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      "chatcmpl-mock",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "mock-llm",
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]string{
					"role":    "assistant",
					"content": mockReasoning(req),
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     5,
			"completion_tokens": 5,
			"total_tokens":      10,
		},
	})
}

func sleep(ctx context.Context, ms int) {
	if ms <= 0 {
		return
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
