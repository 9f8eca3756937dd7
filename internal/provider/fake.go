package provider

import (
	"context"
	"sync"

	"github.com/straja-ai/mailsieve/internal/inference"
)

// FakeProvider returns a canned reply and records every request.
type FakeProvider struct {
	ResponseText string
	Error        error

	mu       sync.Mutex
	requests []*inference.Request
}

func (f *FakeProvider) ChatCompletion(ctx context.Context, req *inference.Request) (*inference.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.Error != nil {
		return nil, f.Error
	}

	return &inference.Response{
		Message: inference.Message{
			Role:    "assistant",
			Content: f.ResponseText,
		},
		Usage: inference.Usage{
			PromptTokens:     2,
			CompletionTokens: 3,
			TotalTokens:      5,
		},
		Provider: "fake",
	}, nil
}

// Requests returns the requests seen so far.
func (f *FakeProvider) Requests() []*inference.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*inference.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

func NewFake(response string) *FakeProvider {
	return &FakeProvider{ResponseText: response}
}
