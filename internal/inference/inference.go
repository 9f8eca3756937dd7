// Package inference holds the provider-neutral chat types used for
// classification reasoning.
package inference

import "time"

// Message is a normalized representation of a chat message.
type Message struct {
	Role    string
	Content string
}

// Request is a normalized chat request.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int64
}

// Usage holds token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response represents a normalized chat response.
type Response struct {
	Message  Message
	Usage    Usage
	Provider string
	Latency  time.Duration
}

// UserMessage is shorthand for a single user turn.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}
