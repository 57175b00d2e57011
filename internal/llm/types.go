// Package llm talks to OpenAI-style chat completion endpoints, in both
// buffered and server-sent-event modes.
package llm

import (
	"context"
	"time"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-neutral chat completion request.
type Request struct {
	Messages  []Message
	Model     string // overrides Config.Model when set
	MaxTokens int    // overrides Config.MaxTokens when > 0
	Stream    bool   // prefer the streaming transport when the client has one
	RequestID string // used only for log correlation
}

// Usage is the token accounting returned by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the assembled model answer.
type Completion struct {
	Content      string
	Model        string
	RequestID    string
	FinishReason string
	Usage        *Usage
	Latency      time.Duration
	// Lifecycle is non-nil when the provider reported auction, bid or
	// verification details, or at least a request id or model.
	Lifecycle *Lifecycle
	Streamed  bool
	// Raw is the undecoded response body for buffered completions.
	Raw []byte
}

// Callbacks observe a streaming completion as it arrives.
type Callbacks struct {
	OnDelta func(delta string)
	OnEvent func(event LifecycleEvent)
}

// Client performs buffered completions.
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// StreamingClient additionally supports server-sent-event completions.
type StreamingClient interface {
	Client
	Stream(ctx context.Context, req Request, callbacks Callbacks) (*Completion, error)
}

// Config describes one endpoint.
type Config struct {
	Provider  string // label used in errors, logs and metrics
	BaseURL   string // e.g. https://api.ambient.xyz/v1
	APIKey    string
	Model     string // omitted from the request body when empty
	MaxTokens int    // omitted from the request body when zero
	Timeout   time.Duration
	Headers   map[string]string
}
