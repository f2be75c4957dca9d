// Package llm abstracts the model providers that answer chat requests.
// A Client turns a message list into a raw byte stream of
// newline-delimited JSON chunks; everything downstream (forwarding,
// parsing, persistence) is provider-agnostic.
package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/wayfarer-ai/wayfarer/internal/config"
)

// Message is one entry of the prompt sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a streaming chat completion request.
type ChatRequest struct {
	Messages  []Message
	MaxTokens int
}

// StreamResponse is a live model response. Body yields newline-delimited
// JSON chunks as the provider produces them; the caller owns closing it.
// Header carries the provider's response headers for passthrough.
type StreamResponse struct {
	Body   io.ReadCloser
	Header http.Header
}

// Client streams chat completions from a model provider.
type Client interface {
	// Stream starts a chat completion and returns the live response.
	// The returned body must be read promptly; it is not buffered.
	Stream(ctx context.Context, req ChatRequest) (*StreamResponse, error)

	// Model returns the provider's model identifier, for logging.
	Model() string
}

// New builds the client selected by cfg.Provider.
func New(cfg config.ModelConfig) (Client, error) {
	switch cfg.Provider {
	case "workersai":
		return NewWorkersAIClient(cfg)
	case "ollama":
		return NewOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
