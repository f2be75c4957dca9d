package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/wayfarer-ai/wayfarer/internal/config"
	"github.com/wayfarer-ai/wayfarer/internal/httpkit"
)

// OllamaClient streams completions from a local Ollama server. It uses
// the generate endpoint, whose stream chunks carry the text in a
// top-level "response" field, the same framing Workers AI emits.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaClient builds an Ollama client from cfg.
func NewOllamaClient(cfg config.ModelConfig) (*OllamaClient, error) {
	if cfg.Ollama.URL == "" {
		return nil, fmt.Errorf("ollama: url is required")
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(cfg.Ollama.URL, "/"),
		model:   cfg.Name,
		client:  httpkit.NewClient(httpkit.WithTimeout(0)),
	}, nil
}

// Model returns the configured model identifier.
func (c *OllamaClient) Model() string { return c.model }

// Stream starts a streaming generation.
func (c *OllamaClient) Stream(ctx context.Context, req ChatRequest) (*StreamResponse, error) {
	payload := struct {
		Model   string         `json:"model"`
		Prompt  string         `json:"prompt"`
		System  string         `json:"system,omitempty"`
		Stream  bool           `json:"stream"`
		Options map[string]any `json:"options,omitempty"`
	}{
		Model:  c.model,
		Stream: true,
	}
	payload.System, payload.Prompt = flattenMessages(req.Messages)
	if req.MaxTokens > 0 {
		payload.Options = map[string]any{"num_predict": req.MaxTokens}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ollama: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := httpkit.ReadErrorBody(resp.Body, 2048)
		return nil, fmt.Errorf("ollama: status %d: %s", resp.StatusCode, msg)
	}

	return &StreamResponse{Body: resp.Body, Header: resp.Header}, nil
}

// flattenMessages splits the prompt into the system instruction and a
// transcript of the remaining turns, since the generate endpoint takes a
// single prompt string rather than a message list.
func flattenMessages(msgs []Message) (system, prompt string) {
	var b strings.Builder
	for _, m := range msgs {
		if m.Role == "system" && system == "" {
			system = m.Content
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return system, b.String()
}
