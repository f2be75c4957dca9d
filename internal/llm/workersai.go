package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wayfarer-ai/wayfarer/internal/config"
	"github.com/wayfarer-ai/wayfarer/internal/httpkit"
)

const workersAIBaseURL = "https://api.cloudflare.com/client/v4"

// WorkersAIClient streams chat completions from Cloudflare Workers AI.
type WorkersAIClient struct {
	accountID string
	apiToken  string
	model     string
	baseURL   string
	client    *http.Client
}

// NewWorkersAIClient builds a Workers AI client from cfg.
func NewWorkersAIClient(cfg config.ModelConfig) (*WorkersAIClient, error) {
	if cfg.WorkersAI.AccountID == "" || cfg.WorkersAI.APIToken == "" {
		return nil, fmt.Errorf("workersai: account_id and api_token are required")
	}
	return &WorkersAIClient{
		accountID: cfg.WorkersAI.AccountID,
		apiToken:  cfg.WorkersAI.APIToken,
		model:     cfg.Name,
		baseURL:   workersAIBaseURL,
		// No overall timeout: the body is a long-lived token stream.
		client: httpkit.NewClient(httpkit.WithTimeout(0)),
	}, nil
}

// Model returns the configured model identifier.
func (c *WorkersAIClient) Model() string { return c.model }

// Stream starts a streaming run of the configured model.
func (c *WorkersAIClient) Stream(ctx context.Context, req ChatRequest) (*StreamResponse, error) {
	payload := struct {
		Messages  []Message `json:"messages"`
		Stream    bool      `json:"stream"`
		MaxTokens int       `json:"max_tokens,omitempty"`
	}{
		Messages:  req.Messages,
		Stream:    true,
		MaxTokens: req.MaxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("workersai: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.baseURL, c.accountID, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("workersai: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("workersai: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := httpkit.ReadErrorBody(resp.Body, 2048)
		return nil, fmt.Errorf("workersai: status %d: %s", resp.StatusCode, msg)
	}

	return &StreamResponse{Body: resp.Body, Header: resp.Header}, nil
}
