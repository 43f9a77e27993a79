// Package ai provides a client for OpenAI-compatible chat-completion
// endpoints. One client covers every supported backend; backends differ
// only in base URL and default model.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Backend selects which generation endpoint the client targets.
type Backend string

const (
	BackendOpenAI Backend = "openai"
	BackendGitHub Backend = "github"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultGitHubBaseURL = "https://models.github.ai/inference"

	defaultOpenAIModel = "gpt-4o-mini"
	defaultGitHubModel = "openai/gpt-5"

	// The study-plan prompt bundles the full document text plus structure
	// for every topic in one call, so the main budget is generous. The
	// probe stays short: it only answers "is the endpoint reachable".
	completionTimeout = 120 * time.Second
	probeTimeout      = 10 * time.Second
)

type Config struct {
	Backend   Backend
	APIKey    string
	BaseURL   string // overrides the backend default when set
	Model     string // overrides the backend default when set
	MaxTokens int
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Client struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	client      *http.Client
	probeClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai: API key is required")
	}

	baseURL := cfg.BaseURL
	model := cfg.Model

	switch cfg.Backend {
	case BackendOpenAI, "":
		if baseURL == "" {
			baseURL = defaultOpenAIBaseURL
		}
		if model == "" {
			model = defaultOpenAIModel
		}
	case BackendGitHub:
		if baseURL == "" {
			baseURL = defaultGitHubBaseURL
		}
		if model == "" {
			model = defaultGitHubModel
		}
	default:
		return nil, fmt.Errorf("ai: unknown backend %q", cfg.Backend)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}

	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       model,
		maxTokens:   maxTokens,
		client:      &http.Client{Timeout: completionTimeout},
		probeClient: &http.Client{Timeout: probeTimeout},
	}, nil
}

// Model reports the model identifier requests are issued with.
func (c *Client) Model() string { return c.model }

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete issues a single chat-completion call and returns the raw
// completion text. Exactly one call per invocation; no retries.
func (c *Client) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation endpoint error (status %d): %s", resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return parsed.Choices[0].Message.Content, nil
}

// Probe checks endpoint reachability with a short timeout. Callers run it
// before Complete so a dead endpoint fails fast instead of burning the
// full completion budget.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.probeClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection probe failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("connection probe returned status %d", resp.StatusCode)
	}
	return nil
}
