package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AnthropicVersion is sent on every Messages API request.
const AnthropicVersion = "2023-06-01"

// DefaultAnthropicBaseURL is used when Config.BaseURL is empty.
const DefaultAnthropicBaseURL = "https://api.anthropic.com"

// ErrNotConfigured is returned when a client has no API key.
var ErrNotConfigured = errors.New("ai: api key not configured")

var errEmptyContent = errors.New("empty response content")

// Config describes how to reach the Anthropic Messages API.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Request is a single-turn Messages call.
type Request struct {
	Model     string
	MaxTokens int
	System    string
	User      string
}

// Client sends single-turn requests to the Messages API.
type Client struct {
	cfg  Config
	opts options
}

// NewClient constructs a Client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAnthropicBaseURL
	}
	return &Client{cfg: cfg, opts: newOptions(cfg.Timeout, opts)}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.cfg.APIKey) != ""
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends req and returns the first text block of the reply.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if req.Model == "" {
		return "", errors.New("ai: model is required")
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = 1024
	}

	payload, err := json.Marshal(messagesRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		System:    req.System,
		Messages:  []message{{Role: "user", Content: req.User}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal messages request: %w", err)
	}

	var text string
	err = c.opts.retry.do(ctx, "anthropic messages", func() error {
		var err error
		text, err = c.completeOnce(ctx, payload)
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (c *Client) completeOnce(ctx context.Context, payload []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", AnthropicVersion)

	resp, err := c.opts.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newStatusError(resp, body)
	}

	var decoded messagesResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("anthropic error %s: %s", decoded.Error.Type, decoded.Error.Message)
	}
	for _, block := range decoded.Content {
		if block.Type == "text" || block.Type == "" {
			if text := strings.TrimSpace(block.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", errEmptyContent
}
