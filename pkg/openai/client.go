// Package openai implements the inference backend for OpenAI-compatible
// chat completion APIs (api.openai.com, llama.cpp server, vLLM and
// similar gateways).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/menta2k/captcha-solver/pkg/client"
	"github.com/menta2k/captcha-solver/pkg/types"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o"
	DefaultTimeout = 60 * time.Second

	userAgent = "captcha-solver/1.0"
)

// Config holds the connection settings for an OpenAI-compatible endpoint.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1" or a
	// local llama.cpp server's "http://localhost:8080/v1".
	BaseURL string

	// APIKey authenticates the request. When empty, the OPENAI_API_KEY
	// environment variable is used instead.
	APIKey string

	// Model names the multimodal model to query.
	Model string

	// Timeout bounds a single completion round-trip. It applies only
	// when the caller's context carries no deadline of its own.
	Timeout time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// OpenAI-compatible message format
type message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []contentPart
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []choice `json:"choices"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewClient creates a client for an OpenAI-compatible endpoint. Missing
// fields fall back to defaults; the API key falls back to OPENAI_API_KEY.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key not provided")
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
		}
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
	}, nil
}

// Answer sends the challenge image and instruction as a single user
// message and returns the text of the first completion choice.
func (c *Client) Answer(ctx context.Context, req types.ChallengeRequest) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	content := []contentPart{
		{
			Type: "text",
			Text: req.Instruction,
		},
		{
			Type: "image_url",
			ImageURL: &imageURL{
				URL:    req.Image.DataURI(),
				Detail: req.Detail,
			},
		},
	}

	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{
				Role:    "user",
				Content: content,
			},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      false,
	}

	respBody, err := c.sendRequest(ctx, "/chat/completions", payload)
	if err != nil {
		return "", err
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", client.ErrInference, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", client.ErrInference)
	}

	text, ok := extractText(resp.Choices[0].Message.Content)
	if !ok {
		return "", fmt.Errorf("%w: no text content in response", client.ErrInference)
	}

	return strings.TrimSpace(text), nil
}

func (c *Client) sendRequest(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal request: %v", client.ErrInference, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", client.ErrInference, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to send request: %v", client.ErrInference, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", client.ErrInference, err)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope errorEnvelope
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
			return nil, fmt.Errorf("%w: api error: %s", client.ErrInference, envelope.Error.Message)
		}
		return nil, fmt.Errorf("%w: server returned status %d: %s", client.ErrInference, resp.StatusCode, string(body))
	}

	return body, nil
}

// extractText handles both string and array content formats; llama.cpp
// and some gateways return the latter.
func extractText(content interface{}) (string, bool) {
	switch v := content.(type) {
	case string:
		return v, true
	case []interface{}:
		for _, item := range v {
			if partMap, ok := item.(map[string]interface{}); ok {
				if text, ok := partMap["text"].(string); ok && text != "" {
					return text, true
				}
			}
		}
	}
	return "", false
}
