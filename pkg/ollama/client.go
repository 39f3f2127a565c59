// Package ollama implements the inference backend for a local Ollama
// server running a vision-capable model such as llava or minicpm-v.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/captcha-solver/pkg/client"
	"github.com/menta2k/captcha-solver/pkg/types"
)

const (
	DefaultURL     = "http://localhost:11434"
	DefaultModel   = "llava"
	DefaultTimeout = 60 * time.Second
)

// Config holds the connection settings for an Ollama server.
type Config struct {
	// URL points at the Ollama server. Any path component is stripped,
	// the SDK appends its own endpoints.
	URL string

	// Model names the vision model to query.
	Model string

	// Timeout bounds a single completion round-trip. It applies only
	// when the caller's context carries no deadline of its own.
	Timeout time.Duration
}

// Client wraps the Ollama API client
type Client struct {
	client *api.Client
	cfg    Config
}

// NewClient creates a new Ollama client
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	// Keep only scheme and host, the SDK appends paths like /api/chat.
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	return &Client{
		client: api.NewClient(baseURL, http.DefaultClient),
		cfg:    cfg,
	}, nil
}

// Answer sends the challenge image and instruction as a single user
// message and returns the model's reply.
func (c *Client) Answer(ctx context.Context, req types.ChallengeRequest) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	streamFalse := false

	options := map[string]any{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	chatReq := &api.ChatRequest{
		Model: c.cfg.Model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: req.Instruction,
				Images:  []api.ImageData{api.ImageData(req.Image.Data)},
			},
		},
		Stream:  &streamFalse,
		Options: options,
	}

	var responseContent string
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		responseContent = resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: ollama chat error: %v", client.ErrInference, err)
	}

	if responseContent == "" {
		return "", fmt.Errorf("%w: empty response from ollama", client.ErrInference)
	}

	return strings.TrimSpace(responseContent), nil
}
