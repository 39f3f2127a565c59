package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the application configuration
type Config struct {
	Backend    string           `json:"backend"`
	OpenAI     OpenAIConfig     `json:"openai"`
	Ollama     OllamaConfig     `json:"ollama"`
	Generation GenerationConfig `json:"generation"`
	Image      ImageConfig      `json:"image"`
}

// OpenAIConfig holds connection settings for OpenAI-compatible endpoints.
// The API key deliberately stays out of the file; it comes from the
// OPENAI_API_KEY environment variable or a flag.
type OpenAIConfig struct {
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// OllamaConfig holds connection settings for a local Ollama server
type OllamaConfig struct {
	URL            string `json:"url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// GenerationConfig holds the completion request parameters
type GenerationConfig struct {
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Detail      string  `json:"detail"`
}

// ImageConfig holds configuration for challenge image preparation
type ImageConfig struct {
	FetchTimeoutSeconds int    `json:"fetch_timeout_seconds"`
	MaxDimension        int    `json:"max_dimension"`
	SendFormat          string `json:"send_format"`
	JPEGQuality         int    `json:"jpeg_quality"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Backend: "openai",
		OpenAI: OpenAIConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o",
			TimeoutSeconds: 60,
		},
		Ollama: OllamaConfig{
			URL:            "http://localhost:11434",
			Model:          "llava",
			TimeoutSeconds: 60,
		},
		Generation: GenerationConfig{
			MaxTokens:   50,
			Temperature: 0.1,
			Detail:      "high",
		},
		Image: ImageConfig{
			FetchTimeoutSeconds: 10,
			MaxDimension:        0,
			SendFormat:          "png",
			JPEGQuality:         85,
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Backend != "openai" && c.Backend != "ollama" {
		return fmt.Errorf("backend must be openai or ollama")
	}

	if c.Generation.MaxTokens < 1 {
		return fmt.Errorf("generation.max_tokens must be positive")
	}

	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("generation.temperature must be between 0 and 2")
	}

	switch c.Generation.Detail {
	case "low", "high", "auto":
	default:
		return fmt.Errorf("generation.detail must be low, high or auto")
	}

	if c.Image.FetchTimeoutSeconds < 1 {
		return fmt.Errorf("image.fetch_timeout_seconds must be positive")
	}

	if c.Image.MaxDimension < 0 {
		return fmt.Errorf("image.max_dimension must not be negative")
	}

	switch c.Image.SendFormat {
	case "png", "jpg", "jpeg":
	default:
		return fmt.Errorf("image.send_format must be png, jpg or jpeg")
	}

	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		return fmt.Errorf("image.jpeg_quality must be between 1 and 100")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "captcha-solver", "config.json")
}
