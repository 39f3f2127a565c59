package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	captchasolver "github.com/menta2k/captcha-solver"
	"github.com/menta2k/captcha-solver/internal/config"
	"github.com/menta2k/captcha-solver/pkg/types"
)

func main() {
	var in, challengeType, instruction string
	var backend, url, model, apiKey string
	var configPath string
	var initConfig bool
	var maxTokens, timeout int
	var temperature float64
	var detail string
	var sendFmt string
	var sendSize, sendQ int

	flag.StringVar(&in, "in", "", "challenge image path or URL (jpg/png/gif/webp)")
	flag.StringVar(&challengeType, "type", "text", "challenge type: text|math|object")
	flag.StringVar(&instruction, "prompt", "", "custom instruction sent instead of the -type template")
	flag.StringVar(&backend, "backend", "", "backend to use: openai or ollama")
	flag.StringVar(&url, "url", "", "server URL (defaults: openai=https://api.openai.com/v1, ollama=http://localhost:11434)")
	flag.StringVar(&model, "model", "", "model name (defaults: openai=gpt-4o, ollama=llava)")
	flag.StringVar(&apiKey, "key", "", "API key for OpenAI-compatible endpoints (defaults to OPENAI_API_KEY)")
	flag.StringVar(&configPath, "config", "", "config file path (default ~/.config/captcha-solver/config.json)")
	flag.BoolVar(&initConfig, "initconfig", false, "write the default config file and exit")

	flag.IntVar(&maxTokens, "maxtokens", 0, "completion token limit (0 = config value)")
	flag.Float64Var(&temperature, "temp", 0, "sampling temperature (0 = config value)")
	flag.StringVar(&detail, "detail", "", "image detail level: low|high|auto")
	flag.IntVar(&timeout, "timeout", 0, "inference timeout in seconds (0 = config value)")

	flag.StringVar(&sendFmt, "sendfmt", "", "format sent to the model after a downscale: jpg|png")
	flag.IntVar(&sendSize, "sendsize", -1, "max long side sent to the model (px), 0=original, -1=config value")
	flag.IntVar(&sendQ, "sendq", 0, "JPEG quality for the downscaled image (1-100)")

	flag.Parse()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: error loading .env file: %v", err)
	}

	if initConfig {
		path := configPath
		if path == "" {
			path = config.GetConfigPath()
		}
		if err := config.Default().SaveToFile(path); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Println("wrote", path)
		return
	}

	if in == "" {
		log.Fatalf("usage: %s -in captcha.png|URL [-type text|math|object] [-prompt instruction] [-backend openai|ollama] [-url server_url] [-model name]", filepath.Base(os.Args[0]))
	}

	cfg := loadConfig(configPath)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Flags override the config file; zero values keep the config.
	if backend == "" {
		backend = cfg.Backend
	}
	if maxTokens == 0 {
		maxTokens = cfg.Generation.MaxTokens
	}
	if temperature == 0 {
		temperature = cfg.Generation.Temperature
	}
	if detail == "" {
		detail = cfg.Generation.Detail
	}
	if sendFmt == "" {
		sendFmt = cfg.Image.SendFormat
	}
	if sendSize < 0 {
		sendSize = cfg.Image.MaxDimension
	}
	if sendQ == 0 {
		sendQ = cfg.Image.JPEGQuality
	}

	solverCfg := captchasolver.Config{
		Backend:           backend,
		APIKey:            apiKey,
		MaxTokens:         maxTokens,
		Temperature:       temperature,
		Detail:            detail,
		FetchTimeout:      time.Duration(cfg.Image.FetchTimeoutSeconds) * time.Second,
		MaxImageDimension: sendSize,
		SendFormat:        sendFmt,
		JPEGQuality:       sendQ,
	}

	switch backend {
	case captchasolver.BackendOllama:
		solverCfg.BaseURL = cfg.Ollama.URL
		solverCfg.Model = cfg.Ollama.Model
		solverCfg.InferenceTimeout = time.Duration(cfg.Ollama.TimeoutSeconds) * time.Second
	default:
		solverCfg.BaseURL = cfg.OpenAI.BaseURL
		solverCfg.Model = cfg.OpenAI.Model
		solverCfg.InferenceTimeout = time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second
	}
	if url != "" {
		solverCfg.BaseURL = url
	}
	if model != "" {
		solverCfg.Model = model
	}
	if timeout > 0 {
		solverCfg.InferenceTimeout = time.Duration(timeout) * time.Second
	}

	solver, err := captchasolver.NewWithConfig(solverCfg)
	if err != nil {
		log.Fatalf("Failed to create solver: %v", err)
	}

	var answer string
	if instruction != "" {
		answer, err = solver.SolveWithInstruction(context.Background(), in, instruction)
	} else {
		answer, err = solver.Solve(context.Background(), in, types.ChallengeType(challengeType))
	}
	if err != nil {
		log.Fatalf("Solve failed: %v", err)
	}

	fmt.Println(answer)
}

// loadConfig reads the config file when one exists; a missing default
// path silently falls back to the built-in defaults, an explicit -config
// path must load.
func loadConfig(path string) *config.Config {
	if path != "" {
		cfg, err := config.LoadFromFile(path)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		return cfg
	}

	defaultPath := config.GetConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.LoadFromFile(defaultPath)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", defaultPath, err)
		}
		return cfg
	}

	return config.Default()
}
