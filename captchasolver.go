// Package captchasolver answers image CAPTCHA challenges with a
// multimodal language model.
//
// The package takes a challenge image (a local file or an HTTP(S) URL),
// embeds it into a chat completion request together with a short
// instruction matched to the challenge type, and returns the model's
// answer as plain text.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		captchasolver "github.com/menta2k/captcha-solver"
//		"github.com/menta2k/captcha-solver/pkg/types"
//	)
//
//	func main() {
//		// Reads the API key from OPENAI_API_KEY when empty.
//		solver, err := captchasolver.New("")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		answer, err := solver.Solve(context.Background(), "captcha.png", types.ChallengeText)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		fmt.Println("Answer:", answer)
//	}
//
// The package consists of three main components:
//
// 1. Preparer (pkg/processing): Validates and encodes challenge images
// 2. Prompt (pkg/prompt): Selects the instruction for a challenge type
// 3. Backends (pkg/openai, pkg/ollama): Invoke the multimodal model
//
// Failures are reported through typed sentinel errors (ErrNotFound,
// ErrUnsupportedFormat, ErrIO, ErrFetch, ErrInference) so callers can
// distinguish a missing file from a refused inference request with
// errors.Is.
package captchasolver

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/menta2k/captcha-solver/pkg/client"
	"github.com/menta2k/captcha-solver/pkg/ollama"
	"github.com/menta2k/captcha-solver/pkg/openai"
	"github.com/menta2k/captcha-solver/pkg/processing"
	"github.com/menta2k/captcha-solver/pkg/prompt"
	"github.com/menta2k/captcha-solver/pkg/types"
)

// Version of the captcha solver library
const Version = "1.0.0"

// Supported inference backends.
const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
)

// Generation defaults, tuned for short deterministic answers.
const (
	DefaultMaxTokens   = 50
	DefaultTemperature = 0.1
	DefaultDetail      = "high"
)

// Typed failures, re-exported so callers only import this package.
var (
	ErrNotFound          = processing.ErrNotFound
	ErrUnsupportedFormat = processing.ErrUnsupportedFormat
	ErrIO                = processing.ErrIO
	ErrFetch             = processing.ErrFetch
	ErrInference         = client.ErrInference
)

// Config controls solver construction. The zero value plus an API key
// yields an OpenAI-backed solver with the generation defaults.
type Config struct {
	// Backend selects the inference implementation: BackendOpenAI
	// (default) or BackendOllama. Ignored when Client is set.
	Backend string

	// BaseURL overrides the backend endpoint. Empty selects the
	// backend's default (api.openai.com or localhost:11434).
	BaseURL string

	// APIKey authenticates against OpenAI-compatible endpoints. Falls
	// back to the OPENAI_API_KEY environment variable. Unused by the
	// ollama backend.
	APIKey string

	// Model overrides the backend's default model.
	Model string

	// MaxTokens, Temperature and Detail tune the completion request.
	// Zero values select the package defaults.
	MaxTokens   int
	Temperature float64
	Detail      string

	// FetchTimeout bounds remote image downloads.
	FetchTimeout time.Duration

	// InferenceTimeout bounds a completion round-trip when the caller's
	// context has no deadline.
	InferenceTimeout time.Duration

	// MaxImageDimension downscales oversized challenge images before
	// sending. Zero keeps images byte-exact.
	MaxImageDimension int

	// SendFormat and JPEGQuality control re-encoding after a downscale.
	SendFormat  string
	JPEGQuality int

	// Client overrides the backend entirely, mainly for tests.
	Client client.VisionClient

	// Logger receives a diagnostic line for each failed solve attempt.
	// Nil selects the standard logger; pass a logger writing to
	// io.Discard to silence the solver.
	Logger *log.Logger
}

// Solver answers CAPTCHA challenges end to end: prepare the image, pick
// the instruction, query the model.
type Solver struct {
	client      client.VisionClient
	preparer    *processing.Preparer
	maxTokens   int
	temperature float64
	detail      string
	logger      *log.Logger
}

// New creates a Solver backed by the OpenAI API with default settings.
// An empty apiKey falls back to the OPENAI_API_KEY environment variable.
func New(apiKey string) (*Solver, error) {
	return NewWithConfig(Config{APIKey: apiKey})
}

// NewWithConfig creates a Solver with custom configuration.
func NewWithConfig(cfg Config) (*Solver, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Detail == "" {
		cfg.Detail = DefaultDetail
	}

	backend := cfg.Client
	if backend == nil {
		var err error
		switch cfg.Backend {
		case "", BackendOpenAI:
			backend, err = openai.NewClient(openai.Config{
				BaseURL: cfg.BaseURL,
				APIKey:  cfg.APIKey,
				Model:   cfg.Model,
				Timeout: cfg.InferenceTimeout,
			})
		case BackendOllama:
			backend, err = ollama.NewClient(ollama.Config{
				URL:     cfg.BaseURL,
				Model:   cfg.Model,
				Timeout: cfg.InferenceTimeout,
			})
		default:
			err = fmt.Errorf("unknown backend %q", cfg.Backend)
		}
		if err != nil {
			return nil, err
		}
	}

	preparer := processing.NewWithConfig(processing.Config{
		FetchTimeout: cfg.FetchTimeout,
		MaxDimension: cfg.MaxImageDimension,
		SendFormat:   cfg.SendFormat,
		JPEGQuality:  cfg.JPEGQuality,
	})

	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	return &Solver{
		client:      backend,
		preparer:    preparer,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		detail:      cfg.Detail,
		logger:      cfg.Logger,
	}, nil
}

// Solve answers the challenge at ref (a local path or an HTTP(S) URL)
// using the instruction template for the given challenge type. An
// unrecognized type falls back to the text template.
func (s *Solver) Solve(ctx context.Context, ref string, challengeType types.ChallengeType) (string, error) {
	return s.solve(ctx, ref, challengeType, "")
}

// SolveWithInstruction answers the challenge at ref using a caller
// supplied instruction instead of the built-in templates. An empty
// instruction falls back to the text template.
func (s *Solver) SolveWithInstruction(ctx context.Context, ref, instruction string) (string, error) {
	return s.solve(ctx, ref, types.ChallengeText, instruction)
}

func (s *Solver) solve(ctx context.Context, ref string, challengeType types.ChallengeType, custom string) (string, error) {
	img, err := s.preparer.Prepare(ref)
	if err != nil {
		s.logf("image preparation failed for %s: %v", ref, err)
		return "", err
	}

	req := types.ChallengeRequest{
		Image:       img,
		Instruction: prompt.Select(challengeType, custom),
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		Detail:      s.detail,
	}

	raw, err := s.client.Answer(ctx, req)
	if err != nil {
		s.logf("inference failed for %s: %v", ref, err)
		return "", err
	}

	return cleanAnswer(raw), nil
}

func (s *Solver) logf(format string, args ...interface{}) {
	s.logger.Printf(format, args...)
}

// cleanAnswer strips the decorations chatty models wrap around short
// answers: code fences, a leading language tag, and matching quotes.
func cleanAnswer(raw string) string {
	answer := strings.TrimSpace(raw)

	if strings.HasPrefix(answer, "```") {
		if i := strings.Index(answer, "\n"); i >= 0 {
			answer = answer[i+1:]
		} else {
			answer = strings.TrimPrefix(answer, "```")
		}
		if j := strings.LastIndex(answer, "```"); j >= 0 {
			answer = answer[:j]
		}
		answer = strings.TrimSpace(answer)
	}
	answer = strings.Trim(answer, "`")

	for _, q := range []string{`"`, `'`} {
		if len(answer) >= 2 && strings.HasPrefix(answer, q) && strings.HasSuffix(answer, q) {
			answer = answer[1 : len(answer)-1]
			break
		}
	}

	return strings.TrimSpace(answer)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
