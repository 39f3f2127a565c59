package captchasolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/menta2k/captcha-solver/pkg/types"
)

// stubClient is a canned inference backend for tests.
type stubClient struct {
	answer string
	err    error
	calls  int
	last   types.ChallengeRequest
}

func (s *stubClient) Answer(_ context.Context, req types.ChallengeRequest) (string, error) {
	s.calls++
	s.last = req
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 200, 255})
		}
	}

	return img
}

// writeTestPNG writes a generated PNG under dir and returns its path.
func writeTestPNG(t *testing.T, dir string, width, height int) string {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(width, height)); err != nil {
		t.Fatalf("failed to encode test PNG: %v", err)
	}

	path := filepath.Join(dir, "captcha.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write test PNG: %v", err)
	}
	return path
}

func newStubSolver(t *testing.T, stub *stubClient) *Solver {
	t.Helper()

	solver, err := NewWithConfig(Config{
		Client: stub,
		Logger: log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("NewWithConfig failed: %v", err)
	}
	return solver
}

func TestNewWithConfigDefaults(t *testing.T) {
	stub := &stubClient{}
	solver := newStubSolver(t, stub)

	if solver.client == nil {
		t.Error("client component is nil")
	}
	if solver.preparer == nil {
		t.Error("preparer component is nil")
	}
	if solver.logger == nil {
		t.Error("logger component is nil")
	}
	if solver.maxTokens != DefaultMaxTokens {
		t.Errorf("expected max tokens %d, got %d", DefaultMaxTokens, solver.maxTokens)
	}
	if solver.temperature != DefaultTemperature {
		t.Errorf("expected temperature %v, got %v", DefaultTemperature, solver.temperature)
	}
	if solver.detail != DefaultDetail {
		t.Errorf("expected detail %s, got %s", DefaultDetail, solver.detail)
	}
}

func TestNewWithConfigUnknownBackend(t *testing.T) {
	_, err := NewWithConfig(Config{Backend: "bedrock"})
	if err == nil {
		t.Error("expected an error for an unknown backend")
	}
}

func TestSolveEndToEnd(t *testing.T) {
	path := writeTestPNG(t, t.TempDir(), 10, 4)
	stub := &stubClient{answer: "Q7K9"}
	solver := newStubSolver(t, stub)

	answer, err := solver.Solve(context.Background(), path, types.ChallengeText)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if answer != "Q7K9" {
		t.Errorf("expected Q7K9, got %q", answer)
	}

	if stub.calls != 1 {
		t.Fatalf("expected exactly one inference call, got %d", stub.calls)
	}
	if stub.last.Image.MIME != "image/png" {
		t.Errorf("expected image/png, got %s", stub.last.Image.MIME)
	}
	if !strings.HasPrefix(stub.last.Image.DataURI(), "data:image/png;base64,") {
		t.Errorf("unexpected data URI: %.40s", stub.last.Image.DataURI())
	}
	if !strings.Contains(stub.last.Instruction, "alphanumeric characters") {
		t.Errorf("text instruction not selected: %.60s", stub.last.Instruction)
	}
	if stub.last.MaxTokens != DefaultMaxTokens {
		t.Errorf("expected max tokens %d, got %d", DefaultMaxTokens, stub.last.MaxTokens)
	}
	if stub.last.Temperature != DefaultTemperature {
		t.Errorf("expected temperature %v, got %v", DefaultTemperature, stub.last.Temperature)
	}
	if stub.last.Detail != DefaultDetail {
		t.Errorf("expected detail %s, got %s", DefaultDetail, stub.last.Detail)
	}
}

func TestSolveTrimsAnswer(t *testing.T) {
	path := writeTestPNG(t, t.TempDir(), 8, 8)
	stub := &stubClient{answer: "  AB12 \n"}
	solver := newStubSolver(t, stub)

	answer, err := solver.Solve(context.Background(), path, types.ChallengeText)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if answer != "AB12" {
		t.Errorf("expected trimmed AB12, got %q", answer)
	}
}

func TestSolveMissingFileSkipsInference(t *testing.T) {
	stub := &stubClient{answer: "should not be reached"}
	solver := newStubSolver(t, stub)

	_, err := solver.Solve(context.Background(), filepath.Join(t.TempDir(), "nope.png"), types.ChallengeText)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if stub.calls != 0 {
		t.Errorf("missing file must not reach the backend, got %d calls", stub.calls)
	}
}

func TestSolveChallengeTypeTemplates(t *testing.T) {
	path := writeTestPNG(t, t.TempDir(), 8, 8)

	tests := []struct {
		challengeType types.ChallengeType
		want          string
	}{
		{types.ChallengeText, "alphanumeric characters"},
		{types.ChallengeMath, "numeric result"},
		{types.ChallengeObject, "identify specific objects"},
		{"puzzle", "alphanumeric characters"}, // unrecognized falls back to text
		{"", "alphanumeric characters"},
	}

	for _, tt := range tests {
		stub := &stubClient{answer: "x"}
		solver := newStubSolver(t, stub)

		if _, err := solver.Solve(context.Background(), path, tt.challengeType); err != nil {
			t.Fatalf("Solve(%q) failed: %v", tt.challengeType, err)
		}
		if !strings.Contains(stub.last.Instruction, tt.want) {
			t.Errorf("Solve(%q): instruction missing %q: %.60s", tt.challengeType, tt.want, stub.last.Instruction)
		}
	}
}

func TestSolveWithInstruction(t *testing.T) {
	path := writeTestPNG(t, t.TempDir(), 8, 8)
	stub := &stubClient{answer: "yes"}
	solver := newStubSolver(t, stub)

	const custom = "How many traffic lights are visible?"
	if _, err := solver.SolveWithInstruction(context.Background(), path, custom); err != nil {
		t.Fatalf("SolveWithInstruction failed: %v", err)
	}
	if stub.last.Instruction != custom {
		t.Errorf("custom instruction not passed verbatim: %q", stub.last.Instruction)
	}
}

func TestSolveWithEmptyInstructionUsesTextTemplate(t *testing.T) {
	path := writeTestPNG(t, t.TempDir(), 8, 8)
	stub := &stubClient{answer: "x"}
	solver := newStubSolver(t, stub)

	if _, err := solver.SolveWithInstruction(context.Background(), path, ""); err != nil {
		t.Fatalf("SolveWithInstruction failed: %v", err)
	}
	if !strings.Contains(stub.last.Instruction, "alphanumeric characters") {
		t.Errorf("empty instruction should fall back to the text template: %.60s", stub.last.Instruction)
	}
}

func TestSolveInferenceFailure(t *testing.T) {
	path := writeTestPNG(t, t.TempDir(), 8, 8)
	stub := &stubClient{err: fmt.Errorf("%w: api error: Incorrect API key provided", ErrInference)}
	solver := newStubSolver(t, stub)

	answer, err := solver.Solve(context.Background(), path, types.ChallengeText)
	if !errors.Is(err, ErrInference) {
		t.Fatalf("expected ErrInference, got %v", err)
	}
	if answer != "" {
		t.Errorf("failed solve must return an empty answer, got %q", answer)
	}
}

func TestCleanAnswer(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"AB12", "AB12"},
		{"  AB12 \n", "AB12"},
		{"\"AB12\"", "AB12"},
		{"'42'", "42"},
		{"`AB12`", "AB12"},
		{"```\nAB12\n```", "AB12"},
		{"```text\nAB12\n```", "AB12"},
		{"", ""},
		{"\"", "\""}, // lone quote is kept
	}

	for _, tt := range tests {
		if got := cleanAnswer(tt.raw); got != tt.want {
			t.Errorf("cleanAnswer(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Errorf("GetVersion() = %s, want %s", GetVersion(), Version)
	}
	if Version == "" {
		t.Error("Version should not be empty")
	}
}

func BenchmarkSolve(b *testing.B) {
	dir := b.TempDir()
	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(60, 24)); err != nil {
		b.Fatal(err)
	}
	path := filepath.Join(dir, "captcha.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		b.Fatal(err)
	}

	solver, err := NewWithConfig(Config{
		Client: &stubClient{answer: "AB12"},
		Logger: log.New(io.Discard, "", 0),
	})
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := solver.Solve(context.Background(), path, types.ChallengeText); err != nil {
			b.Fatal(err)
		}
	}
}
