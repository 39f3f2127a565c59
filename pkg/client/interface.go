// Package client defines the backend contract shared by all inference
// implementations.
package client

import (
	"context"
	"errors"

	"github.com/menta2k/captcha-solver/pkg/types"
)

// ErrInference wraps every backend failure: transport errors, non-2xx
// responses, API error envelopes and empty completions. Callers match it
// with errors.Is.
var ErrInference = errors.New("inference request failed")

// VisionClient answers a single image challenge. Implementations send the
// embedded image together with the instruction to a multimodal model and
// return the raw text of the first completion.
type VisionClient interface {
	Answer(ctx context.Context, req types.ChallengeRequest) (string, error)
}
