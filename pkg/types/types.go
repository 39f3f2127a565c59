package types

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// ChallengeType selects which instruction template is used when asking the
// model about a CAPTCHA image.
type ChallengeType string

const (
	// ChallengeText asks for the visible characters (classic text CAPTCHA).
	ChallengeText ChallengeType = "text"
	// ChallengeMath asks for the result of a depicted arithmetic operation.
	ChallengeMath ChallengeType = "math"
	// ChallengeObject asks for the object identification the image requests.
	ChallengeObject ChallengeType = "object"
)

// EmbeddedImage is an image prepared for submission to a vision model: the
// raw bytes plus the MIME type they were declared with. OpenAI-style
// backends send it rendered as a data URI, Ollama-style backends send the
// bytes directly.
type EmbeddedImage struct {
	MIME string
	Data []byte
}

// Base64 returns the standard-encoding base64 payload.
func (e EmbeddedImage) Base64() string {
	return base64.StdEncoding.EncodeToString(e.Data)
}

// DataURI renders the image as a self-describing data URI of the form
// data:<mime>;base64,<payload>.
func (e EmbeddedImage) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", e.MIME, e.Base64())
}

// ParseDataURI inverts DataURI. It accepts only base64-encoded data URIs.
func ParseDataURI(uri string) (EmbeddedImage, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return EmbeddedImage{}, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return EmbeddedImage{}, fmt.Errorf("malformed data URI: missing payload")
	}
	mime, found := strings.CutSuffix(meta, ";base64")
	if !found {
		return EmbeddedImage{}, fmt.Errorf("malformed data URI: not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return EmbeddedImage{}, fmt.Errorf("malformed data URI payload: %w", err)
	}
	return EmbeddedImage{MIME: mime, Data: data}, nil
}

// ChallengeRequest is one complete question for a vision model: the prepared
// image, the instruction to apply to it, and the generation parameters.
type ChallengeRequest struct {
	Image       EmbeddedImage
	Instruction string
	// MaxTokens caps the length of the generated answer.
	MaxTokens int
	// Temperature controls sampling randomness; CAPTCHA answers want it low.
	Temperature float64
	// Detail is the image resolution hint for backends that support one
	// ("low", "high" or "auto").
	Detail string
}
