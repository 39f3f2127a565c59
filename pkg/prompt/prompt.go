// Package prompt holds the instruction templates sent to the vision model
// for each kind of CAPTCHA challenge.
package prompt

import "github.com/menta2k/captcha-solver/pkg/types"

// TextTemplate extracts the visible characters from a text CAPTCHA.
const TextTemplate = `Analyze this CAPTCHA image and extract ONLY the visible text/code.

Rules:
- Return ONLY the visible alphanumeric characters
- Ignore any noise, distortion or background elements
- Do NOT include explanations, punctuation or additional text
- Preserve the original upper/lower case of the characters
- If the characters are hard to read, give your best guess

Expected answer: the code/text only`

// MathTemplate solves an arithmetic CAPTCHA.
const MathTemplate = `This CAPTCHA image shows a simple arithmetic operation.

Rules:
- Solve the operation shown in the image
- Return ONLY the numeric result
- Typical operations: addition (+), subtraction (-), multiplication (x, *)

Expected answer: the resulting number only`

// ObjectTemplate answers an object-identification CAPTCHA.
const ObjectTemplate = `This CAPTCHA image asks to identify specific objects.

Rules:
- Identify the requested objects in the image
- Return only the direct answer to what is being asked
- Be specific and concise

Expected answer: the direct phrase only`

var templates = map[types.ChallengeType]string{
	types.ChallengeText:   TextTemplate,
	types.ChallengeMath:   MathTemplate,
	types.ChallengeObject: ObjectTemplate,
}

// ForType returns the instruction template for a challenge type.
// Unrecognized types fall back to the text template; ForType never fails.
func ForType(t types.ChallengeType) string {
	if tpl, ok := templates[t]; ok {
		return tpl
	}
	return TextTemplate
}

// Select resolves the instruction for a call: a non-empty custom instruction
// wins outright, otherwise the template for the challenge type is used.
func Select(t types.ChallengeType, custom string) string {
	if custom != "" {
		return custom
	}
	return ForType(t)
}
