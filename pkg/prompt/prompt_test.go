package prompt

import (
	"strings"
	"testing"

	"github.com/menta2k/captcha-solver/pkg/types"
)

func TestForTypeMath(t *testing.T) {
	tpl := ForType(types.ChallengeMath)

	if !strings.Contains(tpl, "numeric result") {
		t.Errorf("math template should demand a numeric result, got:\n%s", tpl)
	}
}

func TestForTypeObject(t *testing.T) {
	tpl := ForType(types.ChallengeObject)

	if !strings.Contains(tpl, "direct") {
		t.Errorf("object template should demand a direct answer, got:\n%s", tpl)
	}
}

func TestForTypeText(t *testing.T) {
	tpl := ForType(types.ChallengeText)

	if !strings.Contains(tpl, "alphanumeric characters") {
		t.Errorf("text template should demand alphanumeric characters only, got:\n%s", tpl)
	}
}

func TestForTypeUnrecognizedFallsBackToText(t *testing.T) {
	for _, unknown := range []types.ChallengeType{"", "audio", "TEXT", "puzzle"} {
		tpl := ForType(unknown)
		if tpl != TextTemplate {
			t.Errorf("ForType(%q) should fall back to the text template", unknown)
		}
	}
}

func TestSelectCustomWins(t *testing.T) {
	custom := "Count the traffic lights and answer with a single digit."

	for _, typ := range []types.ChallengeType{types.ChallengeText, types.ChallengeMath, types.ChallengeObject, "bogus"} {
		got := Select(typ, custom)
		if got != custom {
			t.Errorf("Select(%q, custom) = %q, expected the custom instruction verbatim", typ, got)
		}
	}
}

func TestSelectEmptyCustomUsesTemplate(t *testing.T) {
	if got := Select(types.ChallengeMath, ""); got != MathTemplate {
		t.Errorf("Select with empty custom should return the type template, got %q", got)
	}
}
