// Package validator decides whether a candidate translation can be accepted.
// A rejection is not an error: it is a note that goes back to the model with
// the item on its next attempt.
package validator

import (
	"fmt"
	"strings"

	"github.com/valpere/batchtran/internal/detector"
	"github.com/valpere/batchtran/internal/langtag"
	"github.com/valpere/batchtran/internal/placeholder"
)

// Failure notes.
const (
	EmptyTranslation = "The translated value cannot be an empty string"
	Unchanged        = "The translated value must differ from the original, translate it"
)

// Options configures the checks beyond the always-on ones (non-empty and
// variable preservation).
type Options struct {
	// EnsureChanged rejects translations identical to their original.
	EnsureChanged bool
	// TargetLanguage and Detector enable the target-language check. Both
	// must be set for the check to run.
	TargetLanguage string
	Detector       *detector.Detector
}

// Validator checks candidate translations.
type Validator struct {
	matcher *placeholder.Matcher
	opts    Options
}

// New creates a Validator using m to find variables.
func New(m *placeholder.Matcher, opts Options) *Validator {
	return &Validator{matcher: m, opts: opts}
}

// Check returns "" when translated is acceptable for original, otherwise the
// note describing what to fix. variables are the tokens extracted from
// original at intake.
func (v *Validator) Check(original, translated string, variables []string) string {
	if strings.TrimSpace(translated) == "" {
		return EmptyTranslation
	}
	if missing := v.matcher.Missing(variables, translated); len(missing) > 0 {
		return placeholder.FailureMessage(missing)
	}
	if v.opts.EnsureChanged && strings.TrimSpace(translated) == strings.TrimSpace(original) {
		return Unchanged
	}
	if msg := v.checkLanguage(translated); msg != "" {
		return msg
	}
	return ""
}

// MissingVariables reports variables lost in text.
func (v *Validator) MissingVariables(variables []string, text string) []string {
	return v.matcher.Missing(variables, text)
}

func (v *Validator) checkLanguage(translated string) string {
	if v.opts.Detector == nil || v.opts.TargetLanguage == "" {
		return ""
	}
	// Detection is unreliable on short strings and on strings that are
	// mostly variables.
	text := v.matcher.StripVariables(translated)
	if len([]rune(strings.TrimSpace(text))) < detector.MinRunes {
		return ""
	}
	detected, ok := v.opts.Detector.DetectISO(text)
	if !ok {
		return ""
	}
	want := langtag.Base(v.opts.TargetLanguage)
	if strings.EqualFold(detected, want) {
		return ""
	}
	return fmt.Sprintf("The translation must be written in %s, but it appears to be written in %s",
		langtag.Name(v.opts.TargetLanguage), langtag.Name(detected))
}
