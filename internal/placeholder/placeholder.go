// Package placeholder finds delimiter-bounded template variables such as
// {{name}} in source strings and reports which of them a translation lost.
// Variables must survive translation verbatim.
package placeholder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Default delimiters.
const (
	DefaultPrefix = "{{"
	DefaultSuffix = "}}"
)

// Matcher recognises variables bounded by a prefix and a suffix.
type Matcher struct {
	prefix string
	suffix string
	re     *regexp.Regexp
}

// New builds a Matcher. Empty delimiters fall back to the defaults.
func New(prefix, suffix string) *Matcher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if suffix == "" {
		suffix = DefaultSuffix
	}
	re := regexp.MustCompile(regexp.QuoteMeta(prefix) + `(.+?)` + regexp.QuoteMeta(suffix))
	return &Matcher{prefix: prefix, suffix: suffix, re: re}
}

// Prefix returns the opening delimiter.
func (m *Matcher) Prefix() string { return m.prefix }

// Suffix returns the closing delimiter.
func (m *Matcher) Suffix() string { return m.suffix }

// Extract returns every variable token in text (delimiters included) in order
// of appearance, duplicates kept.
func (m *Matcher) Extract(text string) []string {
	return m.re.FindAllString(text, -1)
}

// Missing returns the tokens of expected that do not occur in text, in the
// order of expected, each reported once.
func (m *Matcher) Missing(expected []string, text string) []string {
	present := make(map[string]int)
	for _, tok := range m.Extract(text) {
		present[tok]++
	}

	var missing []string
	seen := make(map[string]bool)
	for _, tok := range expected {
		if present[tok] > 0 {
			present[tok]--
			continue
		}
		if !seen[tok] {
			seen[tok] = true
			missing = append(missing, tok)
		}
	}
	return missing
}

// FailureMessage renders the corrective note fed back to the model for the
// given missing variables, listing them as a JSON array.
func FailureMessage(missing []string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(missing)
	return fmt.Sprintf(
		"Ensure all variables are included. The following variables are missing from the previous translation and must be added: '%s'",
		strings.TrimSpace(buf.String()),
	)
}

// InstructionHint is a sentence for prompts telling the model which
// variables to keep.
func (m *Matcher) InstructionHint() string {
	return fmt.Sprintf("Keep every variable written as %sname%s exactly as it appears, do not translate, rename or remove it.", m.prefix, m.suffix)
}

// StripVariables removes every variable token from text.
func (m *Matcher) StripVariables(text string) string {
	return m.re.ReplaceAllString(text, "")
}
