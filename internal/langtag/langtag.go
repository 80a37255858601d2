// Package langtag validates BCP 47 language tags given on the command line
// and renders them for prompts.
package langtag

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Auto asks for the source language to be detected from the input.
const Auto = "auto"

// Parse validates a language tag and returns its canonical form.
func Parse(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("empty language tag")
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("invalid language tag %q: %w", code, err)
	}
	return tag.String(), nil
}

// ParseList splits a comma-separated list of tags, dropping duplicates.
func ParseList(codes string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, c := range strings.Split(codes, ",") {
		if strings.TrimSpace(c) == "" {
			continue
		}
		tag, err := Parse(c)
		if err != nil {
			return nil, err
		}
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no language given")
	}
	return out, nil
}

// Base returns the ISO 639-1 (or 639-3 when there is no two-letter form)
// language subtag of code, lower case.
func Base(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return strings.ToLower(code)
	}
	base, _ := tag.Base()
	return base.String()
}

// Name renders code as "English name (code)", e.g. "French (fr)".
// Unknown tags are returned as given.
func Name(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		return code
	}
	return fmt.Sprintf("%s (%s)", name, tag.String())
}
