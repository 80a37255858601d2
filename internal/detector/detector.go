// Package detector guesses the language of translated or source text.
package detector

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

// MinRunes is the shortest text worth running detection on; shorter input
// produces unreliable guesses.
const MinRunes = 20

// Detector wraps a lingua detector built from all languages. Building it is
// expensive, so one instance should be shared.
type Detector struct {
	detector lingua.LanguageDetector
}

func New() *Detector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		Build()

	return &Detector{detector: detector}
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if strings.TrimSpace(text) == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

// DetectISO returns the lower-case ISO 639-1 code of text's language.
func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// DetectSample detects the language of a set of strings by joining them
// until maxRunes is reached. It is used to guess the source language of a
// whole document.
func (d *Detector) DetectSample(values []string, maxRunes int) (string, bool) {
	var b strings.Builder
	n := 0
	for _, v := range values {
		if maxRunes > 0 && n >= maxRunes {
			break
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		b.WriteString(v)
		b.WriteString("\n")
		n += len([]rune(v))
	}
	return d.DetectISO(b.String())
}
