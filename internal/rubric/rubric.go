// Package rubric holds the grading scale. The same table drives the grading
// prompt, the reply schema and the score bounds check, so the three cannot
// drift apart.
package rubric

import (
	"fmt"
	"strconv"
	"strings"
)

// Category is one scored dimension of a grade.
type Category struct {
	// Key is the reply field carrying the score.
	Key   string
	Label string
	Max   float64
	// Guidance lists the questions the grader answers for this category.
	Guidance []string
}

// Rubric is an ordered set of categories. Order is the priority in which
// bounds are checked, which keeps failure notes deterministic.
type Rubric []Category

// Default is the 100-point scale: accuracy 60, every other category 10.
func Default() Rubric {
	return Rubric{
		{Key: "accuracy", Label: "Accuracy", Max: 60, Guidance: []string{
			"Meaning: Preserves original meaning?",
			"Tone & Style: Matches tone/formality?",
			"Grammar & Syntax: Grammatically correct and natural?",
		}},
		{Key: "formatting", Label: "Formatting", Max: 10, Guidance: []string{
			"Punctuation & Spacing: Correct punctuation placed & spaced?",
			"Capitalization & Formatting: Are proper nouns, titles, and formatting preserved?",
		}},
		{Key: "fluencyReadability", Label: "Fluency & Readability", Max: 10, Guidance: []string{
			"Naturalness: Sentences flow smoothly?",
			"Clarity: Meaning clear and unambiguous?",
		}},
		{Key: "consistency", Label: "Consistency", Max: 10, Guidance: []string{
			"Terminology & Word Choice: Key terms translated consistently?",
		}},
		{Key: "culturalAdaptation", Label: "Cultural & Contextual Adaptation", Max: 10, Guidance: []string{
			"Localization: Idioms, cultural references, or region-specific phrases adapted correctly?",
		}},
	}
}

// WithMaxima returns a copy of r with the maxima in m applied. Unknown keys
// and non-positive maxima are rejected.
func (r Rubric) WithMaxima(m map[string]float64) (Rubric, error) {
	out := make(Rubric, len(r))
	copy(out, r)
	for key, limit := range m {
		i := out.index(key)
		if i < 0 {
			return nil, fmt.Errorf("unknown rubric category %q", key)
		}
		if limit <= 0 {
			return nil, fmt.Errorf("rubric category %q: maximum must be positive, got %v", key, limit)
		}
		out[i].Max = limit
	}
	return out, nil
}

// index matches case-insensitively: config keys arrive lower-cased.
func (r Rubric) index(key string) int {
	for i, c := range r {
		if strings.EqualFold(c.Key, key) {
			return i
		}
	}
	return -1
}

// Keys returns the score fields in priority order.
func (r Rubric) Keys() []string {
	keys := make([]string, len(r))
	for i, c := range r {
		keys[i] = c.Key
	}
	return keys
}

// Total is the maximum overall score.
func (r Rubric) Total() float64 {
	var t float64
	for _, c := range r {
		t += c.Max
	}
	return t
}

// Check returns "" when every score is within [0, Max] of its category,
// otherwise the note for the first offending category in rubric order. A
// category absent from scores counts as out of range.
func (r Rubric) Check(scores map[string]float64) string {
	for _, c := range r {
		v, ok := scores[c.Key]
		if !ok {
			return fmt.Sprintf("The %s score is missing, it must be between 0 and %s", c.Label, formatNum(c.Max))
		}
		if v < 0 || v > c.Max {
			return fmt.Sprintf("The %s score must be between 0 and %s, got %s", c.Label, formatNum(c.Max), formatNum(v))
		}
	}
	return ""
}

// PromptText renders the criteria section of the grading prompt.
func (r Rubric) PromptText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Criteria (%s points total):\n", formatNum(r.Total()))
	for _, c := range r {
		fmt.Fprintf(&b, "\n    %s (%s points, field \"%s\")\n", c.Label, formatNum(c.Max), c.Key)
		for _, g := range c.Guidance {
			fmt.Fprintf(&b, "        %s\n", g)
		}
	}
	return b.String()
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
