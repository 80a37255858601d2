// Package prompt renders the instructions sent with every batch.
//
// Templates use ${name} variables. Custom templates supplied by the user
// replace the built-in ones and must reference ${inputLanguage},
// ${outputLanguage} and ${input}; anything else they reference is filled in
// when known and left untouched otherwise.
package prompt

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/valpere/batchtran/internal/langtag"
	"github.com/valpere/batchtran/internal/placeholder"
	"github.com/valpere/batchtran/internal/rubric"
	"github.com/valpere/batchtran/internal/tokens"
)

// ErrMissingVariable is returned for a custom template lacking a required
// variable.
var ErrMissingVariable = errors.New("prompt template is missing a required variable")

// Required lists the variables every custom template must contain.
var Required = []string{"inputLanguage", "outputLanguage", "input"}

var varRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// Validate checks that tmpl references every required variable.
func Validate(tmpl string) error {
	present := make(map[string]bool)
	for _, m := range varRe.FindAllStringSubmatch(tmpl, -1) {
		present[m[1]] = true
	}
	for _, name := range Required {
		if !present[name] {
			return fmt.Errorf("%w: ${%s}", ErrMissingVariable, name)
		}
	}
	return nil
}

// Overrides holds optional custom templates, one per phase.
type Overrides struct {
	Translation  string
	Verification string
	Grading      string
}

// Validate checks every non-empty override.
func (o Overrides) Validate() error {
	for name, tmpl := range map[string]string{
		"translation":  o.Translation,
		"verification": o.Verification,
		"grading":      o.Grading,
	} {
		if tmpl == "" {
			continue
		}
		if err := Validate(tmpl); err != nil {
			return fmt.Errorf("%s prompt: %w", name, err)
		}
	}
	return nil
}

// Builder renders one phase's prompt for a serialized batch.
type Builder struct {
	tmpl string
	vars map[string]string
}

func newBuilder(override, builtin, in, out string, extra map[string]string) (*Builder, error) {
	tmpl := builtin
	if override != "" {
		if err := Validate(override); err != nil {
			return nil, err
		}
		tmpl = override
	}
	vars := map[string]string{
		"inputLanguage":  langtag.Name(in),
		"outputLanguage": langtag.Name(out),
	}
	for k, v := range extra {
		vars[k] = v
	}
	return &Builder{tmpl: tmpl, vars: vars}, nil
}

// NewTranslation returns the translation prompt builder.
func NewTranslation(override, in, out string, m *placeholder.Matcher, think bool) (*Builder, error) {
	thinking := ""
	if think {
		thinking = "- Before translating, write a short note about meaning, tone and variables in 'think'.\n"
	}
	return newBuilder(override, translationTemplate, in, out, map[string]string{
		"variableExample": m.Prefix() + "timeLeft" + m.Suffix(),
		"variableHint":    m.InstructionHint(),
		"thinking":        thinking,
	})
}

// NewVerification returns the verification prompt builder.
func NewVerification(override, in, out string, m *placeholder.Matcher) (*Builder, error) {
	return newBuilder(override, verificationTemplate, in, out, map[string]string{
		"variableExample": m.Prefix() + "timeLeft" + m.Suffix(),
		"variableHint":    m.InstructionHint(),
	})
}

// NewGrading returns the grading prompt builder. The criteria text comes from
// r, the same table the scores are checked against.
func NewGrading(override, in, out string, r rubric.Rubric) (*Builder, error) {
	return newBuilder(override, gradingTemplate, in, out, map[string]string{
		"criteria": r.PromptText(),
	})
}

// Render substitutes input (the JSON array of batch items) into the template.
func (b *Builder) Render(input string) string {
	return varRe.ReplaceAllStringFunc(b.tmpl, func(match string) string {
		name := match[2 : len(match)-1]
		if name == "input" {
			return input
		}
		if v, ok := b.vars[name]; ok {
			return v
		}
		return match
	})
}

// Overhead is the token cost of the prompt around an empty batch.
func (b *Builder) Overhead(count tokens.Counter) int {
	return count(b.Render("[]"))
}
