package placeholder_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/valpere/batchtran/internal/placeholder"
)

func TestExtract_Default(t *testing.T) {
	m := placeholder.New("", "")
	got := m.Extract("Hello {{name}}, you have {{count}} new {{name}}")
	want := []string{"{{name}}", "{{count}}", "{{name}}"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract = %v, want %v", got, want)
	}
}

func TestExtract_NoVariables(t *testing.T) {
	m := placeholder.New("", "")
	if got := m.Extract("Plain text with { braces }"); len(got) != 0 {
		t.Errorf("expected no variables, got %v", got)
	}
}

func TestExtract_AdjacentVariables(t *testing.T) {
	m := placeholder.New("", "")
	got := m.Extract("{{a}}{{b}}")
	if len(got) != 2 || got[0] != "{{a}}" || got[1] != "{{b}}" {
		t.Errorf("Extract = %v, want [{{a}} {{b}}]", got)
	}
}

func TestExtract_CustomDelimiters(t *testing.T) {
	m := placeholder.New("%{", "}")
	got := m.Extract("Total: %{amount} (%{currency})")
	want := []string{"%{amount}", "%{currency}"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract = %v, want %v", got, want)
	}
	if m.Prefix() != "%{" || m.Suffix() != "}" {
		t.Errorf("delimiters = %q %q", m.Prefix(), m.Suffix())
	}
}

func TestMissing(t *testing.T) {
	m := placeholder.New("", "")
	expected := m.Extract("Hi {{a}} and {{b}}")

	if got := m.Missing(expected, "Salut {{a}}"); !reflect.DeepEqual(got, []string{"{{b}}"}) {
		t.Errorf("Missing = %v, want [{{b}}]", got)
	}
	if got := m.Missing(expected, "Salut {{b}} et {{a}}"); len(got) != 0 {
		t.Errorf("reordered variables reported missing: %v", got)
	}
}

func TestMissing_CountsDuplicates(t *testing.T) {
	m := placeholder.New("", "")
	expected := m.Extract("{{x}} + {{x}}")
	if got := m.Missing(expected, "{{x}}"); !reflect.DeepEqual(got, []string{"{{x}}"}) {
		t.Errorf("Missing = %v, want [{{x}}]", got)
	}
}

func TestFailureMessage(t *testing.T) {
	msg := placeholder.FailureMessage([]string{"{{b}}"})
	if !strings.Contains(msg, `["{{b}}"]`) {
		t.Errorf("message %q does not list the variable as JSON", msg)
	}
}

func TestFailureMessage_NoHTMLEscaping(t *testing.T) {
	msg := placeholder.FailureMessage([]string{"<b>"})
	if !strings.Contains(msg, `["<b>"]`) {
		t.Errorf("message %q escaped the variable", msg)
	}
}
