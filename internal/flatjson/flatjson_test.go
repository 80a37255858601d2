package flatjson

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

const doc = `{
	"greeting": "Hello {{name}}",
	"menu": {"file": {"open": "Open", "close": "Close"}, "count": 3},
	"list": ["one", "two"],
	"dotted.key": "Dotted",
	"empty": "",
	"flag": true
}`

func TestFlatten(t *testing.T) {
	entries, err := Flatten([]byte(doc), "")
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	var keys []string
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	want := []string{"greeting", "menu*file*open", "menu*file*close", "list*0", "list*1", "dotted.key", "empty"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
	if entries[0].Value != "Hello {{name}}" {
		t.Errorf("value = %q", entries[0].Value)
	}
}

func TestFlatten_CustomDelimiter(t *testing.T) {
	entries, err := Flatten([]byte(`{"a":{"b":"x"}}`), "/")
	if err != nil || len(entries) != 1 || entries[0].Key != "a/b" {
		t.Errorf("Flatten = %+v, %v", entries, err)
	}
}

func TestFlatten_Invalid(t *testing.T) {
	if _, err := Flatten([]byte(`{"a":`), ""); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := Flatten([]byte(`"just a string"`), ""); !errors.Is(err, ErrNotContainer) {
		t.Errorf("err = %v, want ErrNotContainer", err)
	}
}

func TestApply(t *testing.T) {
	entries, err := Flatten([]byte(doc), "")
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	out, err := Apply([]byte(doc), entries, map[string]string{
		"greeting":        "Bonjour {{name}}",
		"menu*file*close": "Fermer",
		"list*1":          "deux",
		"dotted.key":      "Pointé",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got["greeting"] != "Bonjour {{name}}" || got["dotted.key"] != "Pointé" {
		t.Errorf("output = %s", out)
	}
	file := got["menu"].(map[string]any)["file"].(map[string]any)
	if file["open"] != "Open" || file["close"] != "Fermer" {
		t.Errorf("menu.file = %v", file)
	}
	if list := got["list"].([]any); list[0] != "one" || list[1] != "deux" {
		t.Errorf("list = %v", list)
	}
	if got["flag"] != true || got["menu"].(map[string]any)["count"] != float64(3) {
		t.Errorf("non-string leaves changed: %s", out)
	}
}

func TestApplyScenario(t *testing.T) {
	in := []byte(`{"greeting": "Hello {{name}}"}`)
	entries, _ := Flatten(in, "")
	out, err := Apply(in, entries, map[string]string{"greeting": "Bonjour {{name}}"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(out, &got); err != nil || got["greeting"] != "Bonjour {{name}}" {
		t.Errorf("output = %s (%v)", out, err)
	}
}

func TestValues(t *testing.T) {
	m := Values([]Entry{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}})
	if m["a"] != "1" || m["b"] != "2" {
		t.Errorf("Values = %v", m)
	}
}
