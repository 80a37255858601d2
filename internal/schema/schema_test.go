package schema

import (
	"errors"
	"testing"
)

func TestItems_KeepsConformingElements(t *testing.T) {
	raw := `{"items":[
		{"id":1,"translated":"Bonjour"},
		{"id":"2","translated":"Salut"},
		{"id":3},
		{"id":4.5,"translated":"x"},
		{"id":5,"translated":"Merci","extra":true}
	]}`
	kept, dropped, err := Items(raw, Translation(false))
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(kept) != 2 || dropped != 3 {
		t.Fatalf("kept %d dropped %d, want 2/3", len(kept), dropped)
	}
	if kept[0].Get("id").Int() != 1 || kept[1].Get("id").Int() != 5 {
		t.Errorf("kept ids = %d, %d", kept[0].Get("id").Int(), kept[1].Get("id").Int())
	}
}

func TestItems_ThinkRequired(t *testing.T) {
	raw := `{"items":[{"id":1,"translated":"a"},{"id":2,"think":"t","translated":"b"}]}`
	kept, dropped, err := Items(raw, Translation(true))
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(kept) != 1 || dropped != 1 {
		t.Errorf("kept %d dropped %d, want 1/1", len(kept), dropped)
	}
}

func TestItems_OptionalFields(t *testing.T) {
	raw := `{"items":[
		{"id":1,"isValid":true},
		{"id":2,"isValid":false,"issue":"tone","fixedTranslation":"b"},
		{"id":3,"isValid":false,"issue":null},
		{"id":4,"isValid":"no"}
	]}`
	kept, dropped, err := Items(raw, Verification())
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(kept) != 3 || dropped != 1 {
		t.Errorf("kept %d dropped %d, want 3/1", len(kept), dropped)
	}
}

func TestItems_BareArray(t *testing.T) {
	kept, _, err := Items(`[{"id":1,"translated":"a"}]`, Translation(false))
	if err != nil || len(kept) != 1 {
		t.Errorf("Items(bare array) = %d, %v", len(kept), err)
	}
}

func TestItems_Malformed(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"items":{}}`, `{"other":[]}`, `{"items":[1,`} {
		if _, _, err := Items(raw, Translation(false)); !errors.Is(err, ErrMalformed) {
			t.Errorf("Items(%q) err = %v, want ErrMalformed", raw, err)
		}
	}
}

func TestGradingSchemaFollowsCategories(t *testing.T) {
	s := Grading([]string{"accuracy", "formatting"})
	elem := s.Field("items").Items
	var names []string
	for _, p := range elem.Properties {
		names = append(names, p.Name)
	}
	want := []string{"id", "rationale", "accuracy", "formatting", "valid"}
	if len(names) != len(want) {
		t.Fatalf("properties = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("property %d = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestJSONSchema(t *testing.T) {
	js := Translation(false).JSONSchema()
	if js["type"] != "object" {
		t.Errorf("type = %v", js["type"])
	}
	items := js["properties"].(map[string]any)["items"].(map[string]any)
	elem := items["items"].(map[string]any)
	req := elem["required"].([]string)
	if len(req) != 2 || req[0] != "id" || req[1] != "translated" {
		t.Errorf("required = %v", req)
	}
}

func TestGeminiSchema(t *testing.T) {
	gs := Verification().GeminiSchema()
	if gs["type"] != "OBJECT" {
		t.Errorf("type = %v", gs["type"])
	}
	elem := gs["properties"].(map[string]any)["items"].(map[string]any)["items"].(map[string]any)
	order := elem["propertyOrdering"].([]string)
	if len(order) != 4 || order[0] != "id" || order[3] != "fixedTranslation" {
		t.Errorf("propertyOrdering = %v", order)
	}
}
