// Package schema declares the structured-output contracts requested from
// model backends and checks replies against them item by item.
package schema

import (
	"errors"
	"math"
	"strings"

	"github.com/tidwall/gjson"
)

// Type is a JSON value type.
type Type string

const (
	Object  Type = "object"
	Array   Type = "array"
	String  Type = "string"
	Integer Type = "integer"
	Number  Type = "number"
	Boolean Type = "boolean"
)

// ErrMalformed is returned when a reply is not a JSON object holding an items
// array.
var ErrMalformed = errors.New("malformed structured reply")

// Property is a named field of an object schema. Order is preserved when
// rendering, which some backends use as generation order.
type Property struct {
	Name     string
	Schema   *Schema
	Required bool
}

// Schema is a small structural subset of JSON Schema.
type Schema struct {
	Name        string
	Description string
	Type        Type
	Properties  []Property
	Items       *Schema
}

// Field returns the schema of the named property, nil if absent.
func (s *Schema) Field(name string) *Schema {
	for _, p := range s.Properties {
		if p.Name == name {
			return p.Schema
		}
	}
	return nil
}

// JSONSchema renders s as a JSON Schema document for OpenAI, Ollama and
// Anthropic tool input schemas.
func (s *Schema) JSONSchema() map[string]any {
	out := map[string]any{"type": string(s.Type)}
	if s.Description != "" {
		out["description"] = s.Description
	}
	switch s.Type {
	case Object:
		props := make(map[string]any, len(s.Properties))
		required := make([]string, 0, len(s.Properties))
		for _, p := range s.Properties {
			props[p.Name] = p.Schema.JSONSchema()
			if p.Required {
				required = append(required, p.Name)
			}
		}
		out["properties"] = props
		out["required"] = required
		out["additionalProperties"] = false
	case Array:
		if s.Items != nil {
			out["items"] = s.Items.JSONSchema()
		}
	}
	return out
}

// GeminiSchema renders s in the OpenAPI subset accepted by Gemini's
// responseSchema: upper-case types and an explicit propertyOrdering.
func (s *Schema) GeminiSchema() map[string]any {
	out := map[string]any{"type": strings.ToUpper(string(s.Type))}
	if s.Description != "" {
		out["description"] = s.Description
	}
	switch s.Type {
	case Object:
		props := make(map[string]any, len(s.Properties))
		var required, order []string
		for _, p := range s.Properties {
			props[p.Name] = p.Schema.GeminiSchema()
			order = append(order, p.Name)
			if p.Required {
				required = append(required, p.Name)
			}
		}
		out["properties"] = props
		out["propertyOrdering"] = order
		if len(required) > 0 {
			out["required"] = required
		}
	case Array:
		if s.Items != nil {
			out["items"] = s.Items.GeminiSchema()
		}
	}
	return out
}

// Items extracts the elements of the items array of raw that conform to the
// element schema of s. Elements with missing or mistyped fields are dropped
// and counted. A bare top-level array is accepted in place of the wrapping
// object.
func Items(raw string, s *Schema) (kept []gjson.Result, dropped int, err error) {
	if !gjson.Valid(raw) {
		return nil, 0, ErrMalformed
	}
	doc := gjson.Parse(raw)
	list := doc
	if doc.IsObject() {
		list = doc.Get("items")
	}
	if !list.IsArray() {
		return nil, 0, ErrMalformed
	}

	var elem *Schema
	if f := s.Field("items"); f != nil {
		elem = f.Items
	}
	for _, v := range list.Array() {
		if elem == nil || Conforms(v, elem) {
			kept = append(kept, v)
		} else {
			dropped++
		}
	}
	return kept, dropped, nil
}

// Conforms reports whether v matches s structurally.
func Conforms(v gjson.Result, s *Schema) bool {
	switch s.Type {
	case Object:
		if !v.IsObject() {
			return false
		}
		for _, p := range s.Properties {
			f := v.Get(gjsonKey(p.Name))
			if !f.Exists() || f.Type == gjson.Null {
				if p.Required {
					return false
				}
				continue
			}
			if !Conforms(f, p.Schema) {
				return false
			}
		}
		return true
	case Array:
		if !v.IsArray() {
			return false
		}
		if s.Items == nil {
			return true
		}
		for _, e := range v.Array() {
			if !Conforms(e, s.Items) {
				return false
			}
		}
		return true
	case String:
		return v.Type == gjson.String
	case Number:
		return v.Type == gjson.Number
	case Integer:
		return v.Type == gjson.Number && v.Num == math.Trunc(v.Num)
	case Boolean:
		return v.IsBool()
	}
	return false
}

func gjsonKey(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
