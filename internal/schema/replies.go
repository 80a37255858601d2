package schema

func str(desc string) *Schema { return &Schema{Type: String, Description: desc} }
func num(desc string) *Schema { return &Schema{Type: Number, Description: desc} }
func id() *Schema { return &Schema{Type: Integer, Description: "The id of the input item"} }
func boolean(desc string) *Schema { return &Schema{Type: Boolean, Description: desc} }

func wrap(name, desc string, item *Schema) *Schema {
	return &Schema{
		Name:        name,
		Description: desc,
		Type:        Object,
		Properties: []Property{{
			Name:     "items",
			Required: true,
			Schema:   &Schema{Type: Array, Items: item},
		}},
	}
}

// Translation is the reply contract of the translation phase. With think set
// each item carries a short reasoning field generated before the translation.
func Translation(think bool) *Schema {
	var props []Property
	props = append(props, Property{Name: "id", Schema: id(), Required: true})
	if think {
		props = append(props, Property{Name: "think", Schema: str("Brief reasoning about the translation"), Required: true})
	}
	props = append(props, Property{Name: "translated", Schema: str("The translated text"), Required: true})
	return wrap("translations", "Translated items keyed by id", &Schema{Type: Object, Properties: props})
}

// Verification is the reply contract of the verification phase.
// fixedTranslation is required by the prompt whenever isValid is false; that
// condition is enforced during reconciliation.
func Verification() *Schema {
	return wrap("verifications", "Verification verdict for each item", &Schema{
		Type: Object,
		Properties: []Property{
			{Name: "id", Schema: id(), Required: true},
			{Name: "isValid", Schema: boolean("Whether the translation is correct"), Required: true},
			{Name: "issue", Schema: str("What is wrong with the translation")},
			{Name: "fixedTranslation", Schema: str("Corrected translation, required when isValid is false")},
		},
	})
}

// Grading is the reply contract of the grading phase. categories are the
// rubric score fields, in rubric order, so prompt, schema and bounds share
// one table.
func Grading(categories []string) *Schema {
	props := []Property{
		{Name: "id", Schema: id(), Required: true},
		{Name: "rationale", Schema: str("Reasoning behind the scores"), Required: true},
	}
	for _, c := range categories {
		props = append(props, Property{Name: c, Schema: num(c + " score"), Required: true})
	}
	props = append(props, Property{Name: "valid", Schema: boolean("Whether the translation is acceptable overall"), Required: true})
	return wrap("grades", "Rubric scores for each item", &Schema{Type: Object, Properties: props})
}
