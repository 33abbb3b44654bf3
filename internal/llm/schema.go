package llm

import "google.golang.org/genai"

func candidateListSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"name": {Type: genai.TypeString},
			},
			Required: []string{"name"},
		},
	}
}

// beliefGraphSchema constrains native output to the Entity / Attribute /
// Relationship shape.
func beliefGraphSchema() *genai.Schema {
	attribute := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":               {Type: genai.TypeString},
			"presence_in_prompt": {Type: genai.TypeBoolean},
			"value":              candidateListSchema(),
		},
		Required:         []string{"name", "presence_in_prompt", "value"},
		PropertyOrdering: []string{"name", "presence_in_prompt", "value"},
	}

	entity := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":               {Type: genai.TypeString},
			"presence_in_prompt": {Type: genai.TypeBoolean},
			"description":        {Type: genai.TypeString},
			"alternatives":       candidateListSchema(),
			"attributes":         {Type: genai.TypeArray, Items: attribute},
		},
		Required:         []string{"name", "presence_in_prompt", "description", "attributes"},
		PropertyOrdering: []string{"name", "presence_in_prompt", "description", "alternatives", "attributes"},
	}

	relationship := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"source":       {Type: genai.TypeString},
			"target":       {Type: genai.TypeString},
			"label":        {Type: genai.TypeString},
			"alternatives": candidateListSchema(),
		},
		Required: []string{"source", "target", "label"},
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"entities":      {Type: genai.TypeArray, Items: entity},
			"relationships": {Type: genai.TypeArray, Items: relationship},
		},
		Required: []string{"entities", "relationships"},
	}
}

func clarificationsSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"questions": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"question": {Type: genai.TypeString},
						"options":  {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
					},
					Required: []string{"question", "options"},
				},
			},
		},
		Required: []string{"questions"},
	}
}
