package compiler

import "github.com/abhisek/coursewell/internal/llm"

// StepsSchema is the minimal shape a compiled script must have. Variant
// fields are checked leniently by the step decoder, which also repairs
// keywords sent as a single string.
var StepsSchema = &llm.Schema{
	Name:        "lesson-steps",
	Description: "Ordered typed steps of a lesson script",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"steps": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type": map[string]any{
							"type": "string",
							"enum": []any{"CONTENT", "MEDIA", "QUESTION_MCQ", "QUESTION_SA"},
						},
						"text":           map[string]any{"type": "string"},
						"alt_text":       map[string]any{"type": "string"},
						"media_type":     map[string]any{"type": "string"},
						"question":       map[string]any{"type": "string"},
						"options":        map[string]any{"type": []any{"object", "array"}},
						"correct_answer": map[string]any{"type": "string"},
						"keywords":       map[string]any{"type": []any{"array", "string"}},
					},
					"required": []any{"type"},
				},
			},
		},
		"required": []any{"steps"},
	},
}
