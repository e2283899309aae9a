// internal/workers/recommendation/parse-request/validation.go
package parserequest

import "fitmeal-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"userProfile"},
		Properties: map[string]validation.Property{
			"userProfile": {
				Type:        "object",
				Description: "Stored user profile the parsed signals merge into",
			},
			"requestText": {
				Type:        "string",
				Description: "Free-form request text, Korean or English",
				MaxLength:   intPtr(2000),
			},
			"contextTags": {
				Type:        "array",
				Description: "Taste tags carried over from earlier turns",
				Items:       &validation.Property{Type: "string"},
			},
			"resetContext": {
				Type:        "boolean",
				Description: "Drop carried-over context tags for this call",
			},
		},
	}
}

func GetOutputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"userProfile": {
				Type:        "object",
				Description: "Profile with extracted diet rules and taste tags merged in",
			},
			"parsedSignals": {
				Type:        "object",
				Description: "Raw extractions kept apart from stored preferences",
			},
		},
	}
}

func intPtr(i int) *int {
	return &i
}
