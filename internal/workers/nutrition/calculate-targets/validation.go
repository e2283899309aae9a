// internal/workers/nutrition/calculate-targets/validation.go
package calculatetargets

import "fitmeal-workers/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"userProfile"},
		Properties: map[string]validation.Property{
			"userProfile": {
				Type:        "object",
				Description: "User profile with anthropometrics, activity level and goal",
				Properties: map[string]validation.Property{
					"age": {
						Type:        "number",
						Description: "Age in years",
						Minimum:     floatPtr(10),
						Maximum:     floatPtr(100),
					},
					"sex": {
						Type: "string",
						Enum: []string{"male", "female"},
					},
					"heightCm": {
						Type:    "number",
						Minimum: floatPtr(0),
					},
					"weightKg": {
						Type:    "number",
						Minimum: floatPtr(0),
					},
					"activityLevel": {
						Type: "string",
						Enum: []string{"sedentary", "light", "moderate", "active", "very_active"},
					},
					"goal": {
						Type: "string",
						Enum: []string{"weight_loss", "maintain", "muscle_gain"},
					},
				},
			},
		},
	}
}

func GetOutputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: "object",
		Properties: map[string]validation.Property{
			"nutrientTargets": {
				Type:        "object",
				Description: "Daily energy and macro targets in kcal and grams",
			},
		},
	}
}

func floatPtr(f float64) *float64 {
	return &f
}
