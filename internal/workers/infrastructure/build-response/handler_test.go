// internal/workers/infrastructure/build-response/handler_test.go
package buildresponse

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fitmeal-workers/internal/common/logger"
	"fitmeal-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		Timeout:          3 * time.Second,
		RegistryPath:     filepath.Join("..", "..", "..", "..", "configs", "activity-registry.json"),
		NotableThreshold: 0.75,
	}
}

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl.WithFields(map[string]interface{}{"error": err})
}

func newTestLogger(t *testing.T) logger.Logger {
	return &testLogger{t: t}
}

func scoredItem(id string, sub models.SubScores) models.ScoredItem {
	return models.ScoredItem{
		MealCandidate: models.MealCandidate{
			ItemID:   id,
			Name:     "Meal " + id,
			Category: "bowl",
			Tags:     []string{"chicken", "spicy"},
			Nutrition: models.Nutrition{
				Calories: 690,
				ProteinG: 69,
				CarbG:    52,
				FatG:     23,
			},
			PriceKRW: 9500,
		},
		Score:     0.8,
		SubScores: sub,
	}
}

// ==========================
// Why Annotation Tests
// ==========================

func TestHandler_Execute_WhyAnnotations(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	profile := &models.UserProfile{
		UserID:     "user-1",
		Allergies:  []string{"peanut"},
		TastePrefs: map[string]float64{"spicy": 0.9, "chicken": 0.4},
	}
	target := &models.NutrientTarget{
		TargetCalories: 2075,
		TargetProteinG: 208,
		TargetCarbG:    156,
		TargetFatG:     69,
	}

	input := &Input{
		RequestID: "req-1",
		Profile:   profile,
		Target:    target,
		Selected: []models.ScoredItem{
			scoredItem("meal-1", models.SubScores{Nutrition: 0.95, Taste: 0.9, History: 0.8, Cost: 1.0}),
		},
	}

	output, err := handler.Execute(context.Background(), input)

	require.NoError(t, err)
	require.Len(t, output.Result.Items, 1)
	why := output.Result.Items[0].Why
	assert.Contains(t, why, "Matches protein target")
	assert.Contains(t, why, "Matches taste preference: spicy")
	assert.Contains(t, why, "Similar to meals you liked")
	assert.Contains(t, why, "Within budget")
	assert.Contains(t, why, "No allergens")
}

func TestHandler_Execute_NoAnnotationsBelowThreshold(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	input := &Input{
		RequestID: "req-1",
		Selected: []models.ScoredItem{
			scoredItem("meal-1", models.SubScores{Nutrition: 0.5, Taste: 0.5, History: 0.5, Cost: 0.5}),
		},
	}

	output, err := handler.Execute(context.Background(), input)

	require.NoError(t, err)
	require.Len(t, output.Result.Items, 1)
	assert.Empty(t, output.Result.Items[0].Why)
}

func TestNutritionWhy(t *testing.T) {
	target := &models.NutrientTarget{
		TargetCalories: 2100,
		TargetProteinG: 210,
	}
	// per-meal targets: 700 kcal, 70g protein

	tests := []struct {
		name     string
		actual   models.Nutrition
		expected string
	}{
		{
			name:     "protein tracks closer than calories",
			actual:   models.Nutrition{Calories: 600, ProteinG: 69},
			expected: "Matches protein target",
		},
		{
			name:     "calories track closer than protein",
			actual:   models.Nutrition{Calories: 695, ProteinG: 50},
			expected: "Fits calorie target",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := scoredItem("meal-1", models.SubScores{})
			item.Nutrition = tt.actual
			assert.Equal(t, tt.expected, nutritionWhy(&item, target))
		})
	}

	t.Run("missing target falls back to calorie phrasing", func(t *testing.T) {
		item := scoredItem("meal-1", models.SubScores{})
		assert.Equal(t, "Fits calorie target", nutritionWhy(&item, nil))
	})
}

func TestMatchedTasteTag(t *testing.T) {
	item := scoredItem("meal-1", models.SubScores{})

	t.Run("highest weighted tag wins", func(t *testing.T) {
		profile := &models.UserProfile{TastePrefs: map[string]float64{"chicken": 0.3, "spicy": 0.8}}
		tag, ok := matchedTasteTag(&item, profile)
		require.True(t, ok)
		assert.Equal(t, "spicy", tag)
	})

	t.Run("ties break lexicographically", func(t *testing.T) {
		profile := &models.UserProfile{TastePrefs: map[string]float64{"chicken": 0.5, "spicy": 0.5}}
		tag, ok := matchedTasteTag(&item, profile)
		require.True(t, ok)
		assert.Equal(t, "chicken", tag)
	})

	t.Run("no overlap", func(t *testing.T) {
		profile := &models.UserProfile{TastePrefs: map[string]float64{"sweet": 0.9}}
		_, ok := matchedTasteTag(&item, profile)
		assert.False(t, ok)
	})

	t.Run("nil profile", func(t *testing.T) {
		_, ok := matchedTasteTag(&item, nil)
		assert.False(t, ok)
	})
}

// ==========================
// Exclusion Formatting Tests
// ==========================

func TestFormatReason(t *testing.T) {
	tests := []struct {
		code     string
		expected string
	}{
		{"allergen:peanut", "Contains allergen: peanut"},
		{"allergen:shellfish", "Contains allergen: shellfish"},
		{"diet:vegan", "Not vegan-compatible"},
		{"diet:halal", "Not halal-compatible"},
		{"unknown-code", "unknown-code"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatReason(tt.code))
		})
	}
}

func TestHandler_Execute_FormatsExclusions(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	input := &Input{
		RequestID: "req-1",
		Excluded: []models.Exclusion{
			{ItemID: "meal-9", Name: "Peanut Noodles", Reasons: []string{"allergen:peanut", "diet:vegan"}},
		},
	}

	output, err := handler.Execute(context.Background(), input)

	require.NoError(t, err)
	require.Len(t, output.Result.ExcludedItems, 1)
	excluded := output.Result.ExcludedItems[0]
	assert.Equal(t, "meal-9", excluded.ItemID)
	assert.Equal(t, []string{"Contains allergen: peanut", "Not vegan-compatible"}, excluded.ExcludedReason)
}

// ==========================
// Metadata and Validation Tests
// ==========================

func TestHandler_Execute_Metadata(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	input := &Input{
		RequestID:       "req-42",
		PoolSize:        80,
		Relaxed:         true,
		DegradedFetch:   true,
		ScoringDegraded: true,
		Notes:           []string{"history unavailable"},
	}

	output, err := handler.Execute(context.Background(), input)

	require.NoError(t, err)
	meta := output.Result.Metadata
	assert.Equal(t, "req-42", meta.RequestID)
	assert.Equal(t, 80, meta.PoolSize)
	assert.True(t, meta.Relaxed)
	assert.True(t, meta.DegradedFetch)
	assert.True(t, meta.ScoringDegraded)
	assert.Equal(t, []string{"history unavailable"}, meta.Notes)
}

func TestHandler_Execute_GeneratesRequestID(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{})

	require.NoError(t, err)
	assert.NotEmpty(t, output.Result.Metadata.RequestID)
}

func TestHandler_Execute_MissingRegistryNotFatal(t *testing.T) {
	config := createTestConfig()
	config.RegistryPath = filepath.Join(t.TempDir(), "does-not-exist.json")
	handler := NewHandler(config, newTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{RequestID: "req-1"})

	require.NoError(t, err)
	assert.Equal(t, "req-1", output.Result.Metadata.RequestID)
}

func TestHandler_Execute_SchemaViolationNotFatal(t *testing.T) {
	// a registry whose output schema the payload can never satisfy
	registryJSON := `{
		"version": "1.0.0",
		"lastUpdated": "2026-08-10T09:00:00Z",
		"activities": [{
			"id": "build-response",
			"displayName": "Build Recommendation Response",
			"description": "test",
			"category": "infrastructure",
			"version": "1.0.0",
			"taskType": "build-response",
			"implementationStatus": "completed",
			"inputSchema": {},
			"outputSchema": {
				"type": "object",
				"required": ["nonexistent_field"]
			},
			"errorCodes": [],
			"timeout": "10s",
			"retries": 0,
			"workflows": [],
			"tags": []
		}]
	}`
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(registryJSON), 0o644))

	config := createTestConfig()
	config.RegistryPath = path
	handler := NewHandler(config, newTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{RequestID: "req-1"})

	require.NoError(t, err)
	assert.Equal(t, "req-1", output.Result.Metadata.RequestID)
}

func TestHandler_Execute_NilInput(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	output, err := handler.Execute(context.Background(), nil)

	assert.ErrorIs(t, err, ErrNilInput)
	assert.Nil(t, output)
}

func TestHandler_Execute_Deterministic(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	profile := &models.UserProfile{
		UserID:     "user-1",
		Allergies:  []string{"peanut"},
		TastePrefs: map[string]float64{"spicy": 0.9},
	}
	input := &Input{
		RequestID: "req-1",
		Profile:   profile,
		Selected: []models.ScoredItem{
			scoredItem("meal-1", models.SubScores{Nutrition: 0.9, Taste: 0.9, History: 0.9, Cost: 0.9}),
			scoredItem("meal-2", models.SubScores{Nutrition: 0.8, Taste: 0.8, History: 0.8, Cost: 0.8}),
		},
	}

	first, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := handler.Execute(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, first.Result, again.Result)
	}
}
