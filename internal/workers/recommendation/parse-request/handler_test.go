// internal/workers/recommendation/parse-request/handler_test.go
package parserequest

import (
	"context"
	"testing"

	"fitmeal-workers/internal/common/logger"
	"fitmeal-workers/internal/models"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return LoadConfig()
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

func baseProfile() models.UserProfile {
	return models.UserProfile{
		UserID:        "user-1",
		Age:           25,
		Sex:           models.SexMale,
		HeightCM:      175,
		WeightKG:      70,
		ActivityLevel: models.ActivityActive,
		Goal:          models.GoalWeightLoss,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_DietKeywords(t *testing.T) {
	tests := []struct {
		name          string
		requestText   string
		expectedRules []models.DietRule
	}{
		{"english vegan", "I want a vegan lunch", []models.DietRule{models.DietVegan}},
		{"korean vegan", "비건 샐러드 추천해줘", []models.DietRule{models.DietVegan}},
		{"halal", "something halal please", []models.DietRule{models.DietHalal}},
		{"multiple rules", "vegetarian and halal options", []models.DietRule{models.DietHalal, models.DietVegetarian}},
		{"no diet keywords", "high protein bowl", []models.DietRule{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(createTestConfig(), newTestLogger(t))
			output, err := handler.Execute(context.Background(), &Input{
				Profile:     baseProfile(),
				RequestText: tt.requestText,
			})

			assert.NoError(t, err)
			assert.Equal(t, tt.expectedRules, output.Signals.DietRules)
			// every extracted rule must land in the merged profile
			for _, rule := range tt.expectedRules {
				assert.Contains(t, output.Profile.DietRules, rule)
			}
		})
	}
}

func TestHandler_Execute_DietUnionNeverReplaces(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	profile := baseProfile()
	profile.DietRules = []models.DietRule{models.DietHalal}

	output, err := handler.Execute(context.Background(), &Input{
		Profile:     profile,
		RequestText: "vegan dinner",
	})

	assert.NoError(t, err)
	assert.Contains(t, output.Profile.DietRules, models.DietHalal)
	assert.Contains(t, output.Profile.DietRules, models.DietVegan)
	assert.Len(t, output.Profile.DietRules, 2)
}

func TestHandler_Execute_TasteTags(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Profile:     baseProfile(),
		RequestText: "something spicy and sweet",
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"spicy", "sweet"}, output.Signals.TasteTags)
	assert.Equal(t, 1.0, output.Profile.TastePrefs["spicy"])
	assert.Equal(t, 1.0, output.Profile.TastePrefs["sweet"])
}

func TestHandler_Execute_StoredWeightsWin(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	profile := baseProfile()
	profile.TastePrefs = map[string]float64{"spicy": 0.3}

	output, err := handler.Execute(context.Background(), &Input{
		Profile:     profile,
		RequestText: "spicy noodles",
	})

	assert.NoError(t, err)
	// request text must not overwrite the stored preference weight
	assert.Equal(t, 0.3, output.Profile.TastePrefs["spicy"])
}

func TestHandler_Execute_KoreanTasteTags(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Profile:     baseProfile(),
		RequestText: "매콤한 닭가슴살 덮밥",
	})

	assert.NoError(t, err)
	assert.Contains(t, output.Signals.TasteTags, "spicy")
	assert.Contains(t, output.Signals.CategoryHints, "chicken")
	assert.Contains(t, output.Signals.CategoryHints, "bowl")
}

func TestHandler_Execute_CategoryHints(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Profile:     baseProfile(),
		RequestText: "a salad or a soup would be nice",
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"salad", "soup"}, output.Signals.CategoryHints)
}

// ==========================
// Context Handling
// ==========================

func TestHandler_Execute_ContextTags(t *testing.T) {
	t.Run("context tags merged by default", func(t *testing.T) {
		handler := NewHandler(createTestConfig(), newTestLogger(t))
		output, err := handler.Execute(context.Background(), &Input{
			Profile:     baseProfile(),
			RequestText: "lunch ideas",
			ContextTags: []string{"mild"},
		})

		assert.NoError(t, err)
		assert.Contains(t, output.Signals.TasteTags, "mild")
		assert.Equal(t, 1.0, output.Profile.TastePrefs["mild"])
	})

	t.Run("reset drops context tags", func(t *testing.T) {
		handler := NewHandler(createTestConfig(), newTestLogger(t))
		output, err := handler.Execute(context.Background(), &Input{
			Profile:      baseProfile(),
			RequestText:  "lunch ideas",
			ContextTags:  []string{"mild"},
			ResetContext: true,
		})

		assert.NoError(t, err)
		assert.Empty(t, output.Signals.TasteTags)
		assert.NotContains(t, output.Profile.TastePrefs, "mild")
	})
}

// ==========================
// Edge Cases
// ==========================

func TestHandler_Execute_EdgeCases(t *testing.T) {
	t.Run("nil input", func(t *testing.T) {
		handler := NewHandler(createTestConfig(), newTestLogger(t))
		output, err := handler.Execute(context.Background(), nil)
		assert.ErrorIs(t, err, ErrNilInput)
		assert.Nil(t, output)
	})

	t.Run("empty request text", func(t *testing.T) {
		handler := NewHandler(createTestConfig(), newTestLogger(t))
		output, err := handler.Execute(context.Background(), &Input{
			Profile: baseProfile(),
		})
		assert.NoError(t, err)
		assert.Empty(t, output.Signals.DietRules)
		assert.Empty(t, output.Signals.TasteTags)
		assert.Empty(t, output.Signals.CategoryHints)
		assert.Nil(t, output.Profile.TastePrefs)
	})

	t.Run("case insensitive matching", func(t *testing.T) {
		handler := NewHandler(createTestConfig(), newTestLogger(t))
		output, err := handler.Execute(context.Background(), &Input{
			Profile:     baseProfile(),
			RequestText: "VEGAN Salad",
		})
		assert.NoError(t, err)
		assert.Contains(t, output.Signals.DietRules, models.DietVegan)
		assert.Contains(t, output.Signals.CategoryHints, "salad")
	})
}

func TestHandler_Execute_Deterministic(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))
	input := &Input{
		Profile:     baseProfile(),
		RequestText: "spicy vegan chicken salad with sweet soup and noodle",
	}

	first, err := handler.Execute(context.Background(), input)
	assert.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := handler.Execute(context.Background(), &Input{
			Profile:     baseProfile(),
			RequestText: input.RequestText,
		})
		assert.NoError(t, err)
		assert.Equal(t, first.Signals, again.Signals)
	}
}

func TestHandler_Execute_DoesNotMutateCallerProfile(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	profile := baseProfile()
	profile.TastePrefs = map[string]float64{"spicy": 0.9}
	profile.DietRules = []models.DietRule{models.DietHalal}

	output, err := handler.Execute(context.Background(), &Input{
		Profile:     profile,
		RequestText: "sweet vegan meal",
	})

	assert.NoError(t, err)

	// request-derived tags and rules land on the output profile only
	assert.Contains(t, output.Profile.TastePrefs, "sweet")
	assert.Contains(t, output.Profile.DietRules, models.DietVegan)

	// the caller's map and slice stay untouched
	assert.Equal(t, map[string]float64{"spicy": 0.9}, profile.TastePrefs)
	assert.NotContains(t, profile.TastePrefs, "sweet")
	assert.Equal(t, []models.DietRule{models.DietHalal}, profile.DietRules)
}
