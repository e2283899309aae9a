// internal/workers/recommendation/rerank-diversity/handler_test.go
package rerankdiversity

import (
	"context"
	"fmt"
	"testing"
	"time"

	apperrors "fitmeal-workers/internal/common/errors"
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
		Timeout: 3 * time.Second,
		Lambda:  0.7,
		PoolTop: 100,
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

func scoredItem(id, category string, tags []string, score float64) models.ScoredItem {
	return models.ScoredItem{
		MealCandidate: models.MealCandidate{
			ItemID:   id,
			Name:     id,
			Category: category,
			Tags:     tags,
		},
		Score: score,
	}
}

// meanPairwiseSimilarity over category+tag Jaccard.
func meanPairwiseSimilarity(items []models.ScoredItem) float64 {
	if len(items) < 2 {
		return 0
	}
	sum, pairs := 0.0, 0
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			sum += similarity(&items[i].MealCandidate, &items[j].MealCandidate)
			pairs++
		}
	}
	return sum / float64(pairs)
}

// ==========================
// Similarity Unit Tests
// ==========================

func TestSimilarity(t *testing.T) {
	t.Run("embedding cosine preferred", func(t *testing.T) {
		a := models.MealCandidate{TasteEmbedding: []float64{1, 0}}
		b := models.MealCandidate{TasteEmbedding: []float64{1, 0}}
		assert.InDelta(t, 1.0, similarity(&a, &b), 0.0001)

		c := models.MealCandidate{TasteEmbedding: []float64{0, 1}}
		assert.InDelta(t, 0.0, similarity(&a, &c), 0.0001)
	})

	t.Run("jaccard fallback on tags", func(t *testing.T) {
		a := models.MealCandidate{Category: "bowl", Tags: []string{"chicken", "spicy"}}
		b := models.MealCandidate{Category: "bowl", Tags: []string{"chicken", "mild"}}
		// overlap {bowl, chicken} of union {bowl, chicken, spicy, mild}
		assert.InDelta(t, 0.5, similarity(&a, &b), 0.0001)
	})

	t.Run("dimension mismatch falls back to jaccard", func(t *testing.T) {
		a := models.MealCandidate{Category: "bowl", TasteEmbedding: []float64{1, 0}}
		b := models.MealCandidate{Category: "bowl", TasteEmbedding: []float64{1, 0, 0}}
		assert.InDelta(t, 1.0, similarity(&a, &b), 0.0001)
	})

	t.Run("no tags no embedding", func(t *testing.T) {
		a := models.MealCandidate{}
		b := models.MealCandidate{}
		assert.Equal(t, 0.0, similarity(&a, &b))
	})
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_LambdaOneKeepsScoreOrder(t *testing.T) {
	config := createTestConfig()
	config.Lambda = 1.0
	handler := NewHandler(config, newTestLogger(t))

	input := &Input{
		Scored: []models.ScoredItem{
			scoredItem("meal-1", "bowl", []string{"chicken"}, 0.9),
			scoredItem("meal-2", "bowl", []string{"chicken"}, 0.8),
			scoredItem("meal-3", "salad", []string{"tofu"}, 0.7),
		},
		TopN: 3,
	}

	output, err := handler.Execute(context.Background(), input)

	require.NoError(t, err)
	require.Len(t, output.Selected, 3)
	assert.Equal(t, "meal-1", output.Selected[0].ItemID)
	assert.Equal(t, "meal-2", output.Selected[1].ItemID)
	assert.Equal(t, "meal-3", output.Selected[2].ItemID)
}

func TestHandler_Execute_DiversityPromotesDistinctItems(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	// three near-identical chicken bowls crowd the top, a salad sits below
	input := &Input{
		Scored: []models.ScoredItem{
			scoredItem("bowl-1", "bowl", []string{"chicken", "spicy"}, 0.90),
			scoredItem("bowl-2", "bowl", []string{"chicken", "spicy"}, 0.89),
			scoredItem("bowl-3", "bowl", []string{"chicken", "spicy"}, 0.88),
			scoredItem("salad-1", "salad", []string{"tofu", "mild"}, 0.70),
		},
		TopN: 2,
	}

	output, err := handler.Execute(context.Background(), input)

	require.NoError(t, err)
	require.Len(t, output.Selected, 2)
	assert.Equal(t, "bowl-1", output.Selected[0].ItemID)
	// the dissimilar salad beats the duplicate bowls despite a lower score:
	// bowl-2 marginal = 0.7*0.89 - 0.3*1.0 = 0.323, salad = 0.7*0.70 = 0.49
	assert.Equal(t, "salad-1", output.Selected[1].ItemID)
}

func TestHandler_Execute_DiversityRegression(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	var pool []models.ScoredItem
	categories := []string{"bowl", "salad", "soup", "noodle"}
	for i := 0; i < 40; i++ {
		category := categories[i%len(categories)]
		pool = append(pool, scoredItem(
			fmt.Sprintf("meal-%02d", i),
			category,
			[]string{category + "-base", fmt.Sprintf("flavor-%d", i%3)},
			1.0-float64(i)*0.01,
		))
	}

	output, err := handler.Execute(context.Background(), &Input{Scored: pool, TopN: 8})
	require.NoError(t, err)
	require.Len(t, output.Selected, 8)

	naive := pool[:8]
	assert.LessOrEqual(t, meanPairwiseSimilarity(output.Selected), meanPairwiseSimilarity(naive))
}

func TestHandler_Execute_PoolTopCap(t *testing.T) {
	config := createTestConfig()
	config.PoolTop = 3
	handler := NewHandler(config, newTestLogger(t))

	input := &Input{
		Scored: []models.ScoredItem{
			scoredItem("meal-1", "bowl", nil, 0.9),
			scoredItem("meal-2", "salad", nil, 0.8),
			scoredItem("meal-3", "soup", nil, 0.7),
			scoredItem("meal-4", "noodle", nil, 0.6),
		},
		TopN: 4,
	}

	output, err := handler.Execute(context.Background(), input)

	require.NoError(t, err)
	// meal-4 never entered the greedy pool
	assert.Len(t, output.Selected, 3)
	for _, item := range output.Selected {
		assert.NotEqual(t, "meal-4", item.ItemID)
	}
}

func TestHandler_Execute_FewerThanTopN(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Scored: []models.ScoredItem{scoredItem("meal-1", "bowl", nil, 0.9)},
		TopN:   5,
	})

	require.NoError(t, err)
	assert.Len(t, output.Selected, 1)
}

func TestHandler_Execute_EmptyPool(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{TopN: 5})

	require.NoError(t, err)
	assert.Empty(t, output.Selected)
}

func TestHandler_Execute_NilInput(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	output, err := handler.Execute(context.Background(), nil)

	assert.ErrorIs(t, err, ErrNilInput)
	assert.Nil(t, output)
}

func TestHandler_Execute_Cancellation(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	output, err := handler.Execute(ctx, &Input{
		Scored: []models.ScoredItem{scoredItem("meal-1", "bowl", nil, 0.9)},
		TopN:   5,
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeRankingFailed))
	assert.Nil(t, output)
}

func TestHandler_Execute_Deterministic(t *testing.T) {
	handler := NewHandler(createTestConfig(), newTestLogger(t))

	input := &Input{
		Scored: []models.ScoredItem{
			scoredItem("meal-b", "bowl", []string{"chicken"}, 0.8),
			scoredItem("meal-a", "bowl", []string{"chicken"}, 0.8),
			scoredItem("meal-c", "salad", []string{"tofu"}, 0.8),
		},
		TopN: 3,
	}

	first, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := handler.Execute(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, first.Selected, again.Selected)
	}
}
