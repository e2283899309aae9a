// internal/workers/recommendation/generate-candidates/handler_test.go
package generatecandidates

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "fitmeal-workers/internal/common/errors"
	"fitmeal-workers/internal/common/logger"
	"fitmeal-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		Timeout:          3 * time.Second,
		RetrievalTimeout: 200 * time.Millisecond,
		Index:            "meals",
		DefaultPoolSize:  40,
		MaxPoolSize:      1000,
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

const searchResponseJSON = `{
	"took": 3,
	"hits": {
		"total": {"value": 2},
		"max_score": 1.8,
		"hits": [
			{
				"_id": "meal-1",
				"_score": 1.8,
				"_source": {
					"itemId": "meal-1",
					"name": "Grilled Chicken Salad",
					"category": "salad",
					"tags": ["chicken", "mild"],
					"nutrition": {"kcal": 420, "protein": 38, "carb": 22, "fat": 18},
					"priceKrw": 9500
				}
			},
			{
				"_id": "meal-2",
				"_score": 1.2,
				"_source": {
					"name": "Tofu Bowl",
					"category": "bowl",
					"tags": ["vegan"],
					"nutrition": {"kcal": 510, "protein": 25, "carb": 60, "fat": 16},
					"priceKrw": 8000
				}
			}
		]
	}
}`

// newTestES serves canned search responses through the real client transport.
func newTestES(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{server.URL},
	})
	require.NoError(t, err)
	return client
}

func writeSearchResponse(w http.ResponseWriter) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, searchResponseJSON)
}

func validInput() *Input {
	return &Input{
		Targets: models.NutrientTarget{
			TargetCalories: 2076,
			TargetProteinG: 208,
			TargetCarbG:    156,
			TargetFatG:     69,
		},
		RequestText:   "chicken salad",
		CategoryHints: []string{"salad"},
		TopN:          5,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_PrimarySuccess(t *testing.T) {
	client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		writeSearchResponse(w)
	})
	handler := NewHandler(createTestConfig(), client, newTestLogger(t))

	output, err := handler.Execute(context.Background(), validInput())

	assert.NoError(t, err)
	require.NotNil(t, output)
	assert.False(t, output.DegradedFetch)
	assert.Equal(t, 2, output.PoolSize)
	assert.Equal(t, int64(2), output.TotalHits)

	first := output.Candidates[0]
	assert.Equal(t, "meal-1", first.ItemID)
	assert.Equal(t, "Grilled Chicken Salad", first.Name)
	assert.Equal(t, 1.8, first.RetrievalScore)
	assert.Equal(t, 420.0, first.Nutrition.Calories)

	// _id backfills a missing itemId
	assert.Equal(t, "meal-2", output.Candidates[1].ItemID)
}

func TestHandler_Execute_FallbackOnTimeout(t *testing.T) {
	var calls int64
	client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			// stall past the retrieval deadline
			time.Sleep(400 * time.Millisecond)
			return
		}
		writeSearchResponse(w)
	})
	handler := NewHandler(createTestConfig(), client, newTestLogger(t))

	output, err := handler.Execute(context.Background(), validInput())

	assert.NoError(t, err)
	require.NotNil(t, output)
	assert.True(t, output.DegradedFetch)
	assert.Equal(t, 2, output.PoolSize)
}

func TestHandler_Execute_FallbackOnServerError(t *testing.T) {
	var calls int64
	client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			w.Header().Set("X-Elastic-Product", "Elasticsearch")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeSearchResponse(w)
	})
	handler := NewHandler(createTestConfig(), client, newTestLogger(t))

	output, err := handler.Execute(context.Background(), validInput())

	assert.NoError(t, err)
	require.NotNil(t, output)
	assert.True(t, output.DegradedFetch)
}

func TestHandler_Execute_BothPathsFail(t *testing.T) {
	client := newTestES(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	handler := NewHandler(createTestConfig(), client, newTestLogger(t))

	output, err := handler.Execute(context.Background(), validInput())

	assert.ErrorIs(t, err, ErrRetrievalTimeout)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeRetrievalTimeout))
	assert.Nil(t, output)
}

func TestHandler_Execute_NilInput(t *testing.T) {
	handler := NewHandler(createTestConfig(), nil, newTestLogger(t))

	output, err := handler.Execute(context.Background(), nil)

	assert.ErrorIs(t, err, ErrNilInput)
	assert.Nil(t, output)
}

// ==========================
// Pool Sizing
// ==========================

func TestHandler_ResolvePoolSize(t *testing.T) {
	handler := NewHandler(createTestConfig(), nil, newTestLogger(t))

	tests := []struct {
		name     string
		input    *Input
		expected int
	}{
		{"explicit pool size wins", &Input{PoolSize: 120, TopN: 5}, 120},
		{"default when unset", &Input{TopN: 5}, 40},
		{"4x topN when larger than default", &Input{TopN: 25}, 100},
		{"capped at max", &Input{PoolSize: 5000}, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, handler.resolvePoolSize(tt.input))
		})
	}
}
