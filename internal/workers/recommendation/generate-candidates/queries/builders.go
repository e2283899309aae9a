// internal/workers/recommendation/generate-candidates/queries/builders.go
package queries

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"fitmeal-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var (
	ErrUnknownQueryType = errors.New("unknown query type")
	ErrMissingIndex     = errors.New("index name is required")
)

const (
	QueryTypeMealSearch       = "meal_search"
	QueryTypeCategoryFallback = "meal_category_fallback"
)

// MealQuery describes one retrieval against the meal index.
type MealQuery struct {
	Index         string
	QueryType     string
	RequestText   string
	CategoryHints []string
	// PerMeal is the single-meal nutrition target the decay functions
	// center on.
	PerMeal  models.Nutrition
	PoolSize int
}

// BuildQuery builds the search request for the given query type.
func BuildQuery(mq MealQuery) (*esapi.SearchRequest, error) {
	if mq.Index == "" {
		return nil, ErrMissingIndex
	}

	var queryBody map[string]interface{}

	switch mq.QueryType {
	case QueryTypeMealSearch:
		queryBody = buildMealSearchQuery(mq)
	case QueryTypeCategoryFallback:
		queryBody = buildCategoryFallbackQuery(mq)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownQueryType, mq.QueryType)
	}

	body, _ := json.Marshal(queryBody)
	size := mq.PoolSize

	req := esapi.SearchRequest{
		Index: []string{mq.Index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}

	return &req, nil
}

// buildMealSearchQuery builds the primary retrieval: text relevance over
// name/tags/category wrapped in a function_score whose Gaussian decays pull
// candidates toward the per-meal kcal and protein targets.
func buildMealSearchQuery(mq MealQuery) map[string]interface{} {
	boolQuery := make(map[string]interface{})
	mustClauses := []interface{}{}
	shouldClauses := []interface{}{}

	if mq.RequestText != "" {
		mustClauses = append(mustClauses, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  mq.RequestText,
				"fields": []string{"name^3", "tags^2", "category"},
				"type":   "best_fields",
			},
		})
	}

	// Category hints boost, they never exclude.
	if len(mq.CategoryHints) > 0 {
		shouldClauses = append(shouldClauses, map[string]interface{}{
			"terms": map[string]interface{}{
				"category": mq.CategoryHints,
				"boost":    2.0,
			},
		})
	}

	if len(mustClauses) == 0 {
		mustClauses = append(mustClauses, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	boolQuery["must"] = mustClauses
	if len(shouldClauses) > 0 {
		boolQuery["should"] = shouldClauses
	}

	functions := []interface{}{}
	if mq.PerMeal.Calories > 0 {
		functions = append(functions, map[string]interface{}{
			"gauss": map[string]interface{}{
				"nutrition.kcal": map[string]interface{}{
					"origin": mq.PerMeal.Calories,
					"scale":  mq.PerMeal.Calories * 0.3,
				},
			},
		})
	}
	if mq.PerMeal.ProteinG > 0 {
		functions = append(functions, map[string]interface{}{
			"gauss": map[string]interface{}{
				"nutrition.protein": map[string]interface{}{
					"origin": mq.PerMeal.ProteinG,
					"scale":  mq.PerMeal.ProteinG * 0.5,
				},
			},
		})
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": boolQuery,
		},
	}
	if len(functions) > 0 {
		query["query"] = map[string]interface{}{
			"function_score": map[string]interface{}{
				"query":      map[string]interface{}{"bool": boolQuery},
				"functions":  functions,
				"score_mode": "multiply",
				"boost_mode": "multiply",
			},
		}
	}

	return query
}

// buildCategoryFallbackQuery builds the degraded retrieval path: a cheap
// filter-only query with no scoring functions, used when the primary query
// times out.
func buildCategoryFallbackQuery(mq MealQuery) map[string]interface{} {
	if len(mq.CategoryHints) == 0 {
		return map[string]interface{}{
			"query": map[string]interface{}{
				"match_all": map[string]interface{}{},
			},
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{
						"terms": map[string]interface{}{"category": mq.CategoryHints},
					},
				},
			},
		},
	}
}
