// internal/workers/recommendation/generate-candidates/models.go
package generatecandidates

import "fitmeal-workers/internal/models"

type Input struct {
	Targets       models.NutrientTarget `json:"nutrientTargets"`
	RequestText   string                `json:"requestText,omitempty"`
	CategoryHints []string              `json:"categoryHints,omitempty"`
	// PoolSize is how many candidates to pull. Zero means the configured
	// default; the engine raises it when the constraint filter leaves too
	// few survivors.
	PoolSize int `json:"poolSize,omitempty"`
	TopN     int `json:"topN,omitempty"`
}

type Output struct {
	Candidates    []models.MealCandidate `json:"candidates"`
	PoolSize      int                    `json:"poolSize"`
	TotalHits     int64                  `json:"totalHits"`
	DegradedFetch bool                   `json:"degradedFetch,omitempty"`
}
