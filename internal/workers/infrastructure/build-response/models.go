// internal/workers/infrastructure/build-response/models.go
package buildresponse

import "fitmeal-workers/internal/models"

type Input struct {
	RequestID       string                 `json:"requestId"`
	Profile         *models.UserProfile    `json:"profile,omitempty"`
	Target          *models.NutrientTarget `json:"target,omitempty"`
	Selected        []models.ScoredItem    `json:"selected"`
	Excluded        []models.Exclusion     `json:"excluded,omitempty"`
	PoolSize        int                    `json:"poolSize"`
	Relaxed         bool                   `json:"relaxed"`
	DegradedFetch   bool                   `json:"degradedFetch"`
	ScoringDegraded bool                   `json:"scoringDegraded"`
	Notes           []string               `json:"notes,omitempty"`
}

type Output struct {
	Result models.RecommendationResult `json:"result"`
}
