// internal/workers/recommendation/filter-constraints/models.go
package filterconstraints

import "fitmeal-workers/internal/models"

type Input struct {
	Profile    models.UserProfile     `json:"userProfile"`
	Candidates []models.MealCandidate `json:"candidates"`
}

type Output struct {
	Survivors []models.MealCandidate `json:"survivors"`
	Excluded  []models.Exclusion     `json:"excluded"`
	// BelowFloor reports that fewer survivors remain than the configured
	// floor, so the engine should expand the pool or mark the result relaxed.
	BelowFloor bool `json:"belowFloor"`
}
