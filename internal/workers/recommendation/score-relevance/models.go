// internal/workers/recommendation/score-relevance/models.go
package scorerelevance

import "fitmeal-workers/internal/models"

type Input struct {
	UserID string `json:"userId,omitempty"`
	// Profile may be carried inline; when absent it is resolved through the
	// Redis cache and Postgres profile store using UserID.
	Profile   *models.UserProfile    `json:"userProfile,omitempty"`
	Targets   models.NutrientTarget  `json:"nutrientTargets"`
	Survivors []models.MealCandidate `json:"survivors"`
}

type Output struct {
	Scored []models.ScoredItem `json:"scored"`
	// ScoringDegraded marks that the historical signal was unavailable and
	// S_hist contributed 0 for every item.
	ScoringDegraded bool `json:"scoringDegraded,omitempty"`
}
