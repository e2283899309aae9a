// internal/models/recommendation.go
package models

// NutrientTarget is the daily energy and macro target derived from a
// profile. Values are kcal and grams per day.
type NutrientTarget struct {
	BMR            float64 `json:"bmr"`
	TDEE           float64 `json:"tdee"`
	AdjustedTDEE   float64 `json:"adjustedTdee"`
	TargetCalories float64 `json:"targetCalories"`
	TargetProteinG float64 `json:"targetProteinG"`
	TargetCarbG    float64 `json:"targetCarbG"`
	TargetFatG     float64 `json:"targetFatG"`
}

// PerMeal returns the single-meal share of the daily target. Scoring compares
// one meal against a third of the daily target.
func (t NutrientTarget) PerMeal() Nutrition {
	return Nutrition{
		Calories: t.TargetCalories / 3,
		ProteinG: t.TargetProteinG / 3,
		CarbG:    t.TargetCarbG / 3,
		FatG:     t.TargetFatG / 3,
	}
}

// SubScores are the per-factor contributions behind a composite score, each
// in [0,1]. Kept so the packager can explain why an item ranked.
type SubScores struct {
	Nutrition float64 `json:"nutrition"`
	Taste     float64 `json:"taste"`
	History   float64 `json:"history"`
	Cost      float64 `json:"cost"`
}

// ScoredItem is a surviving candidate with its composite relevance score.
type ScoredItem struct {
	MealCandidate
	Score     float64   `json:"score"`
	SubScores SubScores `json:"subScores"`
}

// Exclusion records one candidate removed by the constraint filter, with the
// ordered machine-readable violation codes (e.g. "allergen:peanut").
type Exclusion struct {
	ItemID  string   `json:"itemId"`
	Name    string   `json:"name"`
	Reasons []string `json:"reasons"`
}

// ResultItem is one entry of the final ranked list.
type ResultItem struct {
	ItemID    string    `json:"item_id"`
	Name      string    `json:"name"`
	Nutrition Nutrition `json:"nutrition"`
	PriceKRW  int       `json:"price_krw"`
	Score     float64   `json:"score"`
	Why       []string  `json:"why,omitempty"`
}

// ExcludedItem is one entry of the excluded list, with human-checkable
// reasons derived from filter violation codes.
type ExcludedItem struct {
	ItemID         string   `json:"item_id"`
	Name           string   `json:"name"`
	ExcludedReason []string `json:"excluded_reason"`
}

// ResultMetadata describes how the call degraded, if at all.
type ResultMetadata struct {
	RequestID       string   `json:"requestId"`
	PoolSize        int      `json:"poolSize"`
	Relaxed         bool     `json:"relaxed"`
	DegradedFetch   bool     `json:"degradedFetch,omitempty"`
	ScoringDegraded bool     `json:"scoringDegraded,omitempty"`
	Notes           []string `json:"notes,omitempty"`
}

// RecommendationResult is the terminal output of one recommendation call.
// Invariants: Items satisfy every hard constraint, Items and ExcludedItems
// never overlap, and identical inputs produce identical ordering.
type RecommendationResult struct {
	Items         []ResultItem   `json:"items"`
	ExcludedItems []ExcludedItem `json:"excluded_items"`
	Metadata      ResultMetadata `json:"metadata"`
}
