// internal/models/meal.go
package models

// Nutrition holds the per-serving nutrition facts stored with each meal
// document in the candidate index.
type Nutrition struct {
	Calories float64 `json:"kcal"`
	ProteinG float64 `json:"protein"`
	CarbG    float64 `json:"carb"`
	FatG     float64 `json:"fat"`
	SodiumMG float64 `json:"sodiumMg,omitempty"`
}

// MealCandidate is one item of the retrieval pool. Candidates are read-only
// to the engine: filtering partitions them and scoring wraps them, neither
// mutates them.
type MealCandidate struct {
	ItemID         string     `json:"itemId"`
	Name           string     `json:"name"`
	Category       string     `json:"category"`
	Tags           []string   `json:"tags,omitempty"`
	Nutrition      Nutrition  `json:"nutrition"`
	Allergens      []string   `json:"allergens,omitempty"`
	DietCompat     []DietRule `json:"dietCompat,omitempty"`
	PriceKRW       int        `json:"priceKrw"`
	TasteEmbedding []float64  `json:"tasteEmbedding,omitempty"`
	// RetrievalScore is the coarse similarity score assigned by the
	// Candidate Source (Elasticsearch _score).
	RetrievalScore float64 `json:"retrievalScore"`
}

// HasTag reports whether the candidate carries the tag in Tags or Category.
func (m *MealCandidate) HasTag(tag string) bool {
	if m.Category == tag {
		return true
	}
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// IsCompatible reports whether the candidate satisfies the diet rule.
func (m *MealCandidate) IsCompatible(rule DietRule) bool {
	for _, d := range m.DietCompat {
		if d == rule {
			return true
		}
	}
	return false
}
