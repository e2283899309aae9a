// internal/workers/recommendation/parse-request/models.go
package parserequest

import "fitmeal-workers/internal/models"

type Input struct {
	Profile     models.UserProfile `json:"userProfile"`
	RequestText string             `json:"requestText"`
	// ContextTags are taste tags carried over from earlier turns of the same
	// conversation. The caller passes them explicitly; there is no ambient
	// session state on this side.
	ContextTags  []string `json:"contextTags,omitempty"`
	ResetContext bool     `json:"resetContext,omitempty"`
}

type Output struct {
	Profile models.UserProfile `json:"userProfile"`
	Signals ParsedSignals      `json:"parsedSignals"`
}

// ParsedSignals are the request-text extractions, kept separately from the
// merged profile so downstream stages can tell stored preferences from
// per-request ones.
type ParsedSignals struct {
	DietRules     []models.DietRule `json:"dietRules"`
	TasteTags     []string          `json:"tasteTags"`
	CategoryHints []string          `json:"categoryHints"`
}
