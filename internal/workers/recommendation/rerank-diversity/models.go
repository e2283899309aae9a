// internal/workers/recommendation/rerank-diversity/models.go
package rerankdiversity

import "fitmeal-workers/internal/models"

type Input struct {
	Scored []models.ScoredItem `json:"scored"`
	TopN   int                 `json:"topN"`
}

type Output struct {
	Selected []models.ScoredItem `json:"selected"`
}
