// internal/workers/recommendation/generate-candidates/queries/registry.go
package queries

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fitmeal-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

type QueryResult struct {
	Candidates []models.MealCandidate
	TotalHits  int64
	MaxScore   float64
	Took       int64 // milliseconds
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		MaxScore *float64 `json:"max_score"`
		Hits     []struct {
			ID     string          `json:"_id"`
			Score  *float64        `json:"_score"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Execute runs the query and maps hits into meal candidates. The hit _score
// becomes the candidate's retrieval score; filter-only queries carry no score
// and map to 0.
func Execute(ctx context.Context, esClient *elasticsearch.Client, mq MealQuery) (*QueryResult, error) {
	req, err := BuildQuery(mq)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := req.Do(ctx, esClient)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search query failed: %s", res.String())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, err
	}

	candidates := make([]models.MealCandidate, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		var candidate models.MealCandidate
		if err := json.Unmarshal(hit.Source, &candidate); err != nil {
			return nil, fmt.Errorf("decode hit %s: %w", hit.ID, err)
		}
		if candidate.ItemID == "" {
			candidate.ItemID = hit.ID
		}
		if hit.Score != nil {
			candidate.RetrievalScore = *hit.Score
		}
		candidates = append(candidates, candidate)
	}

	maxScore := 0.0
	if r.Hits.MaxScore != nil {
		maxScore = *r.Hits.MaxScore
	}

	return &QueryResult{
		Candidates: candidates,
		TotalHits:  r.Hits.Total.Value,
		MaxScore:   maxScore,
		Took:       time.Since(start).Milliseconds(),
	}, nil
}
