// internal/workers/recommendation/rerank-diversity/handler.go
package rerankdiversity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	apperrors "fitmeal-workers/internal/common/errors"
	"fitmeal-workers/internal/common/logger"
	"fitmeal-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "rerank-diversity"
)

var (
	ErrNilInput = errors.New("input cannot be nil")
)

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJobError(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, ErrNilInput
	}

	topN := input.TopN
	if topN <= 0 {
		topN = 5
	}

	// Candidates arrive sorted by the scorer; re-sort defensively so the
	// greedy loop's tie-breaks stay deterministic regardless of caller.
	pool := make([]models.ScoredItem, len(input.Scored))
	copy(pool, input.Scored)
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].Score != pool[j].Score {
			return pool[i].Score > pool[j].Score
		}
		return pool[i].ItemID < pool[j].ItemID
	})

	if len(pool) > h.config.PoolTop {
		pool = pool[:h.config.PoolTop]
	}

	selected, err := h.mmr(ctx, pool, topN)
	if err != nil {
		return nil, apperrors.NewRankingFailedError(err)
	}

	h.logger.Info("diversity re-ranking completed", map[string]interface{}{
		"poolSize": len(pool),
		"selected": len(selected),
		"lambda":   h.config.Lambda,
	})

	return &Output{Selected: selected}, nil
}

// mmr runs greedy maximal marginal relevance: each round picks the candidate
// maximizing lambda*score - (1-lambda)*maxSim(candidate, selected). Each
// round is O(pool), so cancellation is checked between rounds.
func (h *Handler) mmr(ctx context.Context, pool []models.ScoredItem, topN int) ([]models.ScoredItem, error) {
	if len(pool) == 0 {
		return []models.ScoredItem{}, nil
	}

	lambda := h.config.Lambda
	selected := make([]models.ScoredItem, 0, topN)
	remaining := make([]models.ScoredItem, len(pool))
	copy(remaining, pool)

	for len(selected) < topN && len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bestIdx := -1
		bestValue := math.Inf(-1)
		for i, candidate := range remaining {
			maxSim := 0.0
			for j := range selected {
				if sim := similarity(&candidate.MealCandidate, &selected[j].MealCandidate); sim > maxSim {
					maxSim = sim
				}
			}
			value := lambda*candidate.Score - (1-lambda)*maxSim
			// remaining is score-ordered, so strict comparison keeps the
			// lowest-item-id-first tie-break from the initial sort
			if value > bestValue {
				bestValue = value
				bestIdx = i
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected, nil
}

// similarity is embedding cosine when both candidates carry embeddings of
// the same dimension, otherwise Jaccard overlap of category+tags.
func similarity(a, b *models.MealCandidate) float64 {
	if len(a.TasteEmbedding) > 0 && len(a.TasteEmbedding) == len(b.TasteEmbedding) {
		return clamp01(cosine(a.TasteEmbedding, b.TasteEmbedding))
	}
	return jaccard(tagSet(a), tagSet(b))
}

func tagSet(m *models.MealCandidate) map[string]bool {
	set := make(map[string]bool, len(m.Tags)+1)
	if m.Category != "" {
		set[m.Category] = true
	}
	for _, tag := range m.Tags {
		set[tag] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tag := range a {
		if b[tag] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func cosine(a, b []float64) float64 {
	dot, normA, normB := 0.0, 0.0, 0.0
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

// failJobError derives the broker error code from the error's taxonomy type
// instead of a literal at the call site.
func (h *Handler) failJobError(client worker.JobClient, job entities.Job, err error) {
	be := apperrors.ToBPMN(err, 0)
	msg := be.Message
	if be.Details != "" {
		msg = msg + ": " + be.Details
	}
	h.failJob(client, job, be.Code, msg)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
