// internal/workers/recommendation/score-relevance/handler.go
package scorerelevance

import (
	"context"
	"database/sql"
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
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "score-relevance"
)

var ErrNilInput = errors.New("input cannot be nil")

// ErrProfileMissing is fatal: with no inline profile and no user id there is
// nothing to score against.
var ErrProfileMissing error = apperrors.NewValidationError("profile missing and no user id to resolve it")

type Handler struct {
	config *Config
	db     *sql.DB
	redis  *redis.Client
	logger logger.Logger
}

func NewHandler(config *Config, db *sql.DB, redisClient *redis.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		db:     db,
		redis:  redisClient,
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

	profile := input.Profile
	if profile == nil {
		if input.UserID == "" {
			return nil, ErrProfileMissing
		}
		fetched, err := h.getUserProfile(ctx, input.UserID)
		if err != nil {
			return nil, fmt.Errorf("resolve profile for %s: %w", input.UserID, err)
		}
		profile = fetched
	}

	history, degraded := h.loadHistory(ctx, profile.UserID)
	perMeal := input.Targets.PerMeal()

	scored := make([]models.ScoredItem, 0, len(input.Survivors))
	for _, candidate := range input.Survivors {
		sub := models.SubScores{
			Nutrition: nutritionScore(&candidate.Nutrition, &perMeal),
			Taste:     tasteScore(profile.TastePrefs, &candidate),
			History:   historyScore(candidate.TasteEmbedding, history),
			Cost:      costScore(candidate.PriceKRW, profile.BudgetKRW),
		}

		score := h.config.WeightNutrition*sub.Nutrition +
			h.config.WeightTaste*sub.Taste +
			h.config.WeightHistory*sub.History +
			h.config.WeightCost*sub.Cost

		scored = append(scored, models.ScoredItem{
			MealCandidate: candidate,
			Score:         score,
			SubScores:     sub,
		})
	}

	// Deterministic ordering: score descending, item id ascending on ties.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ItemID < scored[j].ItemID
	})

	h.logger.Info("scoring completed", map[string]interface{}{
		"userId":          profile.UserID,
		"itemCount":       len(scored),
		"scoringDegraded": degraded,
	})

	return &Output{Scored: scored, ScoringDegraded: degraded}, nil
}

func (h *Handler) getUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	cacheKey := "user:profile:" + userID
	if h.redis != nil {
		if val, err := h.redis.Get(ctx, cacheKey).Result(); err == nil {
			var profile models.UserProfile
			if err := json.Unmarshal([]byte(val), &profile); err == nil {
				return &profile, nil
			}
		}
	}

	if h.db == nil {
		return nil, errors.New("profile store unavailable")
	}

	row := h.db.QueryRowContext(ctx, `
		SELECT age, sex, height_cm, weight_kg, activity_level, goal,
		       allergies, diet_rules, taste_prefs, budget_krw
		FROM user_profiles WHERE user_id = $1`, userID)

	profile := models.UserProfile{UserID: userID}
	var allergies, dietRules, tastePrefs []byte
	err := row.Scan(
		&profile.Age, &profile.Sex, &profile.HeightCM, &profile.WeightKG,
		&profile.ActivityLevel, &profile.Goal,
		&allergies, &dietRules, &tastePrefs, &profile.BudgetKRW,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewResourceNotFoundError("postgres", "user profile "+userID)
		}
		return nil, apperrors.NewExternalServiceError("postgres", err)
	}

	if err := json.Unmarshal(allergies, &profile.Allergies); err != nil {
		profile.Allergies = []string{}
	}
	if err := json.Unmarshal(dietRules, &profile.DietRules); err != nil {
		profile.DietRules = []models.DietRule{}
	}
	if err := json.Unmarshal(tastePrefs, &profile.TastePrefs); err != nil {
		profile.TastePrefs = map[string]float64{}
	}

	if h.redis != nil {
		data, _ := json.Marshal(profile)
		h.redis.Set(ctx, cacheKey, data, h.config.CacheTTL)
	}

	return &profile, nil
}

// loadHistory reads liked-item embeddings. Any failure degrades the history
// signal to zero rather than failing the call.
func (h *Handler) loadHistory(ctx context.Context, userID string) ([][]float64, bool) {
	if h.redis == nil {
		return nil, true
	}
	// an anonymous call has no history to read; like redis.Nil below this is
	// absence, not degradation
	if userID == "" {
		return nil, false
	}

	val, err := h.redis.Get(ctx, "user:history:"+userID).Result()
	if err != nil {
		if err != redis.Nil {
			h.logger.Warn("history store unavailable", map[string]interface{}{
				"userId": userID,
				"error":  err.Error(),
			})
			return nil, true
		}
		// no history yet is not a degradation
		return nil, false
	}

	var history [][]float64
	if err := json.Unmarshal([]byte(val), &history); err != nil {
		h.logger.Warn("history payload malformed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		return nil, true
	}
	return history, false
}

// nutritionScore is 1 minus the mean absolute relative error across the
// tracked nutrients, clamped to [0,1]. Nutrients without a positive target
// are skipped.
func nutritionScore(actual *models.Nutrition, target *models.Nutrition) float64 {
	type pair struct{ actual, target float64 }
	pairs := []pair{
		{actual.Calories, target.Calories},
		{actual.ProteinG, target.ProteinG},
		{actual.CarbG, target.CarbG},
		{actual.FatG, target.FatG},
	}

	sum := 0.0
	count := 0
	for _, p := range pairs {
		if p.target <= 0 {
			continue
		}
		sum += math.Abs(p.actual-p.target) / p.target
		count++
	}
	if count == 0 {
		return 0
	}
	return clamp01(1 - sum/float64(count))
}

// tasteScore is the cosine between the user's sparse tag-weight vector and
// the candidate's tag set (tags and category at weight 1).
func tasteScore(prefs map[string]float64, candidate *models.MealCandidate) float64 {
	if len(prefs) == 0 {
		return 0
	}

	candidateTags := make(map[string]float64, len(candidate.Tags)+1)
	for _, tag := range candidate.Tags {
		candidateTags[tag] = 1.0
	}
	if candidate.Category != "" {
		candidateTags[candidate.Category] = 1.0
	}
	if len(candidateTags) == 0 {
		return 0
	}

	dot := 0.0
	for tag, weight := range prefs {
		dot += weight * candidateTags[tag]
	}

	normPrefs := 0.0
	for _, weight := range prefs {
		normPrefs += weight * weight
	}
	normTags := float64(len(candidateTags))

	denom := math.Sqrt(normPrefs) * math.Sqrt(normTags)
	if denom == 0 {
		return 0
	}
	return clamp01(dot / denom)
}

// historyScore is the max cosine similarity against liked-item embeddings.
func historyScore(embedding []float64, history [][]float64) float64 {
	if len(embedding) == 0 || len(history) == 0 {
		return 0
	}
	best := 0.0
	for _, liked := range history {
		if sim := cosine(embedding, liked); sim > best {
			best = sim
		}
	}
	return clamp01(best)
}

// costScore is 1 within budget, then decays linearly with the overage ratio.
// No budget means cost never penalizes.
func costScore(priceKRW, budgetKRW int) float64 {
	if budgetKRW <= 0 || priceKRW <= budgetKRW {
		return 1
	}
	overage := float64(priceKRW-budgetKRW) / float64(budgetKRW)
	return clamp01(1 - overage)
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
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
