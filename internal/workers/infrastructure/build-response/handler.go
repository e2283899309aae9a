// internal/workers/infrastructure/build-response/handler.go
package buildresponse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	apperrors "fitmeal-workers/internal/common/errors"
	"fitmeal-workers/internal/common/logger"
	"fitmeal-workers/internal/models"
	"fitmeal-workers/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

const (
	TaskType = "build-response"
)

var (
	ErrNilInput = errors.New("input cannot be nil")
)

type Handler struct {
	config *Config
	logger logger.Logger

	mu           sync.Mutex
	outputSchema map[string]interface{}
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
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewResponseBuildError(err)
	}

	requestID := input.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	items := make([]models.ResultItem, 0, len(input.Selected))
	for i := range input.Selected {
		scored := &input.Selected[i]
		items = append(items, models.ResultItem{
			ItemID:    scored.ItemID,
			Name:      scored.Name,
			Nutrition: scored.Nutrition,
			PriceKRW:  scored.PriceKRW,
			Score:     scored.Score,
			Why:       h.annotate(scored, input.Profile, input.Target),
		})
	}

	excluded := make([]models.ExcludedItem, 0, len(input.Excluded))
	for _, ex := range input.Excluded {
		reasons := make([]string, 0, len(ex.Reasons))
		for _, code := range ex.Reasons {
			reasons = append(reasons, formatReason(code))
		}
		excluded = append(excluded, models.ExcludedItem{
			ItemID:         ex.ItemID,
			Name:           ex.Name,
			ExcludedReason: reasons,
		})
	}

	result := models.RecommendationResult{
		Items:         items,
		ExcludedItems: excluded,
		Metadata: models.ResultMetadata{
			RequestID:       requestID,
			PoolSize:        input.PoolSize,
			Relaxed:         input.Relaxed,
			DegradedFetch:   input.DegradedFetch,
			ScoringDegraded: input.ScoringDegraded,
			Notes:           input.Notes,
		},
	}

	h.validateAgainstRegistry(&result)

	h.logger.Info("response packaged", map[string]interface{}{
		"requestId": requestID,
		"items":     len(items),
		"excluded":  len(excluded),
		"relaxed":   input.Relaxed,
	})

	return &Output{Result: result}, nil
}

// annotate derives the why list for one ranked item. Annotation is a
// presentation concern: any failure degrades to an empty list instead of
// failing the whole packaging call.
func (h *Handler) annotate(item *models.ScoredItem, profile *models.UserProfile, target *models.NutrientTarget) (why []string) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn("annotation failed, returning empty why", map[string]interface{}{
				"itemId": item.ItemID,
				"reason": fmt.Sprintf("%v", r),
			})
			why = []string{}
		}
	}()

	why = []string{}
	threshold := h.config.NotableThreshold

	if item.SubScores.Nutrition >= threshold {
		why = append(why, nutritionWhy(item, target))
	}
	if item.SubScores.Taste >= threshold {
		if tag, ok := matchedTasteTag(item, profile); ok {
			why = append(why, "Matches taste preference: "+tag)
		}
	}
	if item.SubScores.History >= threshold {
		why = append(why, "Similar to meals you liked")
	}
	if item.SubScores.Cost >= threshold {
		why = append(why, "Within budget")
	}
	if profile != nil && len(profile.Allergies) > 0 {
		why = append(why, "No allergens")
	}
	return why
}

// nutritionWhy picks the more specific phrasing: when the meal tracks the
// per-meal protein target at least as closely as the calorie target, call
// out protein, otherwise calories.
func nutritionWhy(item *models.ScoredItem, target *models.NutrientTarget) string {
	if target == nil {
		return "Fits calorie target"
	}
	perMeal := target.PerMeal()
	if perMeal.ProteinG <= 0 || perMeal.Calories <= 0 {
		return "Fits calorie target"
	}
	proteinErr := math.Abs(item.Nutrition.ProteinG-perMeal.ProteinG) / perMeal.ProteinG
	calorieErr := math.Abs(item.Nutrition.Calories-perMeal.Calories) / perMeal.Calories
	if proteinErr <= calorieErr {
		return "Matches protein target"
	}
	return "Fits calorie target"
}

// matchedTasteTag returns the candidate tag the user weights highest in
// their preference vector. Ties break lexicographically for determinism.
func matchedTasteTag(item *models.ScoredItem, profile *models.UserProfile) (string, bool) {
	if profile == nil || len(profile.TastePrefs) == 0 {
		return "", false
	}

	candidateTags := make([]string, 0, len(item.Tags)+1)
	candidateTags = append(candidateTags, item.Tags...)
	if item.Category != "" {
		candidateTags = append(candidateTags, item.Category)
	}
	sort.Strings(candidateTags)

	best, bestWeight := "", 0.0
	for _, tag := range candidateTags {
		if weight, ok := profile.TastePrefs[tag]; ok && weight > bestWeight {
			best, bestWeight = tag, weight
		}
	}
	return best, best != ""
}

// formatReason turns a machine violation code into the human-readable
// exclusion phrasing.
func formatReason(code string) string {
	switch {
	case strings.HasPrefix(code, "allergen:"):
		return "Contains allergen: " + strings.TrimPrefix(code, "allergen:")
	case strings.HasPrefix(code, "diet:"):
		return "Not " + strings.TrimPrefix(code, "diet:") + "-compatible"
	default:
		return code
	}
}

// validateAgainstRegistry checks the packaged payload against the output
// schema declared in the activity registry. Violations are logged, never
// fatal: a schema drift must not drop a recommendation on the floor.
func (h *Handler) validateAgainstRegistry(result *models.RecommendationResult) {
	schema, err := h.loadOutputSchema()
	if err != nil {
		h.logger.Warn("skipping output schema validation", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if len(schema) == 0 {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		h.logger.Warn("skipping output schema validation", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	validation, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewBytesLoader(payload),
	)
	if err != nil {
		h.logger.Warn("output schema validation errored", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if !validation.Valid() {
		violations := make([]string, len(validation.Errors()))
		for i, desc := range validation.Errors() {
			violations[i] = desc.String()
		}
		h.logger.Warn("payload violates registry output schema", map[string]interface{}{
			"requestId":  result.Metadata.RequestID,
			"violations": violations,
		})
	}
}

func (h *Handler) loadOutputSchema() (map[string]interface{}, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.outputSchema != nil {
		return h.outputSchema, nil
	}

	reg, err := registry.LoadRegistry(h.config.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	activity, err := reg.FindByTaskType(TaskType)
	if err != nil {
		return nil, err
	}

	h.outputSchema = activity.OutputSchema
	return h.outputSchema, nil
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
