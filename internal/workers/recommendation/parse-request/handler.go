// internal/workers/recommendation/parse-request/handler.go
package parserequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	apperrors "fitmeal-workers/internal/common/errors"
	"fitmeal-workers/internal/common/logger"
	"fitmeal-workers/internal/common/validation"
	"fitmeal-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "parse-request"

var (
	ErrNilInput = errors.New("input cannot be nil")
)

// dietKeywords maps request-text surface forms to diet rule codes. Korean
// forms come from the source catalog's request phrasing.
var dietKeywords = map[string]models.DietRule{
	"vegan":      models.DietVegan,
	"비건":         models.DietVegan,
	"vegetarian": models.DietVegetarian,
	"채식":         models.DietVegetarian,
	"halal":      models.DietHalal,
	"할랄":         models.DietHalal,
}

// tasteKeywords maps surface forms to canonical taste tags.
var tasteKeywords = map[string]string{
	"spicy":  "spicy",
	"매운":     "spicy",
	"매콤":     "spicy",
	"sweet":  "sweet",
	"달콤":     "sweet",
	"salty":  "salty",
	"mild":   "mild",
	"담백":     "mild",
	"savory": "savory",
	"고소":     "savory",
}

var categoryKeywords = map[string]string{
	"salad":   "salad",
	"샐러드":     "salad",
	"chicken": "chicken",
	"닭가슴살":    "chicken",
	"bowl":    "bowl",
	"덮밥":      "bowl",
	"soup":    "soup",
	"국":       "soup",
	"noodle":  "noodle",
	"면":       "noodle",
	"dessert": "dessert",
}

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

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(job.Variables), &raw); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}
	if result := validation.ValidateInput(raw, GetInputSchema()); !result.Valid {
		h.failJobError(client, job, apperrors.NewValidationError(strings.Join(result.GetErrorMessages(), "; ")))
		return
	}

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

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, ErrNilInput
	}

	text := strings.ToLower(input.RequestText)

	// The caller's profile is read-only for the duration of the call. The
	// struct copy still aliases its map and slice, so clone both before the
	// union below.
	profile := input.Profile
	profile.DietRules = append([]models.DietRule(nil), profile.DietRules...)
	prefs := make(map[string]float64, len(profile.TastePrefs))
	for tag, weight := range profile.TastePrefs {
		prefs[tag] = weight
	}
	profile.TastePrefs = prefs

	signals := ParsedSignals{
		DietRules:     []models.DietRule{},
		TasteTags:     []string{},
		CategoryHints: []string{},
	}

	// Diet keywords extend the profile's rule set. Union only: a request can
	// tighten constraints for this call, never loosen stored ones.
	seenRules := make(map[models.DietRule]bool)
	for _, r := range profile.DietRules {
		seenRules[r] = true
	}
	for keyword, rule := range dietKeywords {
		if !strings.Contains(text, keyword) {
			continue
		}
		if !containsRule(signals.DietRules, rule) {
			signals.DietRules = append(signals.DietRules, rule)
		}
		if !seenRules[rule] {
			profile.DietRules = append(profile.DietRules, rule)
			seenRules[rule] = true
		}
	}

	tasteTags := make(map[string]bool)
	for keyword, tag := range tasteKeywords {
		if strings.Contains(text, keyword) {
			tasteTags[tag] = true
		}
	}
	if !input.ResetContext {
		for _, tag := range input.ContextTags {
			tasteTags[tag] = true
		}
	}

	// New tags enter the preference vector at full weight; stored weights win
	// over request-derived ones.
	for tag := range tasteTags {
		signals.TasteTags = append(signals.TasteTags, tag)
		if _, exists := profile.TastePrefs[tag]; !exists {
			profile.TastePrefs[tag] = 1.0
		}
	}

	hints := make(map[string]bool)
	for keyword, category := range categoryKeywords {
		if strings.Contains(text, keyword) {
			hints[category] = true
		}
	}
	for hint := range hints {
		signals.CategoryHints = append(signals.CategoryHints, hint)
	}

	// Map iteration order is random; sort for stable downstream output.
	sort.Slice(signals.DietRules, func(i, j int) bool { return signals.DietRules[i] < signals.DietRules[j] })
	sort.Strings(signals.TasteTags)
	sort.Strings(signals.CategoryHints)

	h.logger.Info("request parsed", map[string]interface{}{
		"dietRules":     signals.DietRules,
		"tasteTags":     signals.TasteTags,
		"categoryHints": signals.CategoryHints,
		"resetContext":  input.ResetContext,
	})

	return &Output{Profile: profile, Signals: signals}, nil
}

func containsRule(rules []models.DietRule, rule models.DietRule) bool {
	for _, r := range rules {
		if r == rule {
			return true
		}
	}
	return false
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
