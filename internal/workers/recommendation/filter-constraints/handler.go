// internal/workers/recommendation/filter-constraints/handler.go
package filterconstraints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "fitmeal-workers/internal/common/errors"
	"fitmeal-workers/internal/common/logger"
	"fitmeal-workers/internal/common/metrics"
	"fitmeal-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "filter-constraints"
)

var (
	ErrNilInput = errors.New("input cannot be nil")
)

// Predicate checks one constraint family against a candidate. It returns the
// violation codes for that family, empty when the candidate passes.
type Predicate func(profile *models.UserProfile, candidate *models.MealCandidate) []string

// allergenPredicate rejects candidates sharing any allergen with the profile.
// Codes are ordered by the candidate's allergen list for determinism.
func allergenPredicate(profile *models.UserProfile, candidate *models.MealCandidate) []string {
	var violations []string
	for _, allergen := range candidate.Allergens {
		if profile.HasAllergy(allergen) {
			violations = append(violations, "allergen:"+allergen)
		}
	}
	return violations
}

// dietRulePredicate rejects candidates missing a required compat tag.
func dietRulePredicate(profile *models.UserProfile, candidate *models.MealCandidate) []string {
	var violations []string
	for _, rule := range profile.DietRules {
		if !candidate.IsCompatible(rule) {
			violations = append(violations, "diet:"+string(rule))
		}
	}
	return violations
}

// predicates is the full constraint chain, in evaluation order. Every
// predicate runs for every candidate so exclusions list all reasons, not just
// the first.
var predicates = []Predicate{
	allergenPredicate,
	dietRulePredicate,
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

	survivors := make([]models.MealCandidate, 0, len(input.Candidates))
	excluded := []models.Exclusion{}

	for _, candidate := range input.Candidates {
		var reasons []string
		for _, predicate := range predicates {
			reasons = append(reasons, predicate(&input.Profile, &candidate)...)
		}

		if len(reasons) == 0 {
			survivors = append(survivors, candidate)
			continue
		}

		for _, reason := range reasons {
			if strings.HasPrefix(reason, "allergen:") {
				metrics.CandidatesExcluded.WithLabelValues("allergen").Inc()
			} else {
				metrics.CandidatesExcluded.WithLabelValues("diet").Inc()
			}
		}

		excluded = append(excluded, models.Exclusion{
			ItemID:  candidate.ItemID,
			Name:    candidate.Name,
			Reasons: reasons,
		})
	}

	belowFloor := len(survivors) < h.config.SurvivorFloor

	h.logger.Info("constraints applied", map[string]interface{}{
		"poolSize":   len(input.Candidates),
		"survivors":  len(survivors),
		"excluded":   len(excluded),
		"belowFloor": belowFloor,
	})

	return &Output{
		Survivors:  survivors,
		Excluded:   excluded,
		BelowFloor: belowFloor,
	}, nil
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
