// internal/workers/nutrition/calculate-targets/handler.go
package calculatetargets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	apperrors "fitmeal-workers/internal/common/errors"
	"fitmeal-workers/internal/common/logger"
	"fitmeal-workers/internal/common/validation"
	"fitmeal-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "calculate-targets"
)

var (
	ErrNilInput = errors.New("input cannot be nil")
)

// activityMultipliers is the single source of truth for the TDEE lookup.
// moderate and active intentionally share a factor.
var activityMultipliers = map[models.ActivityLevel]float64{
	models.ActivitySedentary:  1.20,
	models.ActivityLight:      1.375,
	models.ActivityModerate:   1.55,
	models.ActivityActive:     1.55,
	models.ActivityVeryActive: 1.725,
}

// goalMultipliers scales TDEE multiplicatively rather than adding fixed
// kcal offsets, so the adjustment tracks body size.
var goalMultipliers = map[models.GoalType]float64{
	models.GoalWeightLoss: 0.80,
	models.GoalMaintain:   1.00,
	models.GoalMuscleGain: 1.10,
}

// macroRatios holds protein/carb/fat fractions of adjusted TDEE per goal.
type macroRatio struct {
	Protein float64
	Carb    float64
	Fat     float64
}

var macroRatios = map[models.GoalType]macroRatio{
	models.GoalWeightLoss: {Protein: 0.40, Carb: 0.30, Fat: 0.30},
	models.GoalMaintain:   {Protein: 0.30, Carb: 0.40, Fat: 0.30},
	models.GoalMuscleGain: {Protein: 0.35, Carb: 0.45, Fat: 0.20},
}

const (
	kcalPerGramProtein = 4.0
	kcalPerGramCarb    = 4.0
	kcalPerGramFat     = 9.0
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

	profile := &input.Profile
	if err := profile.Validate(); err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid profile: %v", err))
	}

	bmr := mifflinStJeor(profile)
	tdee := bmr * activityMultipliers[profile.ActivityLevel]
	adjusted := tdee * goalMultipliers[profile.Goal]

	ratio := macroRatios[profile.Goal]
	targets := models.NutrientTarget{
		BMR:            bmr,
		TDEE:           tdee,
		AdjustedTDEE:   adjusted,
		TargetCalories: adjusted,
		TargetProteinG: math.Round(adjusted * ratio.Protein / kcalPerGramProtein),
		TargetCarbG:    math.Round(adjusted * ratio.Carb / kcalPerGramCarb),
		TargetFatG:     math.Round(adjusted * ratio.Fat / kcalPerGramFat),
	}

	h.logger.Info("targets computed", map[string]interface{}{
		"userId":       profile.UserID,
		"bmr":          bmr,
		"tdee":         tdee,
		"adjustedTdee": adjusted,
	})

	return &Output{Targets: targets}, nil
}

// mifflinStJeor computes basal metabolic rate in kcal/day.
func mifflinStJeor(p *models.UserProfile) float64 {
	base := 10.0*p.WeightKG + 6.25*p.HeightCM - 5.0*float64(p.Age)
	if p.Sex == models.SexMale {
		return base + 5.0
	}
	return base - 161.0
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
