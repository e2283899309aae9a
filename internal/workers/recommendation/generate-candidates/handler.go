// internal/workers/recommendation/generate-candidates/handler.go
package generatecandidates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "fitmeal-workers/internal/common/errors"
	"fitmeal-workers/internal/common/logger"
	"fitmeal-workers/internal/common/metrics"
	"fitmeal-workers/internal/workers/recommendation/generate-candidates/queries"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
)

const (
	TaskType = "generate-candidates"
)

var (
	ErrNilInput = errors.New("input cannot be nil")

	// ErrRetrievalTimeout is returned when the primary query and the category
	// fallback both fail.
	ErrRetrievalTimeout error = apperrors.NewRetrievalTimeoutError("primary query and category fallback both failed")
)

type Handler struct {
	config *Config
	client *elasticsearch.Client
	logger logger.Logger
}

func NewHandler(config *Config, client *elasticsearch.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		client: client,
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

	poolSize := h.resolvePoolSize(input)
	perMeal := input.Targets.PerMeal()

	primary := queries.MealQuery{
		Index:         h.config.Index,
		QueryType:     queries.QueryTypeMealSearch,
		RequestText:   input.RequestText,
		CategoryHints: input.CategoryHints,
		PerMeal:       perMeal,
		PoolSize:      poolSize,
	}

	queryCtx, cancel := context.WithTimeout(ctx, h.config.RetrievalTimeout)
	result, err := queries.Execute(queryCtx, h.client, primary)
	cancel()
	if err == nil {
		metrics.CandidatePoolSize.WithLabelValues("primary").Observe(float64(len(result.Candidates)))
		h.logger.Info("candidates retrieved", map[string]interface{}{
			"poolSize":  len(result.Candidates),
			"totalHits": result.TotalHits,
			"tookMs":    result.Took,
		})
		return &Output{
			Candidates: result.Candidates,
			PoolSize:   len(result.Candidates),
			TotalHits:  result.TotalHits,
		}, nil
	}

	h.logger.Warn("primary retrieval failed, trying category fallback", map[string]interface{}{
		"error": err.Error(),
	})

	fallback := queries.MealQuery{
		Index:         h.config.Index,
		QueryType:     queries.QueryTypeCategoryFallback,
		CategoryHints: input.CategoryHints,
		PoolSize:      poolSize,
	}

	fallbackCtx, cancel := context.WithTimeout(ctx, h.config.RetrievalTimeout)
	defer cancel()
	result, fallbackErr := queries.Execute(fallbackCtx, h.client, fallback)
	if fallbackErr != nil {
		return nil, fmt.Errorf("%w: primary: %v, fallback: %v", ErrRetrievalTimeout, err, fallbackErr)
	}

	metrics.CandidatePoolSize.WithLabelValues("fallback").Observe(float64(len(result.Candidates)))
	metrics.DegradedFetches.Inc()
	h.logger.Warn("degraded fetch served", map[string]interface{}{
		"poolSize":  len(result.Candidates),
		"totalHits": result.TotalHits,
	})

	return &Output{
		Candidates:    result.Candidates,
		PoolSize:      len(result.Candidates),
		TotalHits:     result.TotalHits,
		DegradedFetch: true,
	}, nil
}

// resolvePoolSize applies the default sizing rule max(4*topN, default) and
// the configured cap.
func (h *Handler) resolvePoolSize(input *Input) int {
	poolSize := input.PoolSize
	if poolSize <= 0 {
		poolSize = h.config.DefaultPoolSize
		if input.TopN > 0 && 4*input.TopN > poolSize {
			poolSize = 4 * input.TopN
		}
	}
	if poolSize > h.config.MaxPoolSize {
		poolSize = h.config.MaxPoolSize
	}
	return poolSize
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
