// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"

	"fitmeal-workers/internal/common/config"
	apperrors "fitmeal-workers/internal/common/errors"
	"fitmeal-workers/internal/common/logger"
	"fitmeal-workers/internal/common/metrics"
	"fitmeal-workers/internal/models"

	buildresponse "fitmeal-workers/internal/workers/infrastructure/build-response"
	calculatetargets "fitmeal-workers/internal/workers/nutrition/calculate-targets"
	filterconstraints "fitmeal-workers/internal/workers/recommendation/filter-constraints"
	generatecandidates "fitmeal-workers/internal/workers/recommendation/generate-candidates"
	parserequest "fitmeal-workers/internal/workers/recommendation/parse-request"
	rerankdiversity "fitmeal-workers/internal/workers/recommendation/rerank-diversity"
	scorerelevance "fitmeal-workers/internal/workers/recommendation/score-relevance"
)

// State tracks where a recommendation call is in the pipeline. It is carried
// in logs and wrapped into stage errors so a failed call names the stage
// that killed it.
type State string

const (
	StateReceived          State = "received"
	StateTargetsComputed   State = "targets_computed"
	StateCandidatesFetched State = "candidates_fetched"
	StateFiltered          State = "filtered"
	StateScored            State = "scored"
	StateReRanked          State = "reranked"
	StatePackaged          State = "packaged"
)

var (
	ErrNilRequest = errors.New("request cannot be nil")
)

// Stage interfaces mirror the workers' broker-free Execute methods, so the
// engine can chain the same handlers Zeebe dispatches to, and tests can
// substitute fakes for the stages with external collaborators.
type RequestParser interface {
	Execute(ctx context.Context, input *parserequest.Input) (*parserequest.Output, error)
}

type TargetCalculator interface {
	Execute(ctx context.Context, input *calculatetargets.Input) (*calculatetargets.Output, error)
}

type CandidateGenerator interface {
	Execute(ctx context.Context, input *generatecandidates.Input) (*generatecandidates.Output, error)
}

type ConstraintFilter interface {
	Execute(ctx context.Context, input *filterconstraints.Input) (*filterconstraints.Output, error)
}

type RelevanceScorer interface {
	Execute(ctx context.Context, input *scorerelevance.Input) (*scorerelevance.Output, error)
}

type DiversityReranker interface {
	Execute(ctx context.Context, input *rerankdiversity.Input) (*rerankdiversity.Output, error)
}

type ResponseBuilder interface {
	Execute(ctx context.Context, input *buildresponse.Input) (*buildresponse.Output, error)
}

// Stages bundles the seven pipeline handlers.
type Stages struct {
	Parser    RequestParser
	Targets   TargetCalculator
	Generator CandidateGenerator
	Filter    ConstraintFilter
	Scorer    RelevanceScorer
	Reranker  DiversityReranker
	Builder   ResponseBuilder
}

// Request is one in-process recommendation call.
type Request struct {
	RequestID    string             `json:"requestId,omitempty"`
	Profile      models.UserProfile `json:"userProfile"`
	RequestText  string             `json:"requestText,omitempty"`
	ContextTags  []string           `json:"contextTags,omitempty"`
	ResetContext bool               `json:"resetContext,omitempty"`
	TopN         int                `json:"topN,omitempty"`
	PoolSize     int                `json:"poolSize,omitempty"`
}

// Engine runs the recommendation pipeline in process, stage by stage,
// including the pool-expansion loop the BPMN model delegates to it.
type Engine struct {
	config *config.EngineConfig
	stages Stages
	logger logger.Logger
}

func New(cfg *config.EngineConfig, stages Stages, log logger.Logger) *Engine {
	return &Engine{
		config: cfg,
		stages: stages,
		logger: log.WithFields(map[string]interface{}{"component": "engine"}),
	}
}

// Recommend drives one request through every stage and returns the packaged
// result. The state machine is linear; the only loop is pool expansion when
// the constraint filter leaves fewer survivors than the floor.
func (e *Engine) Recommend(ctx context.Context, req *Request) (*models.RecommendationResult, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	state := StateReceived
	e.logState(req.RequestID, state)

	parsed, err := e.stages.Parser.Execute(ctx, &parserequest.Input{
		Profile:      req.Profile,
		RequestText:  req.RequestText,
		ContextTags:  req.ContextTags,
		ResetContext: req.ResetContext,
	})
	if err != nil {
		return nil, e.stageError(state, err)
	}
	profile := parsed.Profile

	targets, err := e.stages.Targets.Execute(ctx, &calculatetargets.Input{Profile: profile})
	if err != nil {
		return nil, e.stageError(state, err)
	}
	state = StateTargetsComputed
	e.logState(req.RequestID, state)

	fetched, filtered, expansions, err := e.fetchAndFilter(ctx, req, &profile, &targets.Targets, parsed.Signals.CategoryHints)
	if err != nil {
		return nil, err
	}
	state = StateFiltered
	e.logState(req.RequestID, state)

	relaxed := filtered.BelowFloor
	if relaxed {
		metrics.RelaxedResults.Inc()
	}

	scored, err := e.stages.Scorer.Execute(ctx, &scorerelevance.Input{
		UserID:    profile.UserID,
		Profile:   &profile,
		Targets:   targets.Targets,
		Survivors: filtered.Survivors,
	})
	if err != nil {
		return nil, e.stageError(state, err)
	}
	state = StateScored
	e.logState(req.RequestID, state)

	reranked, err := e.stages.Reranker.Execute(ctx, &rerankdiversity.Input{
		Scored: scored.Scored,
		TopN:   req.TopN,
	})
	if err != nil {
		return nil, e.stageError(state, err)
	}
	state = StateReRanked
	e.logState(req.RequestID, state)

	built, err := e.stages.Builder.Execute(ctx, &buildresponse.Input{
		RequestID:       req.RequestID,
		Profile:         &profile,
		Target:          &targets.Targets,
		Selected:        reranked.Selected,
		Excluded:        filtered.Excluded,
		PoolSize:        fetched.PoolSize,
		Relaxed:         relaxed,
		DegradedFetch:   fetched.DegradedFetch,
		ScoringDegraded: scored.ScoringDegraded,
		Notes:           e.notes(relaxed, expansions, fetched.DegradedFetch, scored.ScoringDegraded),
	})
	if err != nil {
		return nil, e.stageError(state, err)
	}
	state = StatePackaged
	e.logState(req.RequestID, state)

	return &built.Result, nil
}

// fetchAndFilter runs the retrieval+filter pair, doubling the pool size when
// the survivor count lands under the floor, up to MaxPoolExpansions rounds.
// The last round's outputs are returned even when still below the floor; the
// caller marks the result relaxed.
func (e *Engine) fetchAndFilter(
	ctx context.Context,
	req *Request,
	profile *models.UserProfile,
	targets *models.NutrientTarget,
	categoryHints []string,
) (*generatecandidates.Output, *filterconstraints.Output, int, error) {
	poolSize := req.PoolSize
	if poolSize == 0 {
		poolSize = e.config.PoolSize
	}

	var fetched *generatecandidates.Output
	var filtered *filterconstraints.Output

	for expansion := 0; ; expansion++ {
		var err error
		fetched, err = e.stages.Generator.Execute(ctx, &generatecandidates.Input{
			Targets:       *targets,
			RequestText:   req.RequestText,
			CategoryHints: categoryHints,
			PoolSize:      poolSize,
			TopN:          req.TopN,
		})
		if err != nil {
			return nil, nil, expansion, e.stageError(StateTargetsComputed, err)
		}
		e.logState(req.RequestID, StateCandidatesFetched)

		filtered, err = e.stages.Filter.Execute(ctx, &filterconstraints.Input{
			Profile:    *profile,
			Candidates: fetched.Candidates,
		})
		if err != nil {
			return nil, nil, expansion, e.stageError(StateCandidatesFetched, err)
		}

		if !filtered.BelowFloor || expansion >= e.config.MaxPoolExpansions {
			return fetched, filtered, expansion, nil
		}

		poolSize = fetched.PoolSize * 2
		if poolSize > e.config.MaxPoolSize {
			poolSize = e.config.MaxPoolSize
		}
		e.logger.Warn("survivors below floor, expanding pool", map[string]interface{}{
			"requestId": req.RequestID,
			"survivors": len(filtered.Survivors),
			"floor":     e.config.SurvivorFloor,
			"nextPool":  poolSize,
			"expansion": expansion + 1,
		})
	}
}

func (e *Engine) notes(relaxed bool, expansions int, degradedFetch, scoringDegraded bool) []string {
	var notes []string
	if degradedFetch {
		notes = append(notes, "candidate retrieval fell back to the category query")
	}
	if scoringDegraded {
		notes = append(notes, "taste history unavailable, history signal omitted")
	}
	if relaxed {
		notes = append(notes, fmt.Sprintf("fewer results than the survivor floor after %d pool expansions", expansions))
	}
	return notes
}

func (e *Engine) stageError(state State, err error) error {
	e.logger.Error("stage failed", map[string]interface{}{
		"state":     string(state),
		"errorCode": apperrors.CodeOf(err),
		"error":     err.Error(),
	})
	return fmt.Errorf("stage after %s: %w", state, err)
}

func (e *Engine) logState(requestID string, state State) {
	e.logger.Debug("state transition", map[string]interface{}{
		"requestId": requestID,
		"state":     string(state),
	})
}
