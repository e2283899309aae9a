// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Recommendation pipeline errors
const (
	ErrCodeValidationFailed       ErrorCode = "VALIDATION_FAILED"
	ErrCodeRetrievalTimeout       ErrorCode = "RETRIEVAL_TIMEOUT"
	ErrCodeInsufficientCandidates ErrorCode = "INSUFFICIENT_CANDIDATES"
	ErrCodeScoringDegraded        ErrorCode = "SCORING_DEGRADED"
	ErrCodeRankingFailed          ErrorCode = "RANKING_FAILED"
	ErrCodeResponseBuildFailed    ErrorCode = "RESPONSE_BUILD_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout                 ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexNotFound                 ErrorCode = "INDEX_NOT_FOUND"

	ErrCodeRedisUnavailable ErrorCode = "REDIS_UNAVAILABLE"

	ErrCodeExternalService   ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout           ErrorCode = "TIMEOUT"
	ErrCodeResourceNotFound  ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeBusinessRule      ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeAuthentication    ErrorCode = "AUTHENTICATION_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Cause
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationError creates a non-retryable error for malformed or
// out-of-range profile/request fields. Fatal to the call.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRetrievalTimeoutError signals the Candidate Source missed its deadline
// and the degraded fallback also failed.
func NewRetrievalTimeoutError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRetrievalTimeout,
		Message:   "candidate retrieval exceeded deadline",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInsufficientCandidatesError reports that pool expansion could not reach
// the survivor floor. Carried as metadata, not a hard failure.
func NewInsufficientCandidatesError(survivors, floor int) *StandardError {
	return &StandardError{
		Code:      ErrCodeInsufficientCandidates,
		Message:   "fewer candidates than the guaranteed minimum survived filtering",
		Retryable: false,
		Metadata: map[string]interface{}{
			"survivors": survivors,
			"floor":     floor,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewScoringDegradedError notes that the historical-signal collaborator was
// unavailable; scoring proceeds with S_hist = 0.
func NewScoringDegradedError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeScoringDegraded,
		Message:   "historical interaction signal unavailable",
		Details:   cause.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     cause,
	}
}

// NewRankingFailedError wraps a failure inside the diversity re-rank stage.
func NewRankingFailedError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRankingFailed,
		Message:   "diversity re-ranking failed",
		Details:   cause.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     cause,
	}
}

// NewResponseBuildError wraps a failure while packaging the final result.
func NewResponseBuildError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeResponseBuildFailed,
		Message:   "failed to package recommendation result",
		Details:   cause.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     cause,
	}
}

func NewExternalServiceError(service string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("external service %s failed", service),
		Details:   cause.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"service": service},
		Timestamp: time.Now().UTC(),
		Cause:     cause,
	}
}

func NewTimeoutError(service string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("operation against %s timed out", service),
		Details:   cause.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"service": service},
		Timestamp: time.Now().UTC(),
		Cause:     cause,
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResourceNotFound,
		Message:   fmt.Sprintf("resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewBusinessRuleError(details, rule string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBusinessRule,
		Message:   rule,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthentication,
		Message:   "authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
