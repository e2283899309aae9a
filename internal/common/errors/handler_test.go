// internal/common/errors/handler_test.go
package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Retry Classification Tests
// ==========================

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{
			name:      "retrieval timeout is transient",
			err:       NewRetrievalTimeoutError("primary query missed 2s deadline"),
			retryable: true,
		},
		{
			name:      "external service failure is transient",
			err:       NewExternalServiceError("elasticsearch", stderrors.New("connection refused")),
			retryable: true,
		},
		{
			name:      "validation failure is fatal",
			err:       NewValidationError("age must be between 10 and 100"),
			retryable: false,
		},
		{
			name:      "insufficient candidates is not retried",
			err:       NewInsufficientCandidatesError(4, 10),
			retryable: false,
		},
		{
			name:      "wrapped standard error keeps classification",
			err:       fmt.Errorf("stage after candidates_fetched: %w", NewTimeoutError("redis", stderrors.New("i/o timeout"))),
			retryable: true,
		},
		{
			name:      "untyped error is not retried",
			err:       stderrors.New("something broke"),
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

// ==========================
// Code Extraction Tests
// ==========================

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "VALIDATION_FAILED", CodeOf(NewValidationError("bad sex value")))
	assert.Equal(t, "RETRIEVAL_TIMEOUT", CodeOf(fmt.Errorf("wrapped: %w", NewRetrievalTimeoutError("slow shard"))))
	assert.Equal(t, "UNKNOWN_ERROR", CodeOf(stderrors.New("plain")))
}

func TestIsCode(t *testing.T) {
	err := NewScoringDegradedError(stderrors.New("redis unavailable"))

	assert.True(t, IsCode(err, ErrCodeScoringDegraded))
	assert.False(t, IsCode(err, ErrCodeValidationFailed))
}

// ==========================
// BPMN Conversion Tests
// ==========================

func TestToBPMN_StandardError(t *testing.T) {
	src := NewInsufficientCandidatesError(7, 10)

	be := ToBPMN(src, 2)

	require.NotNil(t, be)
	assert.Equal(t, "INSUFFICIENT_CANDIDATES", be.Code)
	assert.Equal(t, 2, be.Retries)
	assert.False(t, be.Retryable)

	vars := be.ToErrorVariables()
	assert.Equal(t, "INSUFFICIENT_CANDIDATES", vars["errorCode"])
	assert.Equal(t, 7, vars["survivors"])
	assert.Equal(t, 10, vars["floor"])
}

func TestToBPMN_UntypedError(t *testing.T) {
	be := ToBPMN(stderrors.New("boom"), 3)

	require.NotNil(t, be)
	assert.Equal(t, "UNKNOWN_ERROR", be.Code)
	assert.Equal(t, "boom", be.Message)
	assert.False(t, be.Retryable)
	assert.Equal(t, 0, be.Retries)
}

func TestToBPMN_PassthroughBPMNError(t *testing.T) {
	src := &BPMNError{Code: "SEARCH_TIMEOUT", Message: "query timed out", Retryable: true, Retries: 1}

	be := ToBPMN(fmt.Errorf("wrapped: %w", src), 5)

	assert.Same(t, src, be)
}

func TestConstructors_PreserveCause(t *testing.T) {
	cause := stderrors.New("deadline exceeded")

	assert.ErrorIs(t, NewRankingFailedError(cause), cause)
	assert.ErrorIs(t, NewResponseBuildError(cause), cause)
	assert.Equal(t, "RANKING_FAILED", CodeOf(NewRankingFailedError(cause)))
	assert.Equal(t, "RESPONSE_BUILD_FAILED", CodeOf(NewResponseBuildError(cause)))
}
