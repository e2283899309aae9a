// internal/common/errors/handler.go
package errors

import (
	stderrors "errors"
)

// retryable codes are transient infrastructure conditions; everything else is
// either fatal (validation) or recovered locally with metadata flags.
var retryableCodes = map[ErrorCode]bool{
	ErrCodeRetrievalTimeout:              true,
	ErrCodeDatabaseConnectionFailed:      true,
	ErrCodeQueryTimeout:                  true,
	ErrCodeElasticsearchConnectionFailed: true,
	ErrCodeSearchTimeout:                 true,
	ErrCodeRedisUnavailable:              true,
	ErrCodeExternalService:               true,
	ErrCodeTimeout:                       true,
}

// IsRetryable reports whether the error represents a transient condition.
func IsRetryable(err error) bool {
	var se *StandardError
	if stderrors.As(err, &se) {
		if se.Retryable {
			return true
		}
		return retryableCodes[se.Code]
	}
	var be *BPMNError
	if stderrors.As(err, &be) {
		return be.Retryable
	}
	return false
}

// CodeOf extracts the error code, or UNKNOWN_ERROR for untyped errors.
func CodeOf(err error) string {
	var se *StandardError
	if stderrors.As(err, &se) {
		return string(se.Code)
	}
	var be *BPMNError
	if stderrors.As(err, &be) {
		return be.Code
	}
	return "UNKNOWN_ERROR"
}

// ToBPMN converts any error into a BPMNError suitable for a ThrowError
// command. StandardError metadata rides along as error variables so the
// workflow can branch on it.
func ToBPMN(err error, retries int) *BPMNError {
	var be *BPMNError
	if stderrors.As(err, &be) {
		return be
	}

	var se *StandardError
	if stderrors.As(err, &se) {
		return &BPMNError{
			Code:           string(se.Code),
			Message:        se.Message,
			Details:        se.Details,
			Retryable:      se.Retryable || retryableCodes[se.Code],
			Retries:        retries,
			ErrorVariables: se.Metadata,
		}
	}

	return &BPMNError{
		Code:      "UNKNOWN_ERROR",
		Message:   err.Error(),
		Retryable: false,
		Retries:   0,
	}
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == string(code)
}
