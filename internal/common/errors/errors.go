// Package errors provides standardized error handling for the query pipeline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Structural misconfiguration: an expected field is absent from every
	// row of a board, or a board/schema is not configured at all. Fatal to
	// that board's normalization.
	ErrCodeSchemaMismatch ErrorCode = "SCHEMA_MISMATCH"
	ErrCodeInvalidSchema  ErrorCode = "INVALID_SCHEMA"

	// External call failures. Never silently substituted with data.
	ErrCodeBoardFetchFailed ErrorCode = "BOARD_FETCH_FAILED"
	ErrCodeBoardAPITimeout  ErrorCode = "BOARD_API_TIMEOUT"

	ErrCodeIntentParsingFailed ErrorCode = "INTENT_PARSING_FAILED"
	ErrCodeIntentAPITimeout    ErrorCode = "INTENT_API_TIMEOUT"
	ErrCodeInvalidIntentShape  ErrorCode = "INVALID_INTENT_SHAPE"

	ErrCodeLLMSynthesisFailed ErrorCode = "LLM_SYNTHESIS_FAILED"
	ErrCodeLLMTimeout         ErrorCode = "LLM_TIMEOUT"

	ErrCodeInvalidFilterFormat ErrorCode = "INVALID_FILTER_FORMAT"
)

// StandardError represents a structured application error. Stage names which
// part of the pipeline failed; user-visible messages derive from it.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Stage     string                 `json:"stage"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewSchemaMismatchError creates a non-retryable error for a field that is
// absent from every row of a board. Unlike per-row missing data, this means
// the field mapping itself is wrong.
func NewSchemaMismatchError(board, field string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaMismatch,
		Stage:     "normalize",
		Message:   "Configured field is absent from every record",
		Details:   fmt.Sprintf("board: %s, field: %s", board, field),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidSchemaError creates a non-retryable schema registry error.
func NewInvalidSchemaError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidSchema,
		Stage:     "configure",
		Message:   "Board schema registry is invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBoardFetchFailedError creates a retryable board service error.
func NewBoardFetchFailedError(boardID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBoardFetchFailed,
		Stage:     "fetch",
		Message:   "Board service request failed",
		Details:   fmt.Sprintf("boardId: %s, error: %s", boardID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBoardAPITimeoutError creates a retryable board service timeout error.
func NewBoardAPITimeoutError(boardID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBoardAPITimeout,
		Stage:     "fetch",
		Message:   "Board service request timed out",
		Details:   fmt.Sprintf("boardId: %s", boardID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIntentParsingFailedError creates a retryable intent classification error.
func NewIntentParsingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIntentParsingFailed,
		Stage:     "classify",
		Message:   "Intent classification API error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIntentAPITimeoutError creates a retryable intent API timeout error.
func NewIntentAPITimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeIntentAPITimeout,
		Stage:     "classify",
		Message:   "Intent classification API timeout",
		Details:   "API call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidIntentShapeError creates a non-retryable error for classifier
// responses that do not conform to the intent contract. Treated as a
// classification failure, never as a crash.
func NewInvalidIntentShapeError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidIntentShape,
		Stage:     "classify",
		Message:   "Classifier response does not match the intent contract",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMSynthesisFailedError creates a retryable narration error. Narration
// is best-effort: callers return metrics unnarrated on this error.
func NewLLMSynthesisFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMSynthesisFailed,
		Stage:     "narrate",
		Message:   "Insight narration API error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMTimeoutError creates a retryable narration timeout error.
func NewLLMTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Stage:     "narrate",
		Message:   "Insight narration timeout",
		Details:   "LLM call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidFilterFormatError creates a non-retryable filter format error.
func NewInvalidFilterFormatError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidFilterFormat,
		Stage:     "route",
		Message:   "Invalid filter format",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// CodeOf extracts the error code from an error chain, or "" if the error is
// not a StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// StageOf extracts the failed pipeline stage from an error chain.
func StageOf(err error) string {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Stage
	}
	return "unknown"
}

// IsRetryable reports whether the error is worth retrying.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}
