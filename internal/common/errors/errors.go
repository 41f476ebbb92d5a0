// Package errors provides standardized error handling for the reconciliation
// pipeline and its BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Reconciliation failures. One batch failing with any of these aborts the run.
const (
	ErrCodeNoMatch           ErrorCode = "NO_MATCH"
	ErrCodeTransport         ErrorCode = "TRANSPORT_ERROR"
	ErrCodePartialAttributes ErrorCode = "PARTIAL_ATTRIBUTES"
	ErrCodeInvalidResponse   ErrorCode = "INVALID_RESPONSE"
	ErrCodeReconcileTimeout  ErrorCode = "RECONCILE_TIMEOUT"
)

// Input and run lookup failures.
const (
	ErrCodeEmptyInput    ErrorCode = "EMPTY_INPUT"
	ErrCodeInputTooLarge ErrorCode = "INPUT_TOO_LARGE"
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeRunNotFound   ErrorCode = "RUN_NOT_FOUND"
	ErrCodeRunStoreError ErrorCode = "RUN_STORE_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
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

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewNoMatchError reports a name for which the service returned no candidates.
func NewNoMatchError(name string, index int) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoMatch,
		Message:   "No reconciliation candidate for species name",
		Details:   fmt.Sprintf("name: %q, index: %d", name, index),
		Retryable: false,
		Metadata:  map[string]interface{}{"name": name, "index": index},
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportError wraps a network failure or unexpected HTTP status.
// Network errors and 5xx responses are retryable, everything else is not.
func NewTransportError(operation string, status int, err error) *StandardError {
	details := fmt.Sprintf("operation: %s", operation)
	if status != 0 {
		details = fmt.Sprintf("%s, status: %d", details, status)
	}
	if err != nil {
		details = fmt.Sprintf("%s, error: %s", details, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeTransport,
		Message:   "Reconciliation service request failed",
		Details:   details,
		Retryable: status == 0 || status >= 500,
		Metadata:  map[string]interface{}{"operation": operation, "status": status},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewReconcileTimeoutError reports a call that exceeded its deadline.
func NewReconcileTimeoutError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeReconcileTimeout,
		Message:   "Reconciliation service call timed out",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewPartialAttributesError reports matched identifiers missing from the extend response.
func NewPartialAttributesError(missingIDs []string) *StandardError {
	return &StandardError{
		Code:      ErrCodePartialAttributes,
		Message:   "Extend response is missing matched identifiers",
		Details:   fmt.Sprintf("missing: %s", strings.Join(missingIDs, ", ")),
		Retryable: false,
		Metadata:  map[string]interface{}{"missing": missingIDs},
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidResponseError reports a body that could not be decoded or failed its schema.
func NewInvalidResponseError(operation, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidResponse,
		Message:   "Reconciliation service returned an invalid response",
		Details:   fmt.Sprintf("operation: %s, %s", operation, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewEmptyInputError() *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyInput,
		Message:   "No species names in input",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInputTooLargeError(count, limit int) *StandardError {
	return &StandardError{
		Code:      ErrCodeInputTooLarge,
		Message:   "Too many species names in input",
		Details:   fmt.Sprintf("names: %d, limit: %d", count, limit),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewRunNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRunNotFound,
		Message:   "Run not found",
		Details:   fmt.Sprintf("runId: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewRunStoreError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRunStoreError,
		Message:   "Run store operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the job retry budget for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeTransport, ErrCodeRunStoreError:
		return 3
	case ErrCodeReconcileTimeout:
		return 2
	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError finds a StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the error code of err, or "INTERNAL_ERROR" when it carries none.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return "INTERNAL_ERROR"
}

// IsRetryable reports whether err is a StandardError flagged as transient.
func IsRetryable(err error) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Retryable
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeNoMatch, ErrCodePartialAttributes:
		return "MATCH"
	case ErrCodeTransport, ErrCodeReconcileTimeout, ErrCodeInvalidResponse:
		return "UPSTREAM"
	case ErrCodeEmptyInput, ErrCodeInputTooLarge, ErrCodeInvalidInput:
		return "VALIDATION"
	case ErrCodeRunNotFound, ErrCodeRunStoreError:
		return "RUNS"
	default:
		return "OTHER"
	}
}
