package errors

import (
	"errors"
	"fmt"
)

// EngineError is the structured error type for the evidence engine.
// It provides context for error handling, logging, and caller presentation.
type EngineError struct {
	// Code is the unique error code (e.g., "ERR_205_CORRUPT_INDEX").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Index, Backend, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with EngineError.
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *EngineError) WithDetail(key, value string) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new EngineError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an EngineError from an existing error.
func Wrap(code string, err error) *EngineError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// SchemaError reports a malformed document at index-build time.
// Fatal: the build must be rejected.
func SchemaError(message string, cause error) *EngineError {
	return New(ErrCodeSchema, message, cause)
}

// CorruptIndex reports a row-count mismatch or missing metadata at load
// time. Fatal: the engine refuses to serve from that index.
func CorruptIndex(message string, cause error) *EngineError {
	return New(ErrCodeCorruptIndex, message, cause)
}

// UnknownJurisdiction reports that no index exists for the requested
// jurisdiction. Surfaced to the caller; the engine never substitutes
// another jurisdiction's data.
func UnknownJurisdiction(jurisdiction string) *EngineError {
	return New(ErrCodeUnknownJurisdiction,
		fmt.Sprintf("no indexes found for jurisdiction %q", jurisdiction), nil).
		WithDetail("jurisdiction", jurisdiction)
}

// RetrievalTimeout reports an embedding or reranking backend exceeding its
// deadline. Retryable; degraded fallback is permitted.
func RetrievalTimeout(stage string, cause error) *EngineError {
	return New(ErrCodeRetrievalTimeout,
		fmt.Sprintf("%s backend exceeded deadline", stage), cause).
		WithDetail("stage", stage)
}

// DimensionMismatch reports an embedding dimension conflict between query
// and index.
func DimensionMismatch(expected, got int) *EngineError {
	return New(ErrCodeDimensionMismatch,
		fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", expected, got), nil)
}

// IsRetryable checks if an error (anywhere in the chain) is retryable.
func IsRetryable(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an EngineError in the chain.
// Returns empty string if none is found.
func GetCode(err error) string {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}
