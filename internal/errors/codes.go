// Package errors provides structured error handling for the evidence engine.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Index and IO errors
//   - 3XX: Retrieval backend errors (embedding, reranking)
//   - 4XX: Validation and request errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIndex indicates index integrity and persistence errors.
	CategoryIndex Category = "INDEX"
	// CategoryBackend indicates external model backend errors.
	CategoryBackend Category = "BACKEND"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Index errors (200-299)
	ErrCodeIndexNotFound = "ERR_201_INDEX_NOT_FOUND"
	ErrCodeCorruptIndex  = "ERR_205_CORRUPT_INDEX"
	ErrCodeIndexLocked   = "ERR_206_INDEX_LOCKED"
	ErrCodeIndexClosed   = "ERR_207_INDEX_CLOSED"

	// Backend errors (300-399)
	ErrCodeRetrievalTimeout   = "ERR_301_RETRIEVAL_TIMEOUT"
	ErrCodeBackendUnavailable = "ERR_302_BACKEND_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeSchema              = "ERR_401_SCHEMA"
	ErrCodeInvalidInput        = "ERR_402_INVALID_INPUT"
	ErrCodeDimensionMismatch   = "ERR_403_DIMENSION_MISMATCH"
	ErrCodeUnknownJurisdiction = "ERR_404_UNKNOWN_JURISDICTION"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode derives the category from a code's number range.
func categoryFromCode(code string) Category {
	switch {
	case len(code) < 7:
		return CategoryInternal
	case code[4] == '1':
		return CategoryConfig
	case code[4] == '2':
		return CategoryIndex
	case code[4] == '3':
		return CategoryBackend
	case code[4] == '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity. Index-integrity and schema errors are
// fatal: the engine must refuse to serve rather than degrade silently.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeSchema, ErrCodeDimensionMismatch:
		return SeverityFatal
	case ErrCodeRetrievalTimeout, ErrCodeBackendUnavailable:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with this code may be
// retried. Only backend errors are retryable; integrity errors never are.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeRetrievalTimeout, ErrCodeBackendUnavailable:
		return true
	default:
		return false
	}
}
