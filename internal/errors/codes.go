// Package errors provides structured error handling for biorag.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors (fatal at construction)
//   - 2XX: Data availability errors (fatal with a remediation hint)
//   - 3XX: Network errors (retryable, degraded at query time)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryData indicates missing or empty source data and indexes.
	CategoryData Category = "DATA"
	// CategoryNetwork indicates failures talking to the embedding or generation services.
	CategoryNetwork Category = "NETWORK"
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
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeMissingAPIKey    = "ERR_103_MISSING_API_KEY"
	ErrCodeTemplateNotFound = "ERR_104_TEMPLATE_NOT_FOUND"

	// Data availability errors (200-299)
	ErrCodeDirectoryNotFound = "ERR_201_DIRECTORY_NOT_FOUND"
	ErrCodeNoDocuments       = "ERR_202_NO_DOCUMENTS"
	ErrCodeEmptyCollection   = "ERR_203_EMPTY_COLLECTION"
	ErrCodeFileUnreadable    = "ERR_204_FILE_UNREADABLE"
	ErrCodeCorruptIndex      = "ERR_205_CORRUPT_INDEX"

	// Network errors (300-399)
	ErrCodeEmbeddingFailed  = "ERR_301_EMBEDDING_FAILED"
	ErrCodeGenerationFailed = "ERR_302_GENERATION_FAILED"
	ErrCodeNetworkTimeout   = "ERR_303_NETWORK_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract the leading digit of the numeric portion (e.g., "1" from "ERR_101_...")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryData
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryConfig, CategoryData:
		// Construction-time failures abort startup.
		return SeverityFatal
	case CategoryNetwork:
		// Retryable failures degrade the current query, not the process.
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbeddingFailed, ErrCodeGenerationFailed, ErrCodeNetworkTimeout:
		return true
	}
	return false
}
