package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for recoverable failures
type ErrorCode string

const (
	// DependencyCycle indicates the package dependency graph would become cyclic
	DependencyCycle ErrorCode = "DEPENDENCY_CYCLE"
	// ModuleCycle indicates the cultures of one ingestion batch import each other cyclically
	ModuleCycle ErrorCode = "MODULE_CYCLE"
	// DuplicateAvailability indicates a symbol lists the same availability domain twice
	DuplicateAvailability ErrorCode = "DUPLICATE_AVAILABILITY"
	// InvalidSymbolID indicates a stable identifier could not be decoded
	InvalidSymbolID ErrorCode = "INVALID_SYMBOL_ID"
	// DuplicateSymbol indicates a symbol graph declares the same identifier twice
	DuplicateSymbol ErrorCode = "DUPLICATE_SYMBOL"
	// DuplicateCulture indicates two graphs of one batch describe the same module
	DuplicateCulture ErrorCode = "DUPLICATE_CULTURE"
	// InvalidGraph indicates a symbol graph is structurally malformed
	InvalidGraph ErrorCode = "INVALID_GRAPH"
	// UnknownPackage indicates a package name or id is not registered
	UnknownPackage ErrorCode = "UNKNOWN_PACKAGE"
	// UnknownBranch indicates a branch name does not exist in a package
	UnknownBranch ErrorCode = "UNKNOWN_BRANCH"
	// InvalidPin indicates a pinned version does not exist
	InvalidPin ErrorCode = "INVALID_PIN"
	// BranchExists indicates a fork would reuse a branch name
	BranchExists ErrorCode = "BRANCH_EXISTS"
	// ForkedBeyondRollback indicates a rollback would drop the fork point of a child branch
	ForkedBeyondRollback ErrorCode = "FORKED_BEYOND_ROLLBACK"
	// PinnedBeyondRollback indicates a rollback would drop a version another package pins
	PinnedBeyondRollback ErrorCode = "PINNED_BEYOND_ROLLBACK"
	// IngestionCanceled indicates an ingestion batch was abandoned before commit
	IngestionCanceled ErrorCode = "INGESTION_CANCELED"
	// InvalidSelector indicates a version selector could not be parsed
	InvalidSelector ErrorCode = "INVALID_SELECTOR"
	// InvalidManifest indicates a manifest or package declaration is malformed
	InvalidManifest ErrorCode = "INVALID_MANIFEST"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// StoreError represents a typed failure with code, message and optional details
type StoreError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Hint    string      `json:"hint,omitempty"`
	cause   error       // Underlying error (not exported to JSON)
}

// NewStoreError creates a new StoreError
func NewStoreError(code ErrorCode, message string, cause error) *StoreError {
	return &StoreError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Errorf creates a StoreError with a formatted message and no cause
func Errorf(code ErrorCode, format string, args ...interface{}) *StoreError {
	return NewStoreError(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *StoreError) WithDetails(details interface{}) *StoreError {
	e.Details = details
	return e
}

// WithHint attaches a remediation hint
func (e *StoreError) WithHint(hint string) *StoreError {
	e.Hint = hint
	return e
}

// CodeOf returns the code of the first StoreError in err's chain
func CodeOf(err error) (ErrorCode, bool) {
	var se *StoreError
	if stderrors.As(err, &se) {
		return se.Code, true
	}
	return "", false
}

// HasCode reports whether the first StoreError in err's chain carries code
func HasCode(err error, code ErrorCode) bool {
	got, ok := CodeOf(err)
	return ok && got == code
}

// Hints maps error codes to default remediation hints
var Hints = map[ErrorCode]string{
	DependencyCycle:      "remove the pin that makes the dependency graph cyclic",
	ForkedBeyondRollback: "roll back the child branch first, or choose a later revision",
	PinnedBeyondRollback: "roll back the packages that pin the dropped revisions first, or choose a later revision",
	InvalidSymbolID:      "stable identifiers must be non-local SCIP symbols",
	UnknownPackage:       "load the package before the packages that pin it",
	InvalidSelector:      "use <branch>, <branch>:<revision> or <branch>:<YYYY-MM-DD>",
}

// GetHint returns the default hint for an error code
func GetHint(code ErrorCode) string {
	return Hints[code]
}
