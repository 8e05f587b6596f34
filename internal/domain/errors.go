package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeUpstreamFailure  = "UPSTREAM_FAILURE"
)

// Validation errors
var (
	ErrMissingBankID             = NewDomainError(ErrCodeValidation, "bank id is required")
	ErrEmptyContent              = NewDomainError(ErrCodeValidation, "content text cannot be empty")
	ErrNoContentItems            = NewDomainError(ErrCodeValidation, "at least one content item is required")
	ErrInvalidFactType           = NewDomainError(ErrCodeValidation, "invalid fact type")
	ErrEmptyQuery                = NewDomainError(ErrCodeValidation, "search query cannot be empty")
	ErrInvalidEmbeddingJobStatus = NewDomainError(ErrCodeValidation, "invalid embedding job status")
)

// Not found errors
var (
	ErrFactNotFound = NewDomainError(ErrCodeNotFound, "fact not found")
)

// Upstream errors
var (
	ErrExtractionFailed = NewDomainError(ErrCodeUpstreamFailure, "fact extraction failed")
)
