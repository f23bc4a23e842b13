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
		Err:     nil,
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
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrEmptyQuestion    = NewDomainError(ErrCodeValidation, "question cannot be empty")
	ErrInvalidChunkKind = NewDomainError(ErrCodeValidation, "invalid chunk kind")
	ErrInvalidVerdict   = NewDomainError(ErrCodeValidation, "invalid verdict")
)

// Not found errors
var (
	ErrChunkNotFound  = NewDomainError(ErrCodeNotFound, "chunk not found")
	ErrPeriodNotFound = NewDomainError(ErrCodeNotFound, "period summary not found")
)

// Authorization errors
var (
	ErrInvalidAPIToken = NewDomainError(ErrCodeUnauthorized, "invalid api token")
)

// Operation errors
var (
	ErrStoreEmpty       = NewDomainError(ErrCodeInvalidOperation, "chunk store is empty")
	ErrIndexNotReady    = NewDomainError(ErrCodeInvalidOperation, "coarse index has not been built")
	ErrModelUnavailable = NewDomainError(ErrCodeInternalError, "model provider not configured")
)
