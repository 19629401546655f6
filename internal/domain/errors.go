package domain

import (
	"errors"
	"fmt"
	"time"
)

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
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeTransient          = "TRANSIENT_ERROR"
	ErrCodeTimeout            = "TIMEOUT"
	ErrCodeDimensionMismatch  = "DIMENSION_MISMATCH"
	ErrCodeRetrievalExhausted = "RETRIEVAL_EXHAUSTED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrEmptyQuestion    = NewDomainError(ErrCodeValidation, "question cannot be empty")
	ErrQuestionTooLong  = NewDomainError(ErrCodeValidation, "question exceeds maximum length")
	ErrEmptyDocument    = NewDomainError(ErrCodeValidation, "document text cannot be empty")
	ErrEmptyEmbedText   = NewDomainError(ErrCodeValidation, "text to embed cannot be empty")
	ErrInvalidChunkOpts = NewDomainError(ErrCodeValidation, "invalid chunking options")
)

// Not found errors
var (
	ErrDocumentNotFound  = NewDomainError(ErrCodeNotFound, "document not found")
	ErrIngestJobNotFound = NewDomainError(ErrCodeNotFound, "ingest job not found")
)

// ErrDimensionMismatch is raised when two vectors of different length are
// compared. This is a programming error, not user input.
var ErrDimensionMismatch = NewDomainError(ErrCodeDimensionMismatch, "embedding vectors have different dimensions")

// ErrRetrievalExhausted is raised only when every retrieval strategy in the
// cascade failed with an error; an empty result set is not exhaustion.
var ErrRetrievalExhausted = NewDomainError(ErrCodeRetrievalExhausted, "all retrieval strategies failed")

// NewTransientError wraps a failure that is worth retrying (timeouts,
// rate limits, upstream 5xx).
func NewTransientError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeTransient, message, err)
}

// NewTimeoutError reports an abandoned wait. The remote operation is not
// necessarily cancelled server-side.
func NewTimeoutError(elapsed time.Duration) *DomainError {
	return NewDomainError(ErrCodeTimeout, fmt.Sprintf("operation timed out after %v", elapsed))
}

// IsTransient reports whether err should be retried by backoff policies.
// Timeouts count as transient.
func IsTransient(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == ErrCodeTransient || de.Code == ErrCodeTimeout
	}
	return false
}

// IsTimeout reports whether err is an abandoned-wait timeout.
func IsTimeout(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == ErrCodeTimeout
	}
	return false
}

// IsValidation reports whether err is a malformed-input error, which is
// never retried.
func IsValidation(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == ErrCodeValidation
	}
	return false
}
