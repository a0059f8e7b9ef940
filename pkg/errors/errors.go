package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Status    int                    `json:"status"`
	Retryable bool                   `json:"retryable"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Err       error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so callers can use errors.Is against
// the predefined values even after Clone or Wrap.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// WithDetails returns a copy carrying structured details for the caller.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	merged := make(map[string]interface{}, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	clone.Details = merged
	return &clone
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

func newRetryable(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Retryable: true}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err, Retryable: retryableCode(code)}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = newRetryable("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	ErrInvalidTransition      = New("INVALID_TRANSITION", http.StatusConflict, "status transition not allowed")
	ErrConcurrentModification = newRetryable("CONCURRENT_MODIFICATION", http.StatusConflict, "record was modified concurrently")
	ErrDuplicateAttachment    = New("DUPLICATE_ATTACHMENT", http.StatusOK, "service already attached")
	ErrIneligiblePayout       = New("INELIGIBLE_PAYOUT", http.StatusUnprocessableEntity, "payout eligibility window has not elapsed")
	ErrCascadeFailure         = newRetryable("CASCADE_FAILURE", http.StatusInternalServerError, "dependent records could not be updated")
	ErrAuditWriteFailure      = newRetryable("AUDIT_WRITE_FAILURE", http.StatusInternalServerError, "audit log write failed")
)

func retryableCode(code string) bool {
	switch code {
	case ErrInternal.Code, ErrConcurrentModification.Code, ErrCascadeFailure.Code, ErrAuditWriteFailure.Code:
		return true
	}
	return false
}

// InvalidTransition builds the structured rejection for a status change.
func InvalidTransition(current, target string) *Error {
	return Clone(ErrInvalidTransition, fmt.Sprintf("cannot move from %s to %s", current, target)).
		WithDetails(map[string]interface{}{"current": current, "target": target})
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// IsRetryable reports whether repeating the whole operation may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return FromError(err).Retryable
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
