package application

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeValidation   = "VALIDATION_FAILED"
	ErrCodeConflict     = "VERSION_CONFLICT"
	ErrCodeDeferred     = "SETTLEMENT_DEFERRED"
	ErrCodeTimeout      = "TIMEOUT"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeInvalidInput = "INVALID_INPUT"
)

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInvalidInputError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidInput,
		Message:    "Invalid input",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}

// ValidationError rejects a settlement before any partner is called:
// unknown claim, claim not in a settle-able state, or bad amount.
type ValidationError struct {
	ClaimNumber string
	Err         error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("settlement of claim %s rejected: %v", e.ClaimNumber, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ConflictError reports that the claim changed underneath a settlement twice
// in a row. The request may be resubmitted.
type ConflictError struct {
	ClaimNumber string
	Err         error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("claim %s was modified concurrently: %v", e.ClaimNumber, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// DeferredError reports that a settlement could not be decided now because
// a partner was unavailable. Nothing was written; the caller should retry
// after RetryAfter.
type DeferredError struct {
	ClaimNumber string
	// TransactionID is the idempotency key the settlement ran under.
	// Resubmissions must reuse it.
	TransactionID string
	Reason        string
	RetryAfter    time.Duration
	Err           error
}

func (e *DeferredError) Error() string {
	return fmt.Sprintf("settlement of claim %s deferred: %s", e.ClaimNumber, e.Reason)
}

func (e *DeferredError) Unwrap() error { return e.Err }

func AsValidationError(err error) (*ValidationError, bool) {
	var v *ValidationError
	ok := errors.As(err, &v)
	return v, ok
}

func AsConflictError(err error) (*ConflictError, bool) {
	var c *ConflictError
	ok := errors.As(err, &c)
	return c, ok
}

func AsDeferredError(err error) (*DeferredError, bool) {
	var d *DeferredError
	ok := errors.As(err, &d)
	return d, ok
}
