package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinels wrapped by DomainError so callers can match with errors.Is.
var (
	ErrClaimNotFound        = errors.New("claim not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrInvalidState         = errors.New("invalid state")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrAmountExceedsBalance = errors.New("amount exceeds remaining balance")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrVersionConflict      = errors.New("version conflict")
	ErrDuplicatePayment     = errors.New("duplicate payment")
	ErrDuplicateClaim       = errors.New("duplicate claim")
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeClaimNotFound        = "CLAIM_NOT_FOUND"
	ErrCodePaymentNotFound      = "PAYMENT_NOT_FOUND"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeInvalidState         = "INVALID_STATE"
	ErrCodeInvalidAmount        = "INVALID_AMOUNT"
	ErrCodeAmountExceedsBalance = "AMOUNT_EXCEEDS_BALANCE"
	ErrCodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	ErrCodeInvalidPaymentMethod = "INVALID_PAYMENT_METHOD"
	ErrCodeVersionConflict      = "VERSION_CONFLICT"
	ErrCodeDuplicatePayment     = "DUPLICATE_PAYMENT"
	ErrCodeDuplicateClaim       = "DUPLICATE_CLAIM"
)

func NewClaimNotFoundError(claimNumber string) *DomainError {
	return &DomainError{
		Code:    ErrCodeClaimNotFound,
		Message: fmt.Sprintf("claim %s not found", claimNumber),
		Err:     ErrClaimNotFound,
	}
}

func NewPaymentNotFoundError(transactionID string) *DomainError {
	return &DomainError{
		Code:    ErrCodePaymentNotFound,
		Message: fmt.Sprintf("payment %s not found", transactionID),
		Err:     ErrPaymentNotFound,
	}
}

func NewInvalidTransitionError(from, to string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
		Err:     ErrInvalidTransition,
	}
}

func NewInvalidStateError(current string, expected ...ClaimStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("invalid state: claim is %s, expected one of %v", current, expected),
		Err:     ErrInvalidState,
	}
}

func NewInvalidAmountError(amount decimal.Decimal) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %s", amount.StringFixed(2)),
		Err:     ErrInvalidAmount,
	}
}

func NewAmountExceedsBalanceError(requested, remaining decimal.Decimal) *DomainError {
	return &DomainError{
		Code:    ErrCodeAmountExceedsBalance,
		Message: fmt.Sprintf("requested %s exceeds remaining balance %s", requested.StringFixed(2), remaining.StringFixed(2)),
		Err:     ErrAmountExceedsBalance,
	}
}

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
		Err:     ErrMissingRequiredField,
	}
}

func NewInvalidPaymentMethodError(method string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidPaymentMethod,
		Message: fmt.Sprintf("unsupported payment method %q", method),
		Err:     ErrInvalidPaymentMethod,
	}
}

func NewVersionConflictError(claimNumber string, expected, actual int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeVersionConflict,
		Message: fmt.Sprintf("claim %s: expected version %d, found %d", claimNumber, expected, actual),
		Err:     ErrVersionConflict,
	}
}

func NewDuplicatePaymentError(transactionID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicatePayment,
		Message: fmt.Sprintf("payment %s already exists", transactionID),
		Err:     ErrDuplicatePayment,
	}
}

func NewDuplicateClaimError(claimNumber string) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicateClaim,
		Message: fmt.Sprintf("claim %s already exists", claimNumber),
		Err:     ErrDuplicateClaim,
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
