package application

import (
	"context"
	"errors"
	"net/http"

	"github.com/DanielPopoola/claims-settlement/internal/domain"
	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/gateway"
)

// ErrorCategory represents the nature of an error for retry logic
type ErrorCategory string

const (
	CategoryTransient      ErrorCategory = "TRANSIENT"
	CategoryPermanent      ErrorCategory = "PERMANENT"
	CategoryBusinessRule   ErrorCategory = "BUSINESS_RULE"
	CategoryClientError    ErrorCategory = "CLIENT_ERROR"
	CategoryInfrastructure ErrorCategory = "INFRASTRUCTURE"
)

// CategorizeError determines error category for retry and logging purposes
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	// Context Errors (Transient - network/timeout issues)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTransient
	}

	// Settlement outcomes
	if _, ok := AsDeferredError(err); ok {
		return CategoryTransient
	}
	if _, ok := AsConflictError(err); ok {
		return CategoryTransient
	}

	// Not found / malformed input
	if errors.Is(err, domain.ErrClaimNotFound) ||
		errors.Is(err, domain.ErrPaymentNotFound) ||
		errors.Is(err, domain.ErrMissingRequiredField) ||
		errors.Is(err, domain.ErrInvalidPaymentMethod) ||
		errors.Is(err, domain.ErrInvalidAmount) {
		return CategoryClientError
	}

	// Domain Errors (Business Rules)
	if errors.Is(err, domain.ErrAmountExceedsBalance) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrInvalidState) ||
		errors.Is(err, domain.ErrDuplicatePayment) ||
		errors.Is(err, domain.ErrDuplicateClaim) {
		return CategoryBusinessRule
	}

	if errors.Is(err, domain.ErrVersionConflict) {
		return CategoryTransient
	}

	// Service/Application Errors
	if svcErr, ok := IsServiceError(err); ok {
		switch svcErr.Code {
		case ErrCodeInvalidInput, ErrCodeValidation:
			return CategoryClientError
		case ErrCodeInternal:
			return CategoryInfrastructure
		case ErrCodeTimeout:
			return CategoryTransient
		}
	}

	// Partner errors
	if ie, ok := gateway.AsIntegrationError(err); ok {
		if ie.IsBusinessRejection() {
			return CategoryBusinessRule
		}
		return CategoryTransient
	}

	// Default: Transient (safe fallback)
	return CategoryTransient
}

// IsRetryable returns true if the error category suggests retry
func IsRetryable(err error) bool {
	category := CategorizeError(err)
	return category == CategoryTransient || category == CategoryInfrastructure
}

// ToHTTPStatus maps error to appropriate HTTP status code
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.HTTPStatus
	}
	if _, ok := AsDeferredError(err); ok {
		return http.StatusServiceUnavailable
	}
	if _, ok := AsConflictError(err); ok {
		return http.StatusConflict
	}

	switch {
	case errors.Is(err, domain.ErrClaimNotFound),
		errors.Is(err, domain.ErrPaymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrAmountExceedsBalance),
		errors.Is(err, domain.ErrInvalidPaymentMethod),
		errors.Is(err, domain.ErrMissingRequiredField):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, domain.ErrDuplicatePayment),
		errors.Is(err, domain.ErrDuplicateClaim):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	}

	// Default to 500
	return http.StatusInternalServerError
}

// ToErrorCode clear error code for API responses
func ToErrorCode(err error) string {
	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Code
	}
	if _, ok := AsDeferredError(err); ok {
		return ErrCodeDeferred
	}
	if _, ok := AsConflictError(err); ok {
		return ErrCodeConflict
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	if _, ok := AsValidationError(err); ok {
		return ErrCodeValidation
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout
	}

	return ErrCodeInternal
}
