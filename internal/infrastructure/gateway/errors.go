package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind is the normalized failure taxonomy of an integration call.
type Kind string

const (
	KindTimeout          Kind = "TIMEOUT"
	KindUnreachable      Kind = "UNREACHABLE"
	KindRejected         Kind = "REJECTED"
	KindCircuitOpen      Kind = "CIRCUIT_OPEN"
	KindRetriesExhausted Kind = "RETRIES_EXHAUSTED"
	// KindInternal marks a failure inside our own task code, e.g. a recovered panic.
	KindInternal Kind = "INTERNAL"
)

// IntegrationError wraps partner failures with normalized categorization
type IntegrationError struct {
	Kind       Kind
	Partner    Partner
	Operation  string
	StatusCode int
	// Business is set on REJECTED errors where the partner declined the request.
	Business bool
	Reason   string
	Err      error
}

func (e *IntegrationError) Error() string {
	msg := fmt.Sprintf("%s %s [%s]", e.Partner, e.Operation, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status=%d", e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *IntegrationError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt at the same call may succeed.
func (e *IntegrationError) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindUnreachable
}

// IsBusinessRejection reports whether the partner explicitly declined.
func (e *IntegrationError) IsBusinessRejection() bool {
	return e.Kind == KindRejected && e.Business
}

// Transient reports whether the failure says nothing about the claim itself
// and the whole operation may be resubmitted later.
func (e *IntegrationError) Transient() bool {
	return !e.IsBusinessRejection()
}

// AsIntegrationError extracts an IntegrationError from an error chain.
func AsIntegrationError(err error) (*IntegrationError, bool) {
	var ie *IntegrationError
	ok := errors.As(err, &ie)
	return ie, ok
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
