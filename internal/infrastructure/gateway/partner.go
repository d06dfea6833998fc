package gateway

import (
	"context"
	"encoding/json"
	"time"
)

// Partner is one of the fixed set of external services a settlement may consult.
type Partner string

const (
	VehicleRegistry  Partner = "vehicle-registry"
	PaymentProcessor Partner = "payment-processor"
	LossHistory      Partner = "loss-history"
	PolicyRating     Partner = "policy-rating"
)

// Partners lists every known partner in a stable order.
var Partners = []Partner{VehicleRegistry, PaymentProcessor, LossHistory, PolicyRating}

func (p Partner) Valid() bool {
	switch p {
	case VehicleRegistry, PaymentProcessor, LossHistory, PolicyRating:
		return true
	}
	return false
}

// Response is what a partner answered with. A response that is neither
// successful nor retryable is a rejection: a business decision unless Fault
// marks it as a contract or credentials problem on our side of the wire.
type Response struct {
	Payload    json.RawMessage
	Success    bool
	Retryable  bool
	Fault      bool
	StatusCode int
	Reason     string
	// Reference is the partner's own identifier for the operation, if any.
	Reference string
}

// Client performs a single attempt of an operation against one partner.
// Transport failures are returned as errors; anything the partner actually
// answered comes back as a Response.
type Client interface {
	Partner() Partner
	Invoke(ctx context.Context, operation string, payload any) (*Response, error)
}

// Call is one integration call to be made.
type Call struct {
	Partner   Partner
	Operation string
	Payload   any
}

// Outcome is the in-flight record of a call once it has finished: how many
// attempts it took, how long, and either the response or the error.
type Outcome struct {
	Call     Call
	Attempts int
	Elapsed  time.Duration
	Response *Response
	Err      *IntegrationError
}

func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Response != nil
}
