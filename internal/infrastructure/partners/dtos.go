package partners

import "time"

// Operation names understood by the partner clients.
const (
	OpVerifyVehicle    = "verify"
	OpCheckLossHistory = "check"
	OpRateCoverage     = "coverage"
	OpDisburse         = "disburse"
)

type VehicleVerificationRequest struct {
	ClaimNumber  string `json:"claim_number"`
	PolicyNumber string `json:"policy_number"`
	VIN          string `json:"vin"`
}

type VehicleVerificationResponse struct {
	VerificationID string `json:"verification_id"`
	Status         string `json:"status"` // VERIFIED or REJECTED
	Reason         string `json:"reason,omitempty"`
}

type LossHistoryRequest struct {
	ClaimNumber  string `json:"claim_number"`
	PolicyNumber string `json:"policy_number"`
	PropertyRef  string `json:"property_ref"`
}

type LossHistoryResponse struct {
	ReportID string `json:"report_id"`
	Status   string `json:"status"` // CLEAR or FLAGGED
	Reason   string `json:"reason,omitempty"`
}

type CoverageRequest struct {
	PolicyNumber string `json:"policy_number"`
	ClaimType    string `json:"claim_type"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
}

type CoverageResponse struct {
	RatingID string `json:"rating_id"`
	Covered  bool   `json:"covered"`
	Reason   string `json:"reason,omitempty"`
}

type DisbursementRequest struct {
	ClaimNumber   string `json:"claim_number"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"payment_method"`

	// IdempotencyKey is sent as a header, not in the body.
	IdempotencyKey string `json:"-"`
}

func (r DisbursementRequest) Key() string { return r.IdempotencyKey }

type DisbursementResponse struct {
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"` // SETTLED or DECLINED
	Reference     string    `json:"reference,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// ErrorResponse is the error body partners return on non-2xx statuses.
type ErrorResponse struct {
	Err     string `json:"error"`
	Message string `json:"message"`
}
