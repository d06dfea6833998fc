package application

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventSettlementApproved = "settlement.approved"
	EventSettlementDenied   = "settlement.denied"
)

type SettlementEvent struct {
	Type          string          `json:"type"`
	ClaimNumber   string          `json:"claim_number"`
	ClaimStatus   string          `json:"claim_status"`
	ClaimVersion  int64           `json:"claim_version"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Reason        string          `json:"reason,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// DeferredSettlement is a settlement request waiting to be re-driven.
type DeferredSettlement struct {
	ID            string          `json:"id"`
	ClaimNumber   string          `json:"claim_number"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id"`
	Reason        string          `json:"reason"`
	Attempt       int             `json:"attempt"`
	NextAttemptAt time.Time       `json:"next_attempt_at"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
}
