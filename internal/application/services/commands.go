package services

import (
	"github.com/DanielPopoola/claims-settlement/internal/domain"
	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/gateway"
	"github.com/shopspring/decimal"
)

type SettleCommand struct {
	ClaimNumber   string
	Amount        decimal.Decimal
	PaymentMethod domain.PaymentMethod
	// TransactionID is the optional idempotency key of the settlement.
	TransactionID string
}

func (c SettleCommand) validate() error {
	if c.ClaimNumber == "" {
		return domain.NewMissingRequiredFieldError("claim number")
	}
	if err := domain.ValidateAmount(c.Amount); err != nil {
		return err
	}
	if _, err := domain.ParsePaymentMethod(string(c.PaymentMethod)); err != nil {
		return err
	}
	return nil
}

type RegisterClaimCommand struct {
	ClaimNumber  string
	Type         domain.ClaimType
	PolicyNumber string
	SubjectRef   string
	Currency     string
	ClaimAmount  decimal.Decimal
}

type SettlementStatus string

const (
	SettlementApproved SettlementStatus = "APPROVED"
	SettlementDenied   SettlementStatus = "DENIED"
	SettlementDeferred SettlementStatus = "DEFERRED"
)

type SettlementResult struct {
	Status  SettlementStatus
	Claim   *domain.Claim
	Payment *domain.Payment
	Reason  string
	// Replayed is set when the transaction ID had already been settled and
	// the stored result was returned without calling any partner.
	Replayed bool
	Outcomes []gateway.Outcome
}
