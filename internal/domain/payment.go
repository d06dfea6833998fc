package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current state of a payment in its lifecycle
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentSettled  PaymentStatus = "SETTLED"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentReversed PaymentStatus = "REVERSED"
)

// Payment is an append-only audit record of money paid against a claim.
// TransactionID is the idempotency key.
type Payment struct {
	TransactionID      string
	ClaimNumber        string
	Amount             decimal.Decimal
	Method             PaymentMethod
	ProcessorReference *string
	Status             PaymentStatus
	Version            int64
	CreatedAt          time.Time
	ModifiedAt         time.Time
}

func NewPayment(
	transactionID string,
	claimNumber string,
	method PaymentMethod,
	amount decimal.Decimal,
	now time.Time,
) (*Payment, error) {
	if transactionID == "" {
		return nil, NewMissingRequiredFieldError("transaction ID")
	}
	if claimNumber == "" {
		return nil, NewMissingRequiredFieldError("claim number")
	}
	if _, err := ParsePaymentMethod(string(method)); err != nil {
		return nil, err
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}

	return &Payment{
		TransactionID: transactionID,
		ClaimNumber:   claimNumber,
		Amount:        amount,
		Method:        method,
		Status:        PaymentPending,
		Version:       1,
		CreatedAt:     now,
		ModifiedAt:    now,
	}, nil
}

// Settle records the processor's confirmation. Once SETTLED a payment can only be reversed.
func (p *Payment) Settle(processorReference string, at time.Time) error {
	if err := p.transition(PaymentSettled, at); err != nil {
		return err
	}
	if processorReference != "" {
		p.ProcessorReference = &processorReference
	}
	return nil
}

func (p *Payment) Fail(at time.Time) error {
	return p.transition(PaymentFailed, at)
}

func (p *Payment) Reverse(at time.Time) error {
	return p.transition(PaymentReversed, at)
}

func (p *Payment) IsSettled() bool {
	return p.Status == PaymentSettled
}

func (p *Payment) transition(target PaymentStatus, at time.Time) error {
	var allowed []PaymentStatus
	switch p.Status {
	case PaymentPending:
		allowed = []PaymentStatus{PaymentSettled, PaymentFailed}
	case PaymentSettled:
		allowed = []PaymentStatus{PaymentReversed}
	}
	if !slices.Contains(allowed, target) {
		return NewInvalidTransitionError(string(p.Status), string(target))
	}
	p.Status = target
	p.ModifiedAt = at
	return nil
}
