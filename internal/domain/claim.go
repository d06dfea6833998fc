// Package domain holds the claim and payment entities and their lifecycles.
package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// ClaimStatus represents the current state of a claim in its lifecycle
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "PENDING"
	ClaimInReview ClaimStatus = "IN_REVIEW"
	ClaimApproved ClaimStatus = "APPROVED"
	ClaimPaid     ClaimStatus = "PAID"
	ClaimDenied   ClaimStatus = "DENIED"
	ClaimClosed   ClaimStatus = "CLOSED"
)

// settleableStatuses are the states a settlement may start from.
var settleableStatuses = []ClaimStatus{ClaimPending, ClaimInReview}

type Claim struct {
	Number       string
	Type         ClaimType
	PolicyNumber string
	// SubjectRef identifies the insured object: a VIN for auto claims,
	// a parcel or property ID for property claims.
	SubjectRef  string
	Currency    string
	Status      ClaimStatus
	ClaimAmount decimal.Decimal
	PaidAmount  decimal.Decimal
	Version     int64
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

func NewClaim(
	number string,
	claimType ClaimType,
	policyNumber string,
	subjectRef string,
	currency string,
	claimAmount decimal.Decimal,
	now time.Time,
) (*Claim, error) {
	if number == "" {
		return nil, NewMissingRequiredFieldError("claim number")
	}
	if !claimType.Valid() {
		return nil, NewMissingRequiredFieldError("claim type")
	}
	if policyNumber == "" {
		return nil, NewMissingRequiredFieldError("policy number")
	}
	if currency == "" {
		return nil, NewMissingRequiredFieldError("currency")
	}
	if err := ValidateAmount(claimAmount); err != nil {
		return nil, err
	}

	return &Claim{
		Number:       number,
		Type:         claimType,
		PolicyNumber: policyNumber,
		SubjectRef:   subjectRef,
		Currency:     currency,
		Status:       ClaimPending,
		ClaimAmount:  claimAmount,
		PaidAmount:   decimal.Zero,
		Version:      1,
		CreatedAt:    now,
		ModifiedAt:   now,
	}, nil
}

// RemainingBalance is what can still be paid out on the claim.
func (c *Claim) RemainingBalance() decimal.Decimal {
	return c.ClaimAmount.Sub(c.PaidAmount)
}

// ValidateSettlement checks that a settlement of amount may start against the claim.
func (c *Claim) ValidateSettlement(amount decimal.Decimal) error {
	if !slices.Contains(settleableStatuses, c.Status) {
		return NewInvalidStateError(string(c.Status), settleableStatuses...)
	}
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if remaining := c.RemainingBalance(); amount.GreaterThan(remaining) {
		return NewAmountExceedsBalanceError(amount, remaining)
	}
	return nil
}

// ApplyPayment credits amount to the claim. A claim paid in full becomes PAID,
// otherwise it stays open for further instalments as IN_REVIEW.
func (c *Claim) ApplyPayment(amount decimal.Decimal, at time.Time) error {
	if err := c.ValidateSettlement(amount); err != nil {
		return err
	}

	target := ClaimInReview
	if c.PaidAmount.Add(amount).Equal(c.ClaimAmount) {
		target = ClaimPaid
	}
	if err := c.transition(target); err != nil {
		return err
	}
	c.PaidAmount = c.PaidAmount.Add(amount)
	c.ModifiedAt = at
	return nil
}

func (c *Claim) Deny(at time.Time) error {
	return c.transitionAt(ClaimDenied, at)
}

func (c *Claim) transitionAt(target ClaimStatus, at time.Time) error {
	if err := c.transition(target); err != nil {
		return err
	}
	c.ModifiedAt = at
	return nil
}

func (c *Claim) transition(target ClaimStatus) error {
	if err := c.canTransitionTo(target); err != nil {
		return err
	}
	c.Status = target
	return nil
}

// defines the claim statuses that can be transitioned to
func (c *Claim) canTransitionTo(target ClaimStatus) error {
	switch c.Status {
	case ClaimPending:
		return c.allow(target, ClaimInReview, ClaimApproved, ClaimDenied, ClaimPaid)
	case ClaimInReview:
		return c.allow(target, ClaimInReview, ClaimApproved, ClaimDenied, ClaimPaid)
	case ClaimApproved:
		return c.allow(target, ClaimPaid, ClaimClosed)
	case ClaimPaid, ClaimDenied:
		return c.allow(target, ClaimClosed)
	}
	return NewInvalidTransitionError(string(c.Status), string(target))
}

func (c *Claim) allow(target ClaimStatus, allowed ...ClaimStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(string(c.Status), string(target))
}
