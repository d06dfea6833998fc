package domain

import (
	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits amounts are stored with.
const AmountScale = 2

// ClaimType decides which partners take part in a settlement.
type ClaimType string

const (
	ClaimTypeAuto      ClaimType = "AUTO"
	ClaimTypeProperty  ClaimType = "PROPERTY"
	ClaimTypeLiability ClaimType = "LIABILITY"
	ClaimTypeHealth    ClaimType = "HEALTH"
)

func (t ClaimType) Valid() bool {
	switch t {
	case ClaimTypeAuto, ClaimTypeProperty, ClaimTypeLiability, ClaimTypeHealth:
		return true
	}
	return false
}

// PaymentMethod is how the payment processor disburses funds to the claimant.
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCheck        PaymentMethod = "CHECK"
	PaymentMethodCard         PaymentMethod = "CARD"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case PaymentMethodBankTransfer, PaymentMethodCheck, PaymentMethodCard:
		return m, nil
	}
	return "", NewInvalidPaymentMethodError(s)
}

// NewAmount parses a positive monetary amount with at most two fractional digits.
func NewAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &DomainError{
			Code:    ErrCodeInvalidAmount,
			Message: "amount is not a number",
			Err:     ErrInvalidAmount,
		}
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount rejects zero, negative and sub-cent amounts.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() || !d.Equal(d.Round(AmountScale)) {
		return NewInvalidAmountError(d)
	}
	return nil
}
