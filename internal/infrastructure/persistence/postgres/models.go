package postgres

import (
	"fmt"
	"time"

	"github.com/DanielPopoola/claims-settlement/internal/domain"
	"github.com/shopspring/decimal"
)

// Amounts travel as text in both directions so NUMERIC values keep their
// exact scale.

type ClaimModel struct {
	Number       string
	Type         string
	PolicyNumber string
	SubjectRef   string
	Currency     string
	Status       string
	ClaimAmount  string
	PaidAmount   string
	Version      int64
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

type PaymentModel struct {
	TransactionID      string
	ClaimNumber        string
	Amount             string
	Method             string
	ProcessorReference *string
	Status             string
	Version            int64
	CreatedAt          time.Time
	ModifiedAt         time.Time
}

func toClaimModel(c *domain.Claim) ClaimModel {
	return ClaimModel{
		Number:       c.Number,
		Type:         string(c.Type),
		PolicyNumber: c.PolicyNumber,
		SubjectRef:   c.SubjectRef,
		Currency:     c.Currency,
		Status:       string(c.Status),
		ClaimAmount:  c.ClaimAmount.StringFixed(domain.AmountScale),
		PaidAmount:   c.PaidAmount.StringFixed(domain.AmountScale),
		Version:      c.Version,
		CreatedAt:    c.CreatedAt,
		ModifiedAt:   c.ModifiedAt,
	}
}

func (m ClaimModel) toDomain() (*domain.Claim, error) {
	claimAmount, err := decimal.NewFromString(m.ClaimAmount)
	if err != nil {
		return nil, fmt.Errorf("claim %s: parse claim_amount: %w", m.Number, err)
	}
	paidAmount, err := decimal.NewFromString(m.PaidAmount)
	if err != nil {
		return nil, fmt.Errorf("claim %s: parse paid_amount: %w", m.Number, err)
	}
	return &domain.Claim{
		Number:       m.Number,
		Type:         domain.ClaimType(m.Type),
		PolicyNumber: m.PolicyNumber,
		SubjectRef:   m.SubjectRef,
		Currency:     m.Currency,
		Status:       domain.ClaimStatus(m.Status),
		ClaimAmount:  claimAmount,
		PaidAmount:   paidAmount,
		Version:      m.Version,
		CreatedAt:    m.CreatedAt,
		ModifiedAt:   m.ModifiedAt,
	}, nil
}

func toPaymentModel(p *domain.Payment) PaymentModel {
	return PaymentModel{
		TransactionID:      p.TransactionID,
		ClaimNumber:        p.ClaimNumber,
		Amount:             p.Amount.StringFixed(domain.AmountScale),
		Method:             string(p.Method),
		ProcessorReference: p.ProcessorReference,
		Status:             string(p.Status),
		Version:            p.Version,
		CreatedAt:          p.CreatedAt,
		ModifiedAt:         p.ModifiedAt,
	}
}

func (m PaymentModel) toDomain() (*domain.Payment, error) {
	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return nil, fmt.Errorf("payment %s: parse amount: %w", m.TransactionID, err)
	}
	return &domain.Payment{
		TransactionID:      m.TransactionID,
		ClaimNumber:        m.ClaimNumber,
		Amount:             amount,
		Method:             domain.PaymentMethod(m.Method),
		ProcessorReference: m.ProcessorReference,
		Status:             domain.PaymentStatus(m.Status),
		Version:            m.Version,
		CreatedAt:          m.CreatedAt,
		ModifiedAt:         m.ModifiedAt,
	}, nil
}
