package handlers

import (
	"time"

	"github.com/DanielPopoola/claims-settlement/internal/application/services"
	"github.com/DanielPopoola/claims-settlement/internal/domain"
)

type RegisterClaimRequest struct {
	ClaimNumber  string `json:"claim_number" validate:"required,max=64"`
	ClaimType    string `json:"claim_type" validate:"required,oneof=AUTO PROPERTY LIABILITY HEALTH"`
	PolicyNumber string `json:"policy_number" validate:"required"`
	SubjectRef   string `json:"subject_ref"`
	Currency     string `json:"currency" validate:"required,len=3,alpha"`
	ClaimAmount  string `json:"claim_amount" validate:"required"`
}

type SettlementRequest struct {
	Amount        string `json:"amount" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=BANK_TRANSFER CHECK CARD"`
	TransactionID string `json:"transaction_id,omitempty" validate:"omitempty,max=128"`
}

type PaymentDTO struct {
	TransactionID      string    `json:"transaction_id"`
	ClaimNumber        string    `json:"claim_number"`
	Amount             string    `json:"amount"`
	PaymentMethod      string    `json:"payment_method"`
	ProcessorReference string    `json:"processor_reference,omitempty"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
}

type ClaimDTO struct {
	ClaimNumber      string       `json:"claim_number"`
	ClaimType        string       `json:"claim_type"`
	PolicyNumber     string       `json:"policy_number"`
	SubjectRef       string       `json:"subject_ref,omitempty"`
	Currency         string       `json:"currency"`
	Status           string       `json:"status"`
	ClaimAmount      string       `json:"claim_amount"`
	PaidAmount       string       `json:"paid_amount"`
	RemainingBalance string       `json:"remaining_balance"`
	Version          int64        `json:"version"`
	CreatedAt        time.Time    `json:"created_at"`
	ModifiedAt       time.Time    `json:"modified_at"`
	Payments         []PaymentDTO `json:"payments,omitempty"`
}

type SettlementDTO struct {
	Status   string      `json:"status"`
	Reason   string      `json:"reason,omitempty"`
	Replayed bool        `json:"replayed"`
	Claim    *ClaimDTO   `json:"claim,omitempty"`
	Payment  *PaymentDTO `json:"payment,omitempty"`
}

func toPaymentDTO(p *domain.Payment) PaymentDTO {
	dto := PaymentDTO{
		TransactionID: p.TransactionID,
		ClaimNumber:   p.ClaimNumber,
		Amount:        p.Amount.StringFixed(domain.AmountScale),
		PaymentMethod: string(p.Method),
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt,
	}
	if p.ProcessorReference != nil {
		dto.ProcessorReference = *p.ProcessorReference
	}
	return dto
}

func toClaimDTO(c *domain.Claim, payments []*domain.Payment) ClaimDTO {
	dto := ClaimDTO{
		ClaimNumber:      c.Number,
		ClaimType:        string(c.Type),
		PolicyNumber:     c.PolicyNumber,
		SubjectRef:       c.SubjectRef,
		Currency:         c.Currency,
		Status:           string(c.Status),
		ClaimAmount:      c.ClaimAmount.StringFixed(domain.AmountScale),
		PaidAmount:       c.PaidAmount.StringFixed(domain.AmountScale),
		RemainingBalance: c.RemainingBalance().StringFixed(domain.AmountScale),
		Version:          c.Version,
		CreatedAt:        c.CreatedAt,
		ModifiedAt:       c.ModifiedAt,
	}
	for _, p := range payments {
		dto.Payments = append(dto.Payments, toPaymentDTO(p))
	}
	return dto
}

func toSettlementDTO(r *services.SettlementResult) SettlementDTO {
	dto := SettlementDTO{
		Status:   string(r.Status),
		Reason:   r.Reason,
		Replayed: r.Replayed,
	}
	if r.Claim != nil {
		claim := toClaimDTO(r.Claim, nil)
		dto.Claim = &claim
	}
	if r.Payment != nil {
		payment := toPaymentDTO(r.Payment)
		dto.Payment = &payment
	}
	return dto
}
