package services

import (
	"github.com/DanielPopoola/claims-settlement/internal/domain"
	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/gateway"
	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/partners"
)

// Stage is one batch of integration calls run concurrently.
type Stage []gateway.Call

// PlanFor returns the stages a settlement of claim runs through. Each stage
// starts only if every call of the previous one succeeded; the disbursement
// is always the last stage.
func PlanFor(claim *domain.Claim, cmd SettleCommand, idempotencyKey string) []Stage {
	disburse := Stage{{
		Partner:   gateway.PaymentProcessor,
		Operation: partners.OpDisburse,
		Payload: partners.DisbursementRequest{
			ClaimNumber:    claim.Number,
			Amount:         cmd.Amount.StringFixed(domain.AmountScale),
			Currency:       claim.Currency,
			PaymentMethod:  string(cmd.PaymentMethod),
			IdempotencyKey: idempotencyKey,
		},
	}}

	var check gateway.Call
	switch claim.Type {
	case domain.ClaimTypeAuto:
		check = gateway.Call{
			Partner:   gateway.VehicleRegistry,
			Operation: partners.OpVerifyVehicle,
			Payload: partners.VehicleVerificationRequest{
				ClaimNumber:  claim.Number,
				PolicyNumber: claim.PolicyNumber,
				VIN:          claim.SubjectRef,
			},
		}
	case domain.ClaimTypeProperty:
		check = gateway.Call{
			Partner:   gateway.LossHistory,
			Operation: partners.OpCheckLossHistory,
			Payload: partners.LossHistoryRequest{
				ClaimNumber:  claim.Number,
				PolicyNumber: claim.PolicyNumber,
				PropertyRef:  claim.SubjectRef,
			},
		}
	default:
		check = gateway.Call{
			Partner:   gateway.PolicyRating,
			Operation: partners.OpRateCoverage,
			Payload: partners.CoverageRequest{
				PolicyNumber: claim.PolicyNumber,
				ClaimType:    string(claim.Type),
				Amount:       cmd.Amount.StringFixed(domain.AmountScale),
				Currency:     claim.Currency,
			},
		}
	}

	return []Stage{{check}, disburse}
}
