package services

import (
	"context"

	"github.com/DanielPopoola/claims-settlement/internal/application"
	"github.com/DanielPopoola/claims-settlement/internal/domain"
)

// ClaimView is a claim with its payment history, oldest first.
type ClaimView struct {
	Claim    *domain.Claim
	Payments []*domain.Payment
}

type ClaimQueryService struct {
	store application.Store
}

func NewClaimQueryService(store application.Store) *ClaimQueryService {
	return &ClaimQueryService{store: store}
}

func (s *ClaimQueryService) GetClaim(ctx context.Context, claimNumber string) (*ClaimView, error) {
	claim, err := s.store.Claims().FindByNumber(ctx, claimNumber)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.Payments().ListByClaim(ctx, claimNumber)
	if err != nil {
		return nil, err
	}
	return &ClaimView{Claim: claim, Payments: payments}, nil
}
