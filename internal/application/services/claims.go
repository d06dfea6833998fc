package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/claims-settlement/internal/application"
	"github.com/DanielPopoola/claims-settlement/internal/domain"
)

// ClaimService registers claims handed over by the claims intake system.
type ClaimService struct {
	store  application.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewClaimService(store application.Store, logger *slog.Logger) *ClaimService {
	return &ClaimService{store: store, logger: logger, now: time.Now}
}

func (s *ClaimService) Register(ctx context.Context, cmd RegisterClaimCommand) (*domain.Claim, error) {
	claim, err := domain.NewClaim(
		cmd.ClaimNumber,
		cmd.Type,
		cmd.PolicyNumber,
		cmd.SubjectRef,
		cmd.Currency,
		cmd.ClaimAmount,
		s.now(),
	)
	if err != nil {
		return nil, err
	}

	if err := s.store.Claims().Create(ctx, claim); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "claim registered",
		"claim_number", claim.Number,
		"claim_type", claim.Type,
		"claim_amount", claim.ClaimAmount.StringFixed(domain.AmountScale),
	)
	return claim, nil
}
