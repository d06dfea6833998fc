package handlers

import (
	"context"
	"log/slog"

	"github.com/DanielPopoola/claims-settlement/internal/application/services"
	"github.com/DanielPopoola/claims-settlement/internal/domain"
	"github.com/go-playground/validator"
)

type Settler interface {
	Settle(ctx context.Context, cmd services.SettleCommand) (*services.SettlementResult, error)
}

type ClaimRegistrar interface {
	Register(ctx context.Context, cmd services.RegisterClaimCommand) (*domain.Claim, error)
}

type ClaimReader interface {
	GetClaim(ctx context.Context, claimNumber string) (*services.ClaimView, error)
}

// Handlers serves the claims settlement API.
type Handlers struct {
	settler   Settler
	registrar ClaimRegistrar
	reader    ClaimReader
	validate  *validator.Validate
	logger    *slog.Logger
}

func NewHandlers(
	settler Settler,
	registrar ClaimRegistrar,
	reader ClaimReader,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		settler:   settler,
		registrar: registrar,
		reader:    reader,
		validate:  validator.New(),
		logger:    logger,
	}
}
