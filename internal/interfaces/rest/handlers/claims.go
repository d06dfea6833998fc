package handlers

import (
	"net/http"

	"github.com/DanielPopoola/claims-settlement/internal/application/services"
	"github.com/DanielPopoola/claims-settlement/internal/domain"
	"github.com/DanielPopoola/claims-settlement/internal/interfaces/rest"
)

// RegisterClaim handles POST /api/v1/claims.
func (h *Handlers) RegisterClaim(w http.ResponseWriter, r *http.Request) {
	var req RegisterClaimRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	amount, err := domain.NewAmount(req.ClaimAmount)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	claim, err := h.registrar.Register(r.Context(), services.RegisterClaimCommand{
		ClaimNumber:  req.ClaimNumber,
		Type:         domain.ClaimType(req.ClaimType),
		PolicyNumber: req.PolicyNumber,
		SubjectRef:   req.SubjectRef,
		Currency:     req.Currency,
		ClaimAmount:  amount,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, toClaimDTO(claim, nil))
}

// GetClaim handles GET /api/v1/claims/{claimNumber}.
func (h *Handlers) GetClaim(w http.ResponseWriter, r *http.Request) {
	claimNumber, err := claimNumberParam(r)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	view, err := h.reader.GetClaim(r.Context(), claimNumber)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, toClaimDTO(view.Claim, view.Payments))
}
