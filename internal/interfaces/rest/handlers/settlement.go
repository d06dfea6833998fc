package handlers

import (
	"fmt"
	"net/http"

	"github.com/DanielPopoola/claims-settlement/internal/application"
	"github.com/DanielPopoola/claims-settlement/internal/application/services"
	"github.com/DanielPopoola/claims-settlement/internal/domain"
	"github.com/DanielPopoola/claims-settlement/internal/interfaces/rest"
)

const idempotencyKeyHeader = "Idempotency-Key"

// SettleClaim handles POST /api/v1/claims/{claimNumber}/settlements. The
// Idempotency-Key header stands in for transaction_id when the body has none.
func (h *Handlers) SettleClaim(w http.ResponseWriter, r *http.Request) {
	claimNumber, err := claimNumberParam(r)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	var req SettlementRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	transactionID := req.TransactionID
	if key := r.Header.Get(idempotencyKeyHeader); key != "" {
		if transactionID != "" && transactionID != key {
			rest.WriteError(w, application.NewInvalidInputError(
				fmt.Errorf("%s header %q does not match transaction_id %q", idempotencyKeyHeader, key, transactionID),
			), h.logger)
			return
		}
		transactionID = key
	}

	amount, err := domain.NewAmount(req.Amount)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	result, err := h.settler.Settle(r.Context(), services.SettleCommand{
		ClaimNumber:   claimNumber,
		Amount:        amount,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		TransactionID: transactionID,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.WriteJSON(w, http.StatusOK, toSettlementDTO(result))
}
