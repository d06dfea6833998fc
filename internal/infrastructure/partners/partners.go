package partners

import (
	"net/http"

	"github.com/DanielPopoola/claims-settlement/internal/config"
	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/gateway"
)

// NewVehicleRegistryClient: 404 unknown vehicle, 409 ownership mismatch,
// 422 vehicle flagged.
func NewVehicleRegistryClient(cfg config.PartnerConfig) *HTTPClient {
	return newHTTPClient(gateway.VehicleRegistry, cfg,
		[]int{http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
		map[string]endpoint{
			OpVerifyVehicle: {
				method: http.MethodPost,
				path:   "/api/v1/vehicles/verifications",
				decode: decodeAs(func(r VehicleVerificationResponse) decision {
					return decision{approved: r.Status == "VERIFIED", reason: r.Reason, reference: r.VerificationID}
				}),
			},
		})
}

// NewLossHistoryClient: 409 duplicate loss on record, 422 property flagged.
func NewLossHistoryClient(cfg config.PartnerConfig) *HTTPClient {
	return newHTTPClient(gateway.LossHistory, cfg,
		[]int{http.StatusConflict, http.StatusUnprocessableEntity},
		map[string]endpoint{
			OpCheckLossHistory: {
				method: http.MethodPost,
				path:   "/api/v1/loss-history/checks",
				decode: decodeAs(func(r LossHistoryResponse) decision {
					return decision{approved: r.Status == "CLEAR", reason: r.Reason, reference: r.ReportID}
				}),
			},
		})
}

// NewPolicyRatingClient: 402 premium unpaid, 409 policy lapsed, 422 not covered.
func NewPolicyRatingClient(cfg config.PartnerConfig) *HTTPClient {
	return newHTTPClient(gateway.PolicyRating, cfg,
		[]int{http.StatusPaymentRequired, http.StatusConflict, http.StatusUnprocessableEntity},
		map[string]endpoint{
			OpRateCoverage: {
				method: http.MethodPost,
				path:   "/api/v1/coverage/ratings",
				decode: decodeAs(func(r CoverageResponse) decision {
					return decision{approved: r.Covered, reason: r.Reason, reference: r.RatingID}
				}),
			},
		})
}

// NewPaymentProcessorClient: 402 insufficient funds, 409 account closed,
// 422 payee details rejected.
func NewPaymentProcessorClient(cfg config.PartnerConfig) *HTTPClient {
	return newHTTPClient(gateway.PaymentProcessor, cfg,
		[]int{http.StatusPaymentRequired, http.StatusConflict, http.StatusUnprocessableEntity},
		map[string]endpoint{
			OpDisburse: {
				method: http.MethodPost,
				path:   "/api/v1/disbursements",
				decode: decodeAs(func(r DisbursementResponse) decision {
					return decision{approved: r.Status == "SETTLED", reason: r.Reason, reference: r.TransactionID}
				}),
			},
		})
}

// NewClients builds the HTTP client of every partner from configuration.
func NewClients(cfg config.PartnersConfig) []*HTTPClient {
	return []*HTTPClient{
		NewVehicleRegistryClient(cfg.VehicleRegistry),
		NewPaymentProcessorClient(cfg.PaymentProcessor),
		NewLossHistoryClient(cfg.LossHistory),
		NewPolicyRatingClient(cfg.PolicyRating),
	}
}

// PartnerConfigFor returns the configuration section of p.
func PartnerConfigFor(cfg config.PartnersConfig, p gateway.Partner) config.PartnerConfig {
	switch p {
	case gateway.VehicleRegistry:
		return cfg.VehicleRegistry
	case gateway.PaymentProcessor:
		return cfg.PaymentProcessor
	case gateway.LossHistory:
		return cfg.LossHistory
	default:
		return cfg.PolicyRating
	}
}
