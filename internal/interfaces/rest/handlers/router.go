package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/DanielPopoola/claims-settlement/internal/interfaces/rest"
	"github.com/DanielPopoola/claims-settlement/internal/interfaces/rest/middleware"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	Handlers       *Handlers
	OpenAPI        *openapi3.T
	Gatherer       prometheus.Gatherer
	HealthChecks   map[string]HealthCheck
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// NewRouter mounts the API, health, metrics and contract routes.
func NewRouter(cfg RouterConfig) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Logging(cfg.Logger))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.Recovery(cfg.Logger))

	r.Get("/healthz", Health(cfg.HealthChecks))
	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(rest.OpenAPISpec())
	})
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	validate, err := middleware.OpenAPIValidator(cfg.OpenAPI, cfg.Logger)
	if err != nil {
		return nil, err
	}

	h := cfg.Handlers
	r.Route("/api/v1/claims", func(r chi.Router) {
		r.Use(validate)
		r.Post("/", h.RegisterClaim)
		r.Get("/{claimNumber}", h.GetClaim)
		r.Post("/{claimNumber}/settlements", h.SettleClaim)
	})

	return r, nil
}
