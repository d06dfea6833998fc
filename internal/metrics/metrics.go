package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for settlement and partner integrations.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Settlement outcomes by status and claim type
	SettlementOutcome *prometheus.CounterVec

	// End-to-end settlement latency
	SettlementLatency prometheus.Histogram

	// Per-attempt partner latency by partner and result
	IntegrationLatency *prometheus.HistogramVec

	// Circuit state by partner: 0 closed, 1 open, 2 half-open
	CircuitState *prometheus.GaugeVec

	// Optimistic concurrency conflicts by outcome ("retried", "surfaced")
	LedgerConflicts *prometheus.CounterVec

	// Deferred settlements re-driven by the worker, by result
	DeferredRedrives *prometheus.CounterVec
}

// New registers all metrics with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SettlementOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claims_settlement_outcomes_total",
			Help: "Total settlement outcomes by status and claim type",
		}, []string{"status", "claim_type"}),

		SettlementLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "claims_settlement_duration_seconds",
			Help:    "Duration of full settlement including partner calls and ledger commit",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),

		IntegrationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "claims_integration_attempt_duration_seconds",
			Help:    "Duration of single partner call attempts",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"partner", "result"}),

		CircuitState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "claims_integration_circuit_state",
			Help: "Circuit breaker state per partner (0 closed, 1 open, 2 half-open)",
		}, []string{"partner"}),

		LedgerConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claims_ledger_version_conflicts_total",
			Help: "Optimistic concurrency conflicts observed by the settlement coordinator",
		}, []string{"outcome"}),

		DeferredRedrives: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claims_deferred_redrives_total",
			Help: "Deferred settlements re-driven by the background worker",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncrementOutcome(status, claimType string) {
	if m != nil {
		m.SettlementOutcome.WithLabelValues(status, claimType).Inc()
	}
}

func (m *Metrics) ObserveSettlementLatency(d time.Duration) {
	if m != nil {
		m.SettlementLatency.Observe(d.Seconds())
	}
}

// ObserveAttempt records one partner call attempt.
func (m *Metrics) ObserveAttempt(partner, result string, d time.Duration) {
	if m != nil {
		m.IntegrationLatency.WithLabelValues(partner, result).Observe(d.Seconds())
	}
}

func (m *Metrics) SetCircuitState(partner string, state int) {
	if m != nil {
		m.CircuitState.WithLabelValues(partner).Set(float64(state))
	}
}

func (m *Metrics) IncrementConflict(outcome string) {
	if m != nil {
		m.LedgerConflicts.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementRedrive(result string) {
	if m != nil {
		m.DeferredRedrives.WithLabelValues(result).Inc()
	}
}
