package gateway

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/DanielPopoola/claims-settlement/internal/config"
	"github.com/DanielPopoola/claims-settlement/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/DanielPopoola/claims-settlement/internal/infrastructure/gateway")

// Config is the per-partner resilience policy.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxAttempts    int
	BaseDelay      time.Duration
	Multiplier     float64
	MaxBackoff     time.Duration
	// Jitter adds up to this much random delay on top of each backoff.
	Jitter time.Duration

	FailureRateThreshold float64
	WindowSize           int
	MinimumCalls         int
	Cooldown             time.Duration
}

func ConfigFrom(pc config.PartnerConfig) Config {
	return Config{
		ConnectTimeout:       pc.ConnectTimeout,
		ReadTimeout:          pc.ReadTimeout,
		MaxAttempts:          pc.MaxAttempts,
		BaseDelay:            pc.BaseDelay,
		Multiplier:           pc.Multiplier,
		MaxBackoff:           pc.MaxBackoff,
		Jitter:               pc.Jitter,
		FailureRateThreshold: pc.FailureRateThreshold,
		WindowSize:           pc.WindowSize,
		MinimumCalls:         pc.MinimumCalls,
		Cooldown:             pc.Cooldown,
	}
}

// Backoff returns the delay before the retry following the given zero-based
// failed attempt: min(base * multiplier^attempt, cap).
func (c Config) Backoff(attempt int) time.Duration {
	delay := float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt))
	if c.MaxBackoff > 0 && delay > float64(c.MaxBackoff) {
		return c.MaxBackoff
	}
	return time.Duration(delay)
}

func (c Config) attemptTimeout() time.Duration {
	return c.ConnectTimeout + c.ReadTimeout
}

// Gateway wraps one partner client with per-attempt timeouts, bounded
// exponential retry and a circuit breaker. It is safe for concurrent use.
type Gateway struct {
	client  Client
	cfg     Config
	breaker *Breaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

type Option func(*Gateway)

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// WithBreakerOptions passes extra options, such as a test clock, to the breaker.
func WithBreakerOptions(opts ...BreakerOption) Option {
	return func(g *Gateway) {
		for _, opt := range opts {
			opt(g.breaker)
		}
	}
}

func New(client Client, cfg Config, opts ...Option) *Gateway {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	g := &Gateway{
		client: client,
		cfg:    cfg,
		logger: slog.Default(),
		sleep:  sleepContext,
	}
	g.breaker = NewBreaker(string(client.Partner()),
		WithFailureRateThreshold(cfg.FailureRateThreshold),
		WithWindowSize(cfg.WindowSize),
		WithMinimumCalls(cfg.MinimumCalls),
		WithCooldown(cfg.Cooldown),
		WithStateChangeHook(g.onStateChange),
	)
	for _, opt := range opts {
		opt(g)
	}
	g.metrics.SetCircuitState(string(client.Partner()), int(StateClosed))
	return g
}

func (g *Gateway) Partner() Partner { return g.client.Partner() }

func (g *Gateway) Breaker() *Breaker { return g.breaker }

// Call performs operation against the partner and always returns an
// Outcome; Outcome.Err is set on failure.
func (g *Gateway) Call(ctx context.Context, operation string, payload any) Outcome {
	partner := g.client.Partner()
	call := Call{Partner: partner, Operation: operation, Payload: payload}
	start := time.Now()

	ctx, span := tracer.Start(ctx, "gateway.call", trace.WithAttributes(
		attribute.String("partner", string(partner)),
		attribute.String("operation", operation),
	))
	defer span.End()

	outcome := g.call(ctx, call)
	outcome.Elapsed = time.Since(start)

	span.SetAttributes(attribute.Int("attempts", outcome.Attempts))
	if outcome.Err != nil {
		span.SetStatus(codes.Error, string(outcome.Err.Kind))
		span.RecordError(outcome.Err)
	}
	return outcome
}

func (g *Gateway) call(ctx context.Context, call Call) Outcome {
	outcome := Outcome{Call: call}
	var lastErr *IntegrationError

	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			outcome.Err = g.newError(call, KindTimeout, ctx.Err())
			return outcome
		}

		if !g.breaker.Allow() {
			outcome.Err = g.newError(call, KindCircuitOpen, nil)
			outcome.Err.Reason = "circuit open"
			return outcome
		}

		outcome.Attempts++
		resp, ierr := g.attempt(ctx, call)
		if ierr == nil {
			outcome.Response = resp
			return outcome
		}

		lastErr = ierr
		if !ierr.Retryable() {
			outcome.Err = ierr
			return outcome
		}

		if attempt < g.cfg.MaxAttempts-1 {
			delay := g.backoff(attempt)
			g.logger.WarnContext(ctx, "partner call failed, retrying",
				"partner", call.Partner,
				"operation", call.Operation,
				"attempt", outcome.Attempts,
				"kind", ierr.Kind,
				"backoff", delay,
			)
			if err := g.sleep(ctx, delay); err != nil {
				outcome.Err = g.newError(call, KindTimeout, err)
				return outcome
			}
		}
	}

	outcome.Err = g.newError(call, KindRetriesExhausted, lastErr)
	return outcome
}

// attempt runs a single bounded attempt and records it with the breaker.
func (g *Gateway) attempt(ctx context.Context, call Call) (*Response, *IntegrationError) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.attemptTimeout())
	defer cancel()

	start := time.Now()
	resp, err := g.client.Invoke(attemptCtx, call.Operation, call.Payload)
	ierr := g.classify(ctx, call, resp, err)

	result := "success"
	switch {
	case ierr == nil:
		g.breaker.RecordSuccess()
	case ctx.Err() != nil:
		// The caller gave up; that says nothing about the partner.
		g.breaker.Release()
		result = "cancelled"
	case ierr.IsBusinessRejection():
		g.breaker.RecordSuccess()
		result = "rejected"
	default:
		g.breaker.RecordFailure()
		result = string(ierr.Kind)
	}
	g.metrics.ObserveAttempt(string(call.Partner), result, time.Since(start))

	return resp, ierr
}

func (g *Gateway) classify(ctx context.Context, call Call, resp *Response, err error) *IntegrationError {
	if err != nil {
		if ctx.Err() != nil {
			return g.newError(call, KindTimeout, ctx.Err())
		}
		if isTimeout(err) {
			return g.newError(call, KindTimeout, err)
		}
		return g.newError(call, KindUnreachable, err)
	}

	if resp == nil {
		ierr := g.newError(call, KindUnreachable, nil)
		ierr.Reason = "empty response"
		return ierr
	}
	if resp.Success {
		return nil
	}

	kind := KindRejected
	if resp.Retryable {
		kind = KindUnreachable
	}
	ierr := g.newError(call, kind, nil)
	ierr.StatusCode = resp.StatusCode
	ierr.Reason = resp.Reason
	ierr.Business = kind == KindRejected && !resp.Fault
	return ierr
}

func (g *Gateway) backoff(attempt int) time.Duration {
	delay := g.cfg.Backoff(attempt)
	if g.cfg.Jitter > 0 {
		delay += rand.N(g.cfg.Jitter)
	}
	return delay
}

func (g *Gateway) newError(call Call, kind Kind, err error) *IntegrationError {
	return &IntegrationError{
		Kind:      kind,
		Partner:   call.Partner,
		Operation: call.Operation,
		Err:       err,
	}
}

func (g *Gateway) onStateChange(name string, change StateChange) {
	g.metrics.SetCircuitState(name, int(change.To))
	g.logger.Warn("circuit state changed",
		"partner", name,
		"from", change.From.String(),
		"to", change.To.String(),
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
