package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DanielPopoola/claims-settlement/internal/application"
	"github.com/DanielPopoola/claims-settlement/internal/domain"
	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/gateway"
	"github.com/DanielPopoola/claims-settlement/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/DanielPopoola/claims-settlement/internal/application/services")

// TaskRunner runs a batch of integration calls, returning one outcome per
// call in submission order.
type TaskRunner interface {
	RunAll(ctx context.Context, calls []gateway.Call) []gateway.Outcome
}

type CoordinatorConfig struct {
	// Deadline bounds a whole settlement, partner calls included.
	Deadline time.Duration
	// RetryAfter is the delay suggested to callers of a deferred settlement.
	RetryAfter time.Duration
	// WriteTimeout bounds the ledger write that records a decision. It runs
	// outside Deadline once the partners have answered.
	WriteTimeout time.Duration
}

// SettlementCoordinator validates a settlement request, consults the
// partners its claim type requires and applies the resulting decision
// through the ledger.
type SettlementCoordinator struct {
	store     application.Store
	ledger    *PaymentLedger
	runner    TaskRunner
	publisher application.EventPublisher
	queue     application.DeferredQueue
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       CoordinatorConfig
	newKey    func() string
	now       func() time.Time
}

type CoordinatorOption func(*SettlementCoordinator)

func WithPublisher(p application.EventPublisher) CoordinatorOption {
	return func(s *SettlementCoordinator) { s.publisher = p }
}

// WithDeferredQueue makes deferred settlements eligible for background re-drive.
func WithDeferredQueue(q application.DeferredQueue) CoordinatorOption {
	return func(s *SettlementCoordinator) { s.queue = q }
}

func WithCoordinatorMetrics(m *metrics.Metrics) CoordinatorOption {
	return func(s *SettlementCoordinator) { s.metrics = m }
}

// WithKeyGenerator replaces the generator of request idempotency keys.
func WithKeyGenerator(fn func() string) CoordinatorOption {
	return func(s *SettlementCoordinator) { s.newKey = fn }
}

func NewSettlementCoordinator(
	store application.Store,
	ledger *PaymentLedger,
	runner TaskRunner,
	cfg CoordinatorConfig,
	logger *slog.Logger,
	opts ...CoordinatorOption,
) *SettlementCoordinator {
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	s := &SettlementCoordinator{
		store:  store,
		ledger: ledger,
		runner: runner,
		cfg:    cfg,
		logger: logger,
		newKey: uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settle runs one settlement request to a decision. Approved and denied
// settlements return a result and a nil error. A deferred settlement
// returns a DEFERRED result together with an *application.DeferredError
// carrying the transaction ID a resubmission must reuse. Only settlements
// whose caller supplied a transaction ID are queued for background re-drive.
// Other failures are *application.ValidationError,
// *application.ConflictError or an internal *application.ServiceError.
func (s *SettlementCoordinator) Settle(ctx context.Context, cmd SettleCommand) (*SettlementResult, error) {
	return s.run(ctx, cmd, s.queue != nil)
}

// Redrive resubmits a deferred settlement. It never enqueues the request
// again; the caller owns its schedule.
func (s *SettlementCoordinator) Redrive(ctx context.Context, item application.DeferredSettlement) (*SettlementResult, error) {
	return s.run(ctx, SettleCommand{
		ClaimNumber:   item.ClaimNumber,
		Amount:        item.Amount,
		PaymentMethod: domain.PaymentMethod(item.PaymentMethod),
		TransactionID: item.TransactionID,
	}, false)
}

func (s *SettlementCoordinator) run(ctx context.Context, cmd SettleCommand, enqueue bool) (*SettlementResult, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "settlement.settle", trace.WithAttributes(
		attribute.String("claim_number", cmd.ClaimNumber),
		attribute.String("amount", cmd.Amount.String()),
	))
	defer span.End()

	if s.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Deadline)
		defer cancel()
	}

	result, err := s.settle(ctx, cmd, enqueue)
	s.record(ctx, span, cmd, result, err, time.Since(start))
	return result, err
}

func (s *SettlementCoordinator) settle(ctx context.Context, cmd SettleCommand, enqueue bool) (*SettlementResult, error) {
	if err := cmd.validate(); err != nil {
		return nil, &application.ValidationError{ClaimNumber: cmd.ClaimNumber, Err: err}
	}

	if cmd.TransactionID != "" {
		entry, err := s.ledger.Replay(ctx, cmd.ClaimNumber, cmd.TransactionID)
		switch {
		case err == nil:
			return &SettlementResult{Status: SettlementApproved, Claim: entry.Claim, Payment: entry.Payment, Replayed: true}, nil
		case errors.Is(err, domain.ErrDuplicatePayment):
			return nil, &application.ValidationError{ClaimNumber: cmd.ClaimNumber, Err: err}
		case !errors.Is(err, domain.ErrPaymentNotFound):
			return nil, application.NewInternalError(err)
		}
	}

	key := cmd.TransactionID
	if key == "" {
		key = s.newKey()
	}

	result, err := s.attempt(ctx, cmd, key, enqueue)
	if !errors.Is(err, domain.ErrVersionConflict) {
		return result, err
	}

	s.metrics.IncrementConflict("retried")
	s.logger.InfoContext(ctx, "claim changed during settlement, retrying",
		"claim_number", cmd.ClaimNumber,
		"error", err,
	)

	result, err = s.attempt(ctx, cmd, key, enqueue)
	if errors.Is(err, domain.ErrVersionConflict) {
		s.metrics.IncrementConflict("surfaced")
		return nil, &application.ConflictError{ClaimNumber: cmd.ClaimNumber, Err: err}
	}
	return result, err
}

// attempt is one pass of read, validate, decide and apply against a fresh
// snapshot of the claim.
func (s *SettlementCoordinator) attempt(ctx context.Context, cmd SettleCommand, key string, enqueue bool) (*SettlementResult, error) {
	claim, err := s.store.Claims().FindByNumber(ctx, cmd.ClaimNumber)
	if err != nil {
		if errors.Is(err, domain.ErrClaimNotFound) {
			return nil, &application.ValidationError{ClaimNumber: cmd.ClaimNumber, Err: err}
		}
		if ctx.Err() != nil {
			return s.deferSettlement(ctx, cmd, key, nil, deadlineDecision(), nil, enqueue)
		}
		return nil, application.NewInternalError(err)
	}
	if err := claim.ValidateSettlement(cmd.Amount); err != nil {
		return nil, &application.ValidationError{ClaimNumber: cmd.ClaimNumber, Err: err}
	}

	decision, outcomes := s.decide(ctx, claim, cmd, key)

	switch decision.Verdict {
	case VerdictDeny:
		wctx, cancel := s.writeContext(ctx)
		defer cancel()
		updated, err := s.ledger.RecordDenial(wctx, claim.Number, claim.Version)
		if err != nil {
			return nil, s.ledgerError(cmd, err)
		}
		s.publish(ctx, application.EventSettlementDenied, updated, nil, cmd.Amount, decision.Reason)
		return &SettlementResult{Status: SettlementDenied, Claim: updated, Reason: decision.Reason, Outcomes: outcomes}, nil

	case VerdictDefer:
		return s.deferSettlement(ctx, cmd, key, claim, decision, outcomes, enqueue)
	}

	reference := processorReference(outcomes)
	transactionID := cmd.TransactionID
	if transactionID == "" {
		transactionID = reference
	}
	if transactionID == "" {
		transactionID = key
	}

	wctx, cancel := s.writeContext(ctx)
	defer cancel()
	entry, err := s.ledger.ApplySettlement(wctx, claim.Number, claim.Version, PaymentInstruction{
		TransactionID:      transactionID,
		Amount:             cmd.Amount,
		Method:             cmd.PaymentMethod,
		ProcessorReference: reference,
	})
	if err != nil {
		return nil, s.ledgerError(cmd, err)
	}
	if !entry.Replayed {
		s.publish(ctx, application.EventSettlementApproved, entry.Claim, entry.Payment, cmd.Amount, "")
	}

	return &SettlementResult{
		Status:   SettlementApproved,
		Claim:    entry.Claim,
		Payment:  entry.Payment,
		Replayed: entry.Replayed,
		Outcomes: outcomes,
	}, nil
}

func (s *SettlementCoordinator) decide(ctx context.Context, claim *domain.Claim, cmd SettleCommand, key string) (Decision, []gateway.Outcome) {
	var all []gateway.Outcome
	for _, stage := range PlanFor(claim, cmd, key) {
		outcomes := s.runner.RunAll(ctx, stage)
		all = append(all, outcomes...)
		if d := Reduce(outcomes); d.Verdict != VerdictApprove {
			return d, all
		}
	}
	return Decision{Verdict: VerdictApprove}, all
}

// writeContext records a decision even when the settlement deadline fired
// after the partners answered.
func (s *SettlementCoordinator) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
}

func deadlineDecision() Decision {
	return Decision{Verdict: VerdictDefer, Reason: "settlement deadline exceeded"}
}

// deferSettlement reports a deferral. claim is nil when the deadline expired
// before the claim could be read.
func (s *SettlementCoordinator) deferSettlement(
	ctx context.Context,
	cmd SettleCommand,
	key string,
	claim *domain.Claim,
	decision Decision,
	outcomes []gateway.Outcome,
	enqueue bool,
) (*SettlementResult, error) {
	var cause error
	if decision.Cause != nil && decision.Cause.Err != nil {
		cause = decision.Cause.Err
	} else if ctxErr := ctx.Err(); ctxErr != nil {
		cause = ctxErr
	}

	s.logger.WarnContext(ctx, "settlement deferred",
		"claim_number", cmd.ClaimNumber,
		"transaction_id", key,
		"reason", decision.Reason,
		"category", application.CategorizeError(cause),
	)

	// Generated keys are not queued; the caller resubmits with the returned key.
	if enqueue && cmd.TransactionID != "" {
		now := s.now()
		item := application.DeferredSettlement{
			ID:            key,
			ClaimNumber:   cmd.ClaimNumber,
			Amount:        cmd.Amount,
			PaymentMethod: string(cmd.PaymentMethod),
			TransactionID: key,
			Reason:        decision.Reason,
			NextAttemptAt: now.Add(s.cfg.RetryAfter),
			EnqueuedAt:    now,
		}
		if err := s.queue.Enqueue(context.WithoutCancel(ctx), item); err != nil {
			s.logger.ErrorContext(ctx, "failed to enqueue deferred settlement",
				"claim_number", cmd.ClaimNumber,
				"error", err,
			)
		}
	}

	result := &SettlementResult{Status: SettlementDeferred, Claim: claim, Reason: decision.Reason, Outcomes: outcomes}
	return result, &application.DeferredError{
		ClaimNumber:   cmd.ClaimNumber,
		TransactionID: key,
		Reason:        decision.Reason,
		RetryAfter:    s.cfg.RetryAfter,
		Err:           cause,
	}
}

// ledgerError keeps version conflicts recognizable for the retry and turns
// rule violations discovered at write time into validation failures.
func (s *SettlementCoordinator) ledgerError(cmd SettleCommand, err error) error {
	switch {
	case errors.Is(err, domain.ErrVersionConflict):
		return err
	case errors.Is(err, domain.ErrClaimNotFound),
		errors.Is(err, domain.ErrAmountExceedsBalance),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrDuplicatePayment):
		return &application.ValidationError{ClaimNumber: cmd.ClaimNumber, Err: err}
	}
	return application.NewInternalError(err)
}

func (s *SettlementCoordinator) publish(ctx context.Context, eventType string, claim *domain.Claim, payment *domain.Payment, amount decimal.Decimal, reason string) {
	if s.publisher == nil {
		return
	}
	event := application.SettlementEvent{
		Type:         eventType,
		ClaimNumber:  claim.Number,
		ClaimStatus:  string(claim.Status),
		ClaimVersion: claim.Version,
		Amount:       amount,
		PaidAmount:   claim.PaidAmount,
		Reason:       reason,
		OccurredAt:   s.now(),
	}
	if payment != nil {
		event.TransactionID = payment.TransactionID
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish settlement event",
			"claim_number", claim.Number,
			"event", eventType,
			"error", err,
		)
	}
}

func (s *SettlementCoordinator) record(ctx context.Context, span trace.Span, cmd SettleCommand, result *SettlementResult, err error, elapsed time.Duration) {
	status := application.ToErrorCode(err)
	claimType := ""
	if result != nil {
		status = string(result.Status)
		if result.Claim != nil {
			claimType = string(result.Claim.Type)
		}
	}

	s.metrics.IncrementOutcome(status, claimType)
	s.metrics.ObserveSettlementLatency(elapsed)

	span.SetAttributes(attribute.String("status", status))
	if result == nil && err != nil {
		span.SetStatus(codes.Error, status)
		span.RecordError(err)
	}

	s.logger.InfoContext(ctx, "settlement finished",
		"claim_number", cmd.ClaimNumber,
		"status", status,
		"duration", elapsed,
	)
}

func processorReference(outcomes []gateway.Outcome) string {
	for _, o := range outcomes {
		if o.Call.Partner == gateway.PaymentProcessor && o.Response != nil {
			return o.Response.Reference
		}
	}
	return ""
}
