// Package worker runs the background re-drive of deferred settlements.
package worker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/DanielPopoola/claims-settlement/internal/application"
	"github.com/DanielPopoola/claims-settlement/internal/application/services"
	"github.com/DanielPopoola/claims-settlement/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Redriver resubmits a deferred settlement without enqueueing it again.
type Redriver interface {
	Redrive(ctx context.Context, item application.DeferredSettlement) (*services.SettlementResult, error)
}

type Config struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	// Concurrency caps how many items of a batch are re-driven at once.
	Concurrency int
}

type DeferredSettlementWorker struct {
	queue    application.DeferredQueue
	redriver Redriver
	cfg      Config
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewDeferredSettlementWorker(
	queue application.DeferredQueue,
	redriver Redriver,
	cfg Config,
	m *metrics.Metrics,
	logger *slog.Logger,
) *DeferredSettlementWorker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &DeferredSettlementWorker{
		queue:    queue,
		redriver: redriver,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Start polls the queue every interval until ctx is done.
func (w *DeferredSettlementWorker) Start(ctx context.Context) {
	w.logger.Info("deferred settlement worker started",
		"interval", w.cfg.Interval,
		"batch_size", w.cfg.BatchSize,
		"max_attempts", w.cfg.MaxAttempts,
	)
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("deferred settlement worker stopping")
			return
		case <-ticker.C:
			if err := w.ProcessDue(ctx); err != nil {
				w.logger.Error("deferred settlement processing failed", "error", err)
			}
		}
	}
}

// ProcessDue re-drives one batch of due settlements.
func (w *DeferredSettlementWorker) ProcessDue(ctx context.Context) error {
	items, err := w.queue.Due(ctx, w.now(), w.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for _, item := range items {
		g.Go(func() error {
			w.redrive(gctx, item)
			return nil
		})
	}
	_ = g.Wait()

	w.logger.Info("processed deferred settlements", "count", len(items))
	return nil
}

func (w *DeferredSettlementWorker) redrive(ctx context.Context, item application.DeferredSettlement) {
	result, err := w.redriver.Redrive(ctx, item)

	switch {
	case err == nil:
		w.remove(ctx, item, strings.ToLower(string(result.Status)))
		w.logger.Info("deferred settlement resolved",
			"claim_number", item.ClaimNumber,
			"transaction_id", item.TransactionID,
			"status", result.Status,
			"attempt", item.Attempt+1,
		)

	case application.IsRetryable(err):
		w.reschedule(ctx, item, err)

	default:
		w.remove(ctx, item, "dropped")
		w.logger.Warn("deferred settlement dropped",
			"claim_number", item.ClaimNumber,
			"transaction_id", item.TransactionID,
			"category", application.CategorizeError(err),
			"error", err,
		)
	}
}

func (w *DeferredSettlementWorker) reschedule(ctx context.Context, item application.DeferredSettlement, lastErr error) {
	item.Attempt++
	if item.Attempt >= w.cfg.MaxAttempts {
		w.remove(ctx, item, "abandoned")
		w.logger.Error("DEFERRED_SETTLEMENT_ABANDONED",
			"claim_number", item.ClaimNumber,
			"transaction_id", item.TransactionID,
			"attempts", item.Attempt,
			"error", lastErr,
			"action", "MANUAL_SETTLEMENT_REQUIRED",
		)
		return
	}

	item.NextAttemptAt = w.now().Add(w.Backoff(item.Attempt))
	if derr, ok := application.AsDeferredError(lastErr); ok {
		item.Reason = derr.Reason
	}
	if err := w.queue.Enqueue(ctx, item); err != nil {
		w.logger.Error("failed to reschedule deferred settlement",
			"claim_number", item.ClaimNumber,
			"error", err,
		)
		return
	}
	w.metrics.IncrementRedrive("rescheduled")
	w.logger.Info("deferred settlement rescheduled",
		"claim_number", item.ClaimNumber,
		"attempt", item.Attempt,
		"next_attempt_at", item.NextAttemptAt,
	)
}

func (w *DeferredSettlementWorker) remove(ctx context.Context, item application.DeferredSettlement, result string) {
	if err := w.queue.Remove(ctx, item); err != nil {
		w.logger.Error("failed to remove deferred settlement",
			"claim_number", item.ClaimNumber,
			"error", err,
		)
	}
	w.metrics.IncrementRedrive(result)
}

// Backoff is the wait before the given re-drive attempt: interval * 2^attempt.
func (w *DeferredSettlementWorker) Backoff(attempt int) time.Duration {
	return w.cfg.Interval * time.Duration(1<<attempt)
}
