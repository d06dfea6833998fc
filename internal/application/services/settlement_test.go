package services_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DanielPopoola/claims-settlement/internal/application"
	"github.com/DanielPopoola/claims-settlement/internal/application/services"
	"github.com/DanielPopoola/claims-settlement/internal/domain"
	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/gateway"
	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/partners"
	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/persistence/memory"
	"github.com/DanielPopoola/claims-settlement/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settleCmd(txID, amt string) services.SettleCommand {
	return services.SettleCommand{
		ClaimNumber:   "CLM-2024-001",
		Amount:        amount(amt),
		PaymentMethod: domain.PaymentMethodBankTransfer,
		TransactionID: txID,
	}
}

func TestSettle_Approve(t *testing.T) {
	ctx := context.Background()

	t.Run("records payment and credits claim", func(t *testing.T) {
		f := newCoordinatorFixture(services.CoordinatorConfig{Deadline: time.Second})
		seedClaim(t, f.store, "CLM-2024-001", domain.ClaimTypeAuto, "1000.00")
		f.runner.PartnerFn[gateway.PaymentProcessor] = func(_ context.Context, call gateway.Call) gateway.Outcome {
			return succeeded(call, "PP-778")
		}

		result, err := f.coordinator.Settle(ctx, settleCmd("TX-1", "400.00"))

		require.NoError(t, err)
		assert.Equal(t, services.SettlementApproved, result.Status)
		assert.False(t, result.Replayed)
		assert.Equal(t, int64(2), result.Claim.Version)
		assert.Equal(t, "400.00", result.Claim.PaidAmount.StringFixed(2))
		assert.Equal(t, domain.ClaimInReview, result.Claim.Status)
		require.NotNil(t, result.Payment)
		assert.Equal(t, "TX-1", result.Payment.TransactionID)
		assert.Equal(t, domain.PaymentSettled, result.Payment.Status)
		require.NotNil(t, result.Payment.ProcessorReference)
		assert.Equal(t, "PP-778", *result.Payment.ProcessorReference)

		stored, err := f.store.Claims().FindByNumber(ctx, "CLM-2024-001")
		require.NoError(t, err)
		assert.Equal(t, int64(2), stored.Version)

		events := f.publisher.Events()
		require.Len(t, events, 1)
		assert.Equal(t, application.EventSettlementApproved, events[0].Type)
		assert.Equal(t, "TX-1", events[0].TransactionID)
	})

	t.Run("auto claim verifies the vehicle before disbursing", func(t *testing.T) {
		f := newCoordinatorFixture(services.CoordinatorConfig{})
		seedClaim(t, f.store, "CLM-2024-001", domain.ClaimTypeAuto, "1000.00")

		_, err := f.coordinator.Settle(ctx, settleCmd("TX-1", "100.00"))

		require.NoError(t, err)
		calls := f.runner.Calls()
		require.Len(t, calls, 2)
		assert.Equal(t, gateway.VehicleRegistry, calls[0].Partner)
		assert.Equal(t, gateway.PaymentProcessor, calls[1].Partner)

		disburse, ok := calls[1].Payload.(partners.DisbursementRequest)
		require.True(t, ok)
		assert.Equal(t, "TX-1", disburse.IdempotencyKey)
		assert.Equal(t, "100.00", disburse.Amount)
	})

	t.Run("generated key becomes the transaction ID without a processor reference", func(t *testing.T) {
		f := newCoordinatorFixture(services.CoordinatorConfig{}, services.WithKeyGenerator(func() string { return "generated-key" }))
		seedClaim(t, f.store, "CLM-2024-001", domain.ClaimTypeHealth, "1000.00")

		result, err := f.coordinator.Settle(ctx, settleCmd("", "100.00"))

		require.NoError(t, err)
		assert.Equal(t, "generated-key", result.Payment.TransactionID)
		assert.Equal(t, 1, f.runner.CallsTo(gateway.PolicyRating))
	})

	t.Run("full payment marks claim PAID", func(t *testing.T) {
		f := newCoordinatorFixture(services.CoordinatorConfig{})
		seedClaim(t, f.store, "CLM-2024-001", domain.ClaimTypeProperty, "1000.00")

		result, err := f.coordinator.Settle(ctx, settleCmd("TX-1", "1000.00"))

		require.NoError(t, err)
		assert.Equal(t, domain.ClaimPaid, result.Claim.Status)
		assert.Equal(t, 1, f.runner.CallsTo(gateway.LossHistory))
	})
}

func TestSettle_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("amount above remaining balance writes nothing and calls no partner", func(t *testing.T) {
		f := newCoordinatorFixture(services.CoordinatorConfig{})
		seedClaim(t, f.store, "CLM-2024-001", domain.ClaimTypeAuto, "1000.00")
		_, err := f.coordinator.Settle(ctx, settleCmd("TX-1", "400.00"))
		require.NoError(t, err)
		before := len(f.runner.Calls())

		result, err := f.coordinator.Settle(ctx, settleCmd("TX-2", "700.00"))

		assert.Nil(t, result)
		verr, ok := application.AsValidationError(err)
		require.True(t, ok, "expected ValidationError, got %v", err)
		assert.ErrorIs(t, verr, domain.ErrAmountExceedsBalance)
		assert.Len(t, f.runner.Calls(), before)

		stored, _ := f.store.Claims().FindByNumber(ctx, "CLM-2024-001")
		assert.Equal(t, int64(2), stored.Version)
		assert.Equal(t, "400.00", stored.PaidAmount.StringFixed(2))
	})

	t.Run("unknown claim", func(t *testing.T) {
		f := newCoordinatorFixture(services.CoordinatorConfig{})

		_, err := f.coordinator.Settle(ctx, settleCmd("TX-1", "10.00"))

		_, ok := application.AsValidationError(err)
		assert.True(t, ok)
		assert.ErrorIs(t, err, domain.ErrClaimNotFound)
	})

	t.Run("malformed command", func(t *testing.T) {
		f := newCoordinatorFixture(services.CoordinatorConfig{})
		seedClaim(t, f.store, "CLM-2024-001", domain.ClaimTypeAuto, "1000.00")

		for name, cmd := range map[string]services.SettleCommand{
			"zero amount":    settleCmd("TX-1", "0"),
			"sub-cent":       settleCmd("TX-1", "1.005"),
			"bad method":     {ClaimNumber: "CLM-2024-001", Amount: amount("1.00"), PaymentMethod: "CRYPTO"},
			"missing number": {Amount: amount("1.00"), PaymentMethod: domain.PaymentMethodCheck},
		} {
			_, err := f.coordinator.Settle(ctx, cmd)
			_, ok := application.AsValidationError(err)
			assert.True(t, ok, name)
		}
		assert.Empty(t, f.runner.Calls())
	})

	t.Run("denied claim cannot be settled", func(t *testing.T) {
		f := newCoordinatorFixture(services.CoordinatorConfig{})
		seedClaim(t, f.store, "CLM-2024-001", domain.ClaimTypeAuto, "1000.00")
		f.runner.PartnerFn[gateway.VehicleRegistry] = func(_ context.Context, call gateway.Call) gateway.Outcome {
			return rejected(call, "VIN mismatch")
		}
		_, err := f.coordinator.Settle(ctx, settleCmd("TX-1", "10.00"))
		require.NoError(t, err)

		_, err = f.coordinator.Settle(ctx, settleCmd("TX-2", "10.00"))

		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestSettle_Deny(t *testing.T) {
	ctx := context.Background()
	f := newCoordinatorFixture(services.CoordinatorConfig{})
	seedClaim(t, f.store, "CLM-2024-001", domain.ClaimTypeAuto, "1000.00")
	f.runner.PartnerFn[gateway.VehicleRegistry] = func(_ context.Context, call gateway.Call) gateway.Outcome {
		return rejected(call, "VIN_MISMATCH: vehicle not on policy")
	}

	result, err := f.coordinator.Settle(ctx, settleCmd("TX-1", "400.00"))

	require.NoError(t, err)
	assert.Equal(t, services.SettlementDenied, result.Status)
	assert.Nil(t, result.Payment)
	assert.Contains(t, result.Reason, "vehicle-registry rejected")
	assert.Equal(t, domain.ClaimDenied, result.Claim.Status)
	assert.Equal(t, int64(2), result.Claim.Version)
	assert.Zero(t, f.runner.CallsTo(gateway.PaymentProcessor))

	payments, err := f.store.Payments().ListByClaim(ctx, "CLM-2024-001")
	require.NoError(t, err)
	assert.Empty(t, payments)

	events := f.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, application.EventSettlementDenied, events[0].Type)
}

func TestSettle_Defer(t *testing.T) {
	ctx := context.Background()

	t.Run("processor timeouts leave the claim untouched", func(t *testing.T) {
		queue := &fakeQueue{}
		f := newCoordinatorFixture(services.CoordinatorConfig{RetryAfter: time.Minute}, services.WithDeferredQueue(queue))
		seedClaim(t, f.store, "CLM-2024-001", domain.ClaimTypeAuto, "1000.00")
		f.runner.PartnerFn[gateway.PaymentProcessor] = func(_ context.Context, call gateway.Call) gateway.Outcome {
			return exhausted(call, gateway.KindTimeout)
		}

		result, err := f.coordinator.Settle(ctx, settleCmd("TX-1", "400.00"))

		derr, ok := application.AsDeferredError(err)
		require.True(t, ok, "expected DeferredError, got %v", err)
		assert.Equal(t, time.Minute, derr.RetryAfter)
		assert.Equal(t, "payment-processor unavailable: retries exhausted after TIMEOUT", derr.Reason)
		assert.True(t, application.IsRetryable(err))

		require.NotNil(t, result)
		assert.Equal(t, services.SettlementDeferred, result.Status)

		stored, _ := f.store.Claims().FindByNumber(ctx, "CLM-2024-001")
		assert.Equal(t, int64(1), stored.Version)
		assert.True(t, stored.PaidAmount.IsZero())
		assert.Empty(t, f.publisher.Events())

		items := queue.Items()
		require.Len(t, items, 1)
		assert.Equal(t, "TX-1", items[0].TransactionID)
		assert.Equal(t, "CLM-2024-001", items[0].ClaimNumber)
	})

	t.Run("rejection wins over a transient failure in the same stage", func(t *testing.T) {
		outcomes := []gateway.Outcome{
			exhausted(gateway.Call{Partner: gateway.LossHistory}, gateway.KindUnreachable),
			rejected(gateway.Call{Partner: gateway.VehicleRegistry}, "stolen"),
		}

		d := services.Reduce(outcomes)

		assert.Equal(t, services.VerdictDeny, d.Verdict)
	})

	t.Run("deadline expiry defers", func(t *testing.T) {
		f := newCoordinatorFixture(services.CoordinatorConfig{Deadline: 20 * time.Millisecond})
		seedClaim(t, f.store, "CLM-2024-001", domain.ClaimTypeAuto, "1000.00")
		f.runner.PartnerFn[gateway.VehicleRegistry] = func(ctx context.Context, call gateway.Call) gateway.Outcome {
			<-ctx.Done()
			return gateway.Outcome{
				Call: call,
				Err:  &gateway.IntegrationError{Kind: gateway.KindTimeout, Partner: call.Partner, Err: ctx.Err()},
			}
		}

		result, err := f.coordinator.Settle(ctx, settleCmd("TX-1", "400.00"))

		_, ok := application.AsDeferredError(err)
		assert.True(t, ok, "expected DeferredError, got %v", err)
		assert.Equal(t, services.SettlementDeferred, result.Status)
		assert.Zero(t, f.runner.CallsTo(gateway.PaymentProcessor))
	})

	t.Run("generated key is returned and never queued", func(t *testing.T) {
		queue := &fakeQueue{}
		f := newCoordinatorFixture(services.CoordinatorConfig{},
			services.WithDeferredQueue(queue),
			services.WithKeyGenerator(func() string { return "generated-key" }),
		)
		seedClaim(t, f.store, "CLM-2024-001", domain.ClaimTypeAuto, "1000.00")
		processorDown := true
		f.runner.PartnerFn[gateway.PaymentProcessor] = func(_ context.Context, call gateway.Call) gateway.Outcome {
			if processorDown {
				return exhausted(call, gateway.KindUnreachable)
			}
			return succeeded(call, "")
		}

		_, err := f.coordinator.Settle(ctx, settleCmd("", "400.00"))

		derr, ok := application.AsDeferredError(err)
		require.True(t, ok, "expected DeferredError, got %v", err)
		assert.Equal(t, "generated-key", derr.TransactionID)
		assert.Empty(t, queue.Items())

		processorDown = false
		result, err := f.coordinator.Settle(ctx, settleCmd(derr.TransactionID, "400.00"))
		require.NoError(t, err)
		assert.Equal(t, "generated-key", result.Payment.TransactionID)
	})

	t.Run("resubmission after deferral is paid once when the queued copy is re-driven", func(t *testing.T) {
		queue := memory.NewDeferredQueue()
		f := newCoordinatorFixture(services.CoordinatorConfig{}, services.WithDeferredQueue(queue))
		seedClaim(t, f.store, "CLM-2024-001", domain.ClaimTypeAuto, "1000.00")
		processorDown := true
		f.runner.PartnerFn[gateway.PaymentProcessor] = func(_ context.Context, call gateway.Call) gateway.Outcome {
			if processorDown {
				return exhausted(call, gateway.KindUnreachable)
			}
			return succeeded(call, "PP-9")
		}

		_, err := f.coordinator.Settle(ctx, settleCmd("TX-1", "400.00"))
		_, ok := application.AsDeferredError(err)
		require.True(t, ok, "expected DeferredError, got %v", err)
		queued, err := queue.Due(ctx, time.Now().Add(time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, queued, 1)

		processorDown = false
		resubmitted, err := f.coordinator.Settle(ctx, settleCmd("TX-1", "400.00"))
		require.NoError(t, err)
		assert.False(t, resubmitted.Replayed)

		redriven, err := f.coordinator.Redrive(ctx, queued[0])
		require.NoError(t, err)
		assert.True(t, redriven.Replayed)

		stored, _ := f.store.Claims().FindByNumber(ctx, "CLM-2024-001")
		assert.Equal(t, "400.00", stored.PaidAmount.StringFixed(2))
		assert.Equal(t, int64(2), stored.Version)
	})

	t.Run("decision is recorded when the deadline fires after partners answered", func(t *testing.T) {
		f := newCoordinatorFixture(services.CoordinatorConfig{Deadline: 30 * time.Millisecond})
		seedClaim(t, f.store, "CLM-2024-001", domain.ClaimTypeAuto, "1000.00")
		var processorCalls atomic.Int32
		f.runner.PartnerFn[gateway.PaymentProcessor] = func(_ context.Context, call gateway.Call) gateway.Outcome {
			processorCalls.Add(1)
			time.Sleep(40 * time.Millisecond)
			return succeeded(call, "PP-LATE")
		}

		result, err := f.coordinator.Settle(ctx, settleCmd("", "400.00"))

		require.NoError(t, err)
		assert.Equal(t, services.SettlementApproved, result.Status)
		assert.Equal(t, int32(1), processorCalls.Load())
		stored, _ := f.store.Claims().FindByNumber(ctx, "CLM-2024-001")
		assert.Equal(t, "400.00", stored.PaidAmount.StringFixed(2))
		assert.Equal(t, int64(2), stored.Version)
	})

	t.Run("redrive does not enqueue again", func(t *testing.T) {
		queue := &fakeQueue{}
		f := newCoordinatorFixture(services.CoordinatorConfig{}, services.WithDeferredQueue(queue))
		seedClaim(t, f.store, "CLM-2024-001", domain.ClaimTypeAuto, "1000.00")
		f.runner.PartnerFn[gateway.PaymentProcessor] = func(_ context.Context, call gateway.Call) gateway.Outcome {
			return exhausted(call, gateway.KindUnreachable)
		}

		_, err := f.coordinator.Redrive(ctx, application.DeferredSettlement{
			ID:            "TX-1",
			ClaimNumber:   "CLM-2024-001",
			Amount:        amount("10.00"),
			PaymentMethod: string(domain.PaymentMethodBankTransfer),
			TransactionID: "TX-1",
		})

		_, ok := application.AsDeferredError(err)
		assert.True(t, ok)
		assert.Empty(t, queue.Items())
	})
}

func TestSettle_Idempotency(t *testing.T) {
	ctx := context.Background()
	f := newCoordinatorFixture(services.CoordinatorConfig{})
	seedClaim(t, f.store, "CLM-2024-001", domain.ClaimTypeAuto, "1000.00")

	first, err := f.coordinator.Settle(ctx, settleCmd("TX-1", "400.00"))
	require.NoError(t, err)
	calls := len(f.runner.Calls())

	second, err := f.coordinator.Settle(ctx, settleCmd("TX-1", "400.00"))

	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, services.SettlementApproved, second.Status)
	assert.Equal(t, first.Payment.TransactionID, second.Payment.TransactionID)
	assert.Equal(t, "400.00", second.Claim.PaidAmount.StringFixed(2))
	assert.Equal(t, int64(2), second.Claim.Version)
	assert.Len(t, f.runner.Calls(), calls, "replay must not call partners")

	payments, err := f.store.Payments().ListByClaim(ctx, "CLM-2024-001")
	require.NoError(t, err)
	assert.Len(t, payments, 1)
	assert.Len(t, f.publisher.Events(), 1)

	t.Run("transaction ID of another claim is rejected", func(t *testing.T) {
		seedClaim(t, f.store, "CLM-2024-002", domain.ClaimTypeAuto, "1000.00")
		cmd := settleCmd("TX-1", "400.00")
		cmd.ClaimNumber = "CLM-2024-002"

		_, err := f.coordinator.Settle(ctx, cmd)

		_, ok := application.AsValidationError(err)
		assert.True(t, ok)
		assert.ErrorIs(t, err, domain.ErrDuplicatePayment)
	})
}

func TestSettle_VersionConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("one concurrent change is retried", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := metrics.New(reg)
		f := newCoordinatorFixture(services.CoordinatorConfig{}, services.WithCoordinatorMetrics(m))
		seedClaim(t, f.store, "CLM-2024-001", domain.ClaimTypeAuto, "1000.00")

		var disbursed atomic.Int32
		f.runner.PartnerFn[gateway.PaymentProcessor] = func(_ context.Context, call gateway.Call) gateway.Outcome {
			if disbursed.Add(1) == 1 {
				bumpClaim(t, f.store, "CLM-2024-001")
			}
			return succeeded(call, "PP-1")
		}

		result, err := f.coordinator.Settle(ctx, settleCmd("TX-1", "400.00"))

		require.NoError(t, err)
		assert.Equal(t, services.SettlementApproved, result.Status)
		assert.Equal(t, int64(3), result.Claim.Version)
		assert.Equal(t, int32(2), disbursed.Load())
		assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerConflicts.WithLabelValues("retried")))
		assert.Equal(t, 0.0, testutil.ToFloat64(m.LedgerConflicts.WithLabelValues("surfaced")))

		payments, _ := f.store.Payments().ListByClaim(ctx, "CLM-2024-001")
		assert.Len(t, payments, 1)
	})

	t.Run("a second conflict is surfaced", func(t *testing.T) {
		f := newCoordinatorFixture(services.CoordinatorConfig{})
		seedClaim(t, f.store, "CLM-2024-001", domain.ClaimTypeAuto, "1000.00")
		f.runner.PartnerFn[gateway.PaymentProcessor] = func(_ context.Context, call gateway.Call) gateway.Outcome {
			bumpClaim(t, f.store, "CLM-2024-001")
			return succeeded(call, "PP-1")
		}

		result, err := f.coordinator.Settle(ctx, settleCmd("TX-1", "400.00"))

		assert.Nil(t, result)
		cerr, ok := application.AsConflictError(err)
		require.True(t, ok, "expected ConflictError, got %v", err)
		assert.ErrorIs(t, cerr, domain.ErrVersionConflict)
		assert.True(t, application.IsRetryable(err))

		payments, _ := f.store.Payments().ListByClaim(ctx, "CLM-2024-001")
		assert.Empty(t, payments)
		stored, _ := f.store.Claims().FindByNumber(ctx, "CLM-2024-001")
		assert.True(t, stored.PaidAmount.IsZero())
	})
}

func TestSettle_RecordsOutcomeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	f := newCoordinatorFixture(services.CoordinatorConfig{}, services.WithCoordinatorMetrics(m))
	seedClaim(t, f.store, "CLM-2024-001", domain.ClaimTypeAuto, "1000.00")

	_, err := f.coordinator.Settle(context.Background(), settleCmd("TX-1", "10.00"))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SettlementOutcome.WithLabelValues("APPROVED", "AUTO")))
}
