package services_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DanielPopoola/claims-settlement/internal/application"
	"github.com/DanielPopoola/claims-settlement/internal/application/services"
	"github.com/DanielPopoola/claims-settlement/internal/domain"
	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/gateway"
	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/persistence/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner answers every call from per-partner functions and records the
// calls it saw. Partners without a function succeed.
type fakeRunner struct {
	mu    sync.Mutex
	calls []gateway.Call

	PartnerFn map[gateway.Partner]func(ctx context.Context, call gateway.Call) gateway.Outcome
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{PartnerFn: make(map[gateway.Partner]func(context.Context, gateway.Call) gateway.Outcome)}
}

func (f *fakeRunner) RunAll(ctx context.Context, calls []gateway.Call) []gateway.Outcome {
	outcomes := make([]gateway.Outcome, len(calls))
	for i, call := range calls {
		f.mu.Lock()
		f.calls = append(f.calls, call)
		fn := f.PartnerFn[call.Partner]
		f.mu.Unlock()

		if fn == nil {
			outcomes[i] = succeeded(call, "")
			continue
		}
		outcomes[i] = fn(ctx, call)
	}
	return outcomes
}

func (f *fakeRunner) Calls() []gateway.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.Call(nil), f.calls...)
}

func (f *fakeRunner) CallsTo(p gateway.Partner) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Partner == p {
			n++
		}
	}
	return n
}

func succeeded(call gateway.Call, reference string) gateway.Outcome {
	return gateway.Outcome{
		Call:     call,
		Attempts: 1,
		Response: &gateway.Response{Success: true, StatusCode: 200, Reference: reference},
	}
}

func rejected(call gateway.Call, reason string) gateway.Outcome {
	return gateway.Outcome{
		Call:     call,
		Attempts: 1,
		Response: &gateway.Response{StatusCode: 200, Reason: reason},
		Err: &gateway.IntegrationError{
			Kind:      gateway.KindRejected,
			Partner:   call.Partner,
			Operation: call.Operation,
			Business:  true,
			Reason:    reason,
		},
	}
}

func exhausted(call gateway.Call, last gateway.Kind) gateway.Outcome {
	return gateway.Outcome{
		Call:     call,
		Attempts: 3,
		Err: &gateway.IntegrationError{
			Kind:      gateway.KindRetriesExhausted,
			Partner:   call.Partner,
			Operation: call.Operation,
			Err:       &gateway.IntegrationError{Kind: last, Partner: call.Partner, Operation: call.Operation},
		},
	}
}

// fakePublisher collects published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []application.SettlementEvent
}

func (p *fakePublisher) Publish(_ context.Context, event application.SettlementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) Events() []application.SettlementEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]application.SettlementEvent(nil), p.events...)
}

// fakeQueue is a DeferredQueue that only records enqueued items.
type fakeQueue struct {
	mu    sync.Mutex
	items []application.DeferredSettlement
}

func (q *fakeQueue) Enqueue(_ context.Context, item application.DeferredSettlement) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	return nil
}

func (q *fakeQueue) Due(context.Context, time.Time, int) ([]application.DeferredSettlement, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]application.DeferredSettlement(nil), q.items...), nil
}

func (q *fakeQueue) Remove(context.Context, application.DeferredSettlement) error {
	return nil
}

func (q *fakeQueue) Items() []application.DeferredSettlement {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]application.DeferredSettlement(nil), q.items...)
}

func seedClaim(t *testing.T, store application.Store, number string, claimType domain.ClaimType, amount string) *domain.Claim {
	t.Helper()
	claim, err := domain.NewClaim(number, claimType, "POL-2024-17", "1HGCM82633A004352", "USD", decimal.RequireFromString(amount), time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Claims().Create(context.Background(), claim))
	return claim
}

// bumpClaim simulates a concurrent writer by advancing the stored version.
func bumpClaim(t *testing.T, store application.Store, number string) {
	t.Helper()
	ctx := context.Background()
	err := store.WithTransaction(ctx, func(ctx context.Context, repos application.Repositories) error {
		c, err := repos.Claims.FindByNumberForUpdate(ctx, number)
		if err != nil {
			return err
		}
		expected := c.Version
		c.Version++
		return repos.Claims.Save(ctx, c, expected)
	})
	require.NoError(t, err)
}

type coordinatorFixture struct {
	store       *memory.Store
	runner      *fakeRunner
	publisher   *fakePublisher
	ledger      *services.PaymentLedger
	coordinator *services.SettlementCoordinator
}

func newCoordinatorFixture(cfg services.CoordinatorConfig, opts ...services.CoordinatorOption) *coordinatorFixture {
	f := &coordinatorFixture{
		store:     memory.NewStore(),
		runner:    newFakeRunner(),
		publisher: &fakePublisher{},
	}
	logger := discardLogger()
	f.ledger = services.NewPaymentLedger(f.store, logger)
	opts = append([]services.CoordinatorOption{services.WithPublisher(f.publisher)}, opts...)
	f.coordinator = services.NewSettlementCoordinator(f.store, f.ledger, f.runner, cfg, logger, opts...)
	return f
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
