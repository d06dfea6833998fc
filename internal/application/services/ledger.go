package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/claims-settlement/internal/application"
	"github.com/DanielPopoola/claims-settlement/internal/domain"
	"github.com/shopspring/decimal"
)

// PaymentInstruction is the payment an approved settlement records.
type PaymentInstruction struct {
	TransactionID      string
	Amount             decimal.Decimal
	Method             domain.PaymentMethod
	ProcessorReference string
}

type LedgerEntry struct {
	Claim    *domain.Claim
	Payment  *domain.Payment
	Replayed bool
}

// PaymentLedger applies settlement decisions to claims. Every write is a
// conditional update against the version the caller read; the payment
// insert and the claim update commit together.
type PaymentLedger struct {
	store  application.Store
	now    func() time.Time
	logger *slog.Logger
}

func NewPaymentLedger(store application.Store, logger *slog.Logger) *PaymentLedger {
	return &PaymentLedger{store: store, now: time.Now, logger: logger}
}

// ApplySettlement records a SETTLED payment and credits the claim. If a
// settled payment with the same transaction ID already exists for the
// claim, it is returned unchanged. A claim whose version differs from
// expectedVersion fails with domain.ErrVersionConflict.
func (l *PaymentLedger) ApplySettlement(ctx context.Context, claimNumber string, expectedVersion int64, in PaymentInstruction) (*LedgerEntry, error) {
	var entry *LedgerEntry

	err := l.store.WithTransaction(ctx, func(ctx context.Context, repos application.Repositories) error {
		existing, err := repos.Payments.FindByTransactionID(ctx, in.TransactionID)
		switch {
		case err == nil:
			entry, err = replayEntry(ctx, repos, claimNumber, existing)
			return err
		case !errors.Is(err, domain.ErrPaymentNotFound):
			return err
		}

		claim, err := repos.Claims.FindByNumberForUpdate(ctx, claimNumber)
		if err != nil {
			return err
		}
		if claim.Version != expectedVersion {
			return domain.NewVersionConflictError(claimNumber, expectedVersion, claim.Version)
		}

		now := l.now()
		payment, err := domain.NewPayment(in.TransactionID, claimNumber, in.Method, in.Amount, now)
		if err != nil {
			return err
		}
		if err := payment.Settle(in.ProcessorReference, now); err != nil {
			return err
		}
		if err := claim.ApplyPayment(in.Amount, now); err != nil {
			return err
		}
		claim.Version = expectedVersion + 1

		if err := repos.Claims.Save(ctx, claim, expectedVersion); err != nil {
			return err
		}
		if err := repos.Payments.Create(ctx, payment); err != nil {
			return err
		}

		entry = &LedgerEntry{Claim: claim, Payment: payment}
		return nil
	})

	if errors.Is(err, domain.ErrDuplicatePayment) && !errors.Is(err, errForeignPayment) {
		// A concurrent settlement with the same transaction ID won the insert.
		l.logger.InfoContext(ctx, "transaction already recorded, replaying",
			"claim_number", claimNumber,
			"transaction_id", in.TransactionID,
		)
		return l.Replay(ctx, claimNumber, in.TransactionID)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordDenial moves the claim to DENIED. No payment is written.
func (l *PaymentLedger) RecordDenial(ctx context.Context, claimNumber string, expectedVersion int64) (*domain.Claim, error) {
	var updated *domain.Claim

	err := l.store.WithTransaction(ctx, func(ctx context.Context, repos application.Repositories) error {
		claim, err := repos.Claims.FindByNumberForUpdate(ctx, claimNumber)
		if err != nil {
			return err
		}
		if claim.Version != expectedVersion {
			return domain.NewVersionConflictError(claimNumber, expectedVersion, claim.Version)
		}
		if err := claim.Deny(l.now()); err != nil {
			return err
		}
		claim.Version = expectedVersion + 1

		if err := repos.Claims.Save(ctx, claim, expectedVersion); err != nil {
			return err
		}
		updated = claim
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Replay returns the recorded result of transactionID, or
// domain.ErrPaymentNotFound if there is none.
func (l *PaymentLedger) Replay(ctx context.Context, claimNumber, transactionID string) (*LedgerEntry, error) {
	payment, err := l.store.Payments().FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	repos := application.Repositories{Claims: l.store.Claims(), Payments: l.store.Payments()}
	return replayEntry(ctx, repos, claimNumber, payment)
}

var errForeignPayment = errors.New("transaction ID belongs to another claim or is not settled")

func replayEntry(ctx context.Context, repos application.Repositories, claimNumber string, payment *domain.Payment) (*LedgerEntry, error) {
	if payment.ClaimNumber != claimNumber || !payment.IsSettled() {
		return nil, fmt.Errorf("%w: %w", domain.NewDuplicatePaymentError(payment.TransactionID), errForeignPayment)
	}
	claim, err := repos.Claims.FindByNumber(ctx, claimNumber)
	if err != nil {
		return nil, err
	}
	return &LedgerEntry{Claim: claim, Payment: payment, Replayed: true}, nil
}
