package memory

import (
	"context"
	"slices"

	"github.com/DanielPopoola/claims-settlement/internal/domain"
)

type claimRepository struct {
	store *Store
	tx    *tables
}

func (r *claimRepository) Create(ctx context.Context, claim *domain.Claim) error {
	t, release := r.store.view(r.tx, true)
	defer release()

	if _, exists := t.claims[claim.Number]; exists {
		return domain.NewDuplicateClaimError(claim.Number)
	}
	t.claims[claim.Number] = *claim
	return nil
}

func (r *claimRepository) FindByNumber(ctx context.Context, number string) (*domain.Claim, error) {
	t, release := r.store.view(r.tx, false)
	defer release()

	c, ok := t.claims[number]
	if !ok {
		return nil, domain.NewClaimNotFoundError(number)
	}
	return &c, nil
}

// FindByNumberForUpdate needs no extra locking: units of work are serialized.
func (r *claimRepository) FindByNumberForUpdate(ctx context.Context, number string) (*domain.Claim, error) {
	return r.FindByNumber(ctx, number)
}

func (r *claimRepository) Save(ctx context.Context, claim *domain.Claim, expectedVersion int64) error {
	t, release := r.store.view(r.tx, true)
	defer release()

	stored, ok := t.claims[claim.Number]
	if !ok {
		return domain.NewClaimNotFoundError(claim.Number)
	}
	if stored.Version != expectedVersion {
		return domain.NewVersionConflictError(claim.Number, expectedVersion, stored.Version)
	}
	t.claims[claim.Number] = *claim
	return nil
}

type paymentRepository struct {
	store *Store
	tx    *tables
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	t, release := r.store.view(r.tx, true)
	defer release()

	if _, exists := t.payments[payment.TransactionID]; exists {
		return domain.NewDuplicatePaymentError(payment.TransactionID)
	}
	t.seq++
	t.payments[payment.TransactionID] = paymentRecord{seq: t.seq, payment: *payment}
	return nil
}

func (r *paymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	t, release := r.store.view(r.tx, false)
	defer release()

	rec, ok := t.payments[transactionID]
	if !ok {
		return nil, domain.NewPaymentNotFoundError(transactionID)
	}
	p := rec.payment
	return &p, nil
}

func (r *paymentRepository) ListByClaim(ctx context.Context, claimNumber string) ([]*domain.Payment, error) {
	t, release := r.store.view(r.tx, false)
	defer release()

	var records []paymentRecord
	for _, rec := range t.payments {
		if rec.payment.ClaimNumber == claimNumber {
			records = append(records, rec)
		}
	}
	slices.SortFunc(records, func(a, b paymentRecord) int {
		if c := a.payment.CreatedAt.Compare(b.payment.CreatedAt); c != 0 {
			return c
		}
		return int(a.seq - b.seq)
	})

	payments := make([]*domain.Payment, len(records))
	for i := range records {
		p := records[i].payment
		payments[i] = &p
	}
	return payments, nil
}
