package application

import (
	"context"
	"time"

	"github.com/DanielPopoola/claims-settlement/internal/domain"
)

// ClaimRepository is the port for claim persistence.
type ClaimRepository interface {
	Create(ctx context.Context, claim *domain.Claim) error
	FindByNumber(ctx context.Context, number string) (*domain.Claim, error)
	// FindByNumberForUpdate locks the row for the rest of the transaction.
	FindByNumberForUpdate(ctx context.Context, number string) (*domain.Claim, error)
	// Save writes claim only if the stored version still equals
	// expectedVersion, and fails with domain.ErrVersionConflict otherwise.
	Save(ctx context.Context, claim *domain.Claim, expectedVersion int64) error
}

// PaymentRepository is the port for the append-only payment records.
type PaymentRepository interface {
	// Create fails with domain.ErrDuplicatePayment if the transaction ID exists.
	Create(ctx context.Context, payment *domain.Payment) error
	FindByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error)
	ListByClaim(ctx context.Context, claimNumber string) ([]*domain.Payment, error)
}

// Repositories groups the repositories bound to one unit of work.
type Repositories struct {
	Claims   ClaimRepository
	Payments PaymentRepository
}

// UnitOfWork runs fn atomically: every write made through the repositories
// it receives is committed together or not at all.
type UnitOfWork interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// Store is a persistence backend: non-transactional reads plus units of work.
type Store interface {
	UnitOfWork
	Claims() ClaimRepository
	Payments() PaymentRepository
}

// EventPublisher announces applied settlements to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, event SettlementEvent) error
}

// DeferredQueue holds deferred settlement requests until they are due again.
type DeferredQueue interface {
	Enqueue(ctx context.Context, item DeferredSettlement) error
	Due(ctx context.Context, now time.Time, limit int) ([]DeferredSettlement, error)
	Remove(ctx context.Context, item DeferredSettlement) error
}
