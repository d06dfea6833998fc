package postgres

import (
	"context"
	"fmt"

	"github.com/DanielPopoola/claims-settlement/internal/application"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionCoordinator is the PostgreSQL application.Store. Reads outside a
// unit of work go straight to the pool.
type TransactionCoordinator struct {
	pool *pgxpool.Pool
}

var _ application.Store = (*TransactionCoordinator)(nil)

func NewTransactionCoordinator(db *DB) *TransactionCoordinator {
	return &TransactionCoordinator{pool: db.Pool}
}

func (tc *TransactionCoordinator) Claims() application.ClaimRepository {
	return NewClaimRepository(tc.pool)
}

func (tc *TransactionCoordinator) Payments() application.PaymentRepository {
	return NewPaymentRepository(tc.pool)
}

// WithTransaction executes fn within a READ COMMITTED transaction. The
// repositories fn receives are bound to it.
func (tc *TransactionCoordinator) WithTransaction(
	ctx context.Context,
	fn func(ctx context.Context, repos application.Repositories) error,
) error {
	tx, err := tc.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	repos := application.Repositories{
		Claims:   NewClaimRepository(tx),
		Payments: NewPaymentRepository(tx),
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
