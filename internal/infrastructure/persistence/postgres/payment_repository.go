package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielPopoola/claims-settlement/internal/domain"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `
	transaction_id, claim_number, amount::text, payment_method, processor_reference,
	status, version, created_at, modified_at`

type PaymentRepository struct {
	q Executor
}

func NewPaymentRepository(q Executor) *PaymentRepository {
	return &PaymentRepository{q: q}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (
			transaction_id, claim_number, amount, payment_method, processor_reference,
			status, version, created_at, modified_at
		) VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9)
	`

	p := toPaymentModel(payment)
	_, err := r.q.Exec(ctx, query,
		p.TransactionID,
		p.ClaimNumber,
		p.Amount,
		p.Method,
		p.ProcessorReference,
		p.Status,
		p.Version,
		p.CreatedAt,
		p.ModifiedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return domain.NewDuplicatePaymentError(payment.TransactionID)
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	query := `SELECT` + paymentColumns + ` FROM payments WHERE transaction_id = $1`

	row := r.q.QueryRow(ctx, query, transactionID)
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewPaymentNotFoundError(transactionID)
	}
	return p, err
}

// ListByClaim returns the claim's payments, oldest first.
func (r *PaymentRepository) ListByClaim(ctx context.Context, claimNumber string) ([]*domain.Payment, error) {
	query := `SELECT` + paymentColumns + `
		FROM payments
		WHERE claim_number = $1
		ORDER BY created_at, seq
	`

	rows, err := r.q.Query(ctx, query, claimNumber)
	if err != nil {
		return nil, fmt.Errorf("query payments by claim_number: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Payment, error) {
		return scanPayment(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan payments: %w", err)
	}
	return results, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var m PaymentModel
	err := row.Scan(
		&m.TransactionID, &m.ClaimNumber, &m.Amount, &m.Method, &m.ProcessorReference,
		&m.Status, &m.Version, &m.CreatedAt, &m.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	return m.toDomain()
}
