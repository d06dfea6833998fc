package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielPopoola/claims-settlement/internal/domain"
	"github.com/jackc/pgx/v5"
)

const claimColumns = `
	claim_number, claim_type, policy_number, subject_ref, currency, status,
	claim_amount::text, paid_amount::text, version, created_at, modified_at`

type ClaimRepository struct {
	q Executor
}

func NewClaimRepository(q Executor) *ClaimRepository {
	return &ClaimRepository{q: q}
}

func (r *ClaimRepository) Create(ctx context.Context, claim *domain.Claim) error {
	query := `
		INSERT INTO claims (
			claim_number, claim_type, policy_number, subject_ref, currency, status,
			claim_amount, paid_amount, version, created_at, modified_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9, $10, $11)
	`

	m := toClaimModel(claim)
	_, err := r.q.Exec(ctx, query,
		m.Number,
		m.Type,
		m.PolicyNumber,
		m.SubjectRef,
		m.Currency,
		m.Status,
		m.ClaimAmount,
		m.PaidAmount,
		m.Version,
		m.CreatedAt,
		m.ModifiedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return domain.NewDuplicateClaimError(claim.Number)
		}
		return fmt.Errorf("failed to create claim: %w", err)
	}
	return nil
}

func (r *ClaimRepository) FindByNumber(ctx context.Context, number string) (*domain.Claim, error) {
	query := `SELECT` + claimColumns + ` FROM claims WHERE claim_number = $1`
	return scanClaim(r.q.QueryRow(ctx, query, number), number)
}

// FindByNumberForUpdate retrieves a claim with a row-level lock held until
// the surrounding transaction ends.
func (r *ClaimRepository) FindByNumberForUpdate(ctx context.Context, number string) (*domain.Claim, error) {
	query := `SELECT` + claimColumns + ` FROM claims WHERE claim_number = $1 FOR UPDATE`
	return scanClaim(r.q.QueryRow(ctx, query, number), number)
}

// Save is a conditional update: it only applies while the stored version is
// still expectedVersion.
func (r *ClaimRepository) Save(ctx context.Context, claim *domain.Claim, expectedVersion int64) error {
	query := `
		UPDATE claims
		SET status = $1, paid_amount = $2::numeric, version = $3, modified_at = $4
		WHERE claim_number = $5 AND version = $6
	`

	m := toClaimModel(claim)
	tag, err := r.q.Exec(ctx, query,
		m.Status,
		m.PaidAmount,
		m.Version,
		m.ModifiedAt,
		m.Number,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update claim: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var actual int64
	err = r.q.QueryRow(ctx, `SELECT version FROM claims WHERE claim_number = $1`, claim.Number).Scan(&actual)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewClaimNotFoundError(claim.Number)
	}
	if err != nil {
		return fmt.Errorf("failed to read claim version: %w", err)
	}
	return domain.NewVersionConflictError(claim.Number, expectedVersion, actual)
}

func scanClaim(row pgx.Row, number string) (*domain.Claim, error) {
	var m ClaimModel
	err := row.Scan(
		&m.Number, &m.Type, &m.PolicyNumber, &m.SubjectRef, &m.Currency, &m.Status,
		&m.ClaimAmount, &m.PaidAmount, &m.Version, &m.CreatedAt, &m.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewClaimNotFoundError(number)
		}
		return nil, fmt.Errorf("failed to scan claim: %w", err)
	}
	return m.toDomain()
}
