package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const disputeColumns = `id, order_id, buyer_id, reason, status, admin_note, version, created_at, resolved_at`

// DisputeRepo implements ports.DisputeRepository.
type DisputeRepo struct {
	pool Pool
}

// NewDisputeRepo creates a new DisputeRepo.
func NewDisputeRepo(pool Pool) *DisputeRepo {
	return &DisputeRepo{pool: pool}
}

// Create inserts a dispute. The partial unique index on open disputes turns a
// second open dispute for the same order into domain.ErrDuplicate.
func (r *DisputeRepo) Create(ctx context.Context, tx pgx.Tx, d *domain.Dispute) error {
	query := `INSERT INTO disputes (` + disputeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		d.ID, d.OrderID, d.BuyerID, d.Reason, d.Status, d.AdminNote, d.Version, d.CreatedAt, d.ResolvedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert dispute: %w", err)
	}
	return nil
}

// GetByID fetches a dispute by UUID.
func (r *DisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`
	return scanDispute(r.pool.QueryRow(ctx, query, id))
}

// GetByIDTx fetches a dispute by UUID and locks the row.
func (r *DisputeRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1 FOR UPDATE`
	return scanDispute(tx.QueryRow(ctx, query, id))
}

// Update writes the resolution if the stored version still matches.
func (r *DisputeRepo) Update(ctx context.Context, tx pgx.Tx, d *domain.Dispute) error {
	query := `UPDATE disputes SET status = $1, admin_note = $2, resolved_at = $3, version = version + 1
		WHERE id = $4 AND version = $5`

	tag, err := tx.Exec(ctx, query, d.Status, d.AdminNote, d.ResolvedAt, d.ID, d.Version)
	if err != nil {
		return fmt.Errorf("update dispute: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleVersion
	}
	d.Version++
	return nil
}

func scanDispute(row pgx.Row) (*domain.Dispute, error) {
	d := &domain.Dispute{}
	err := row.Scan(&d.ID, &d.OrderID, &d.BuyerID, &d.Reason, &d.Status, &d.AdminNote, &d.Version, &d.CreatedAt, &d.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan dispute: %w", err)
	}
	return d, nil
}
