package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BalanceRepo implements ports.BalanceRepository.
type BalanceRepo struct {
	pool Pool
}

// NewBalanceRepo creates a new BalanceRepo.
func NewBalanceRepo(pool Pool) *BalanceRepo {
	return &BalanceRepo{pool: pool}
}

// Get fetches a seller's balance (non-locking read). A seller without a row
// gets an unpersisted zero balance.
func (r *BalanceRepo) Get(ctx context.Context, sellerID uuid.UUID) (*domain.SellerBalance, error) {
	query := `SELECT seller_id, available, reserved, debt, version, updated_at
		FROM seller_balances WHERE seller_id = $1`
	return scanBalance(r.pool.QueryRow(ctx, query, sellerID), sellerID)
}

// GetTx fetches a seller's balance with pessimistic locking.
// This MUST be called within a transaction.
func (r *BalanceRepo) GetTx(ctx context.Context, tx pgx.Tx, sellerID uuid.UUID) (*domain.SellerBalance, error) {
	query := `SELECT seller_id, available, reserved, debt, version, updated_at
		FROM seller_balances WHERE seller_id = $1 FOR UPDATE`
	return scanBalance(tx.QueryRow(ctx, query, sellerID), sellerID)
}

// Save inserts the first row for a seller or updates it under the version check.
func (r *BalanceRepo) Save(ctx context.Context, tx pgx.Tx, b *domain.SellerBalance) error {
	var (
		query string
		args  []any
	)
	if b.Version == 0 {
		query = `INSERT INTO seller_balances (seller_id, available, reserved, debt, version, updated_at)
			VALUES ($1, $2, $3, $4, 1, $5) ON CONFLICT (seller_id) DO NOTHING`
		args = []any{b.SellerID, b.Available, b.Reserved, b.Debt, b.UpdatedAt}
	} else {
		query = `UPDATE seller_balances SET available = $1, reserved = $2, debt = $3,
			version = version + 1, updated_at = $4
			WHERE seller_id = $5 AND version = $6`
		args = []any{b.Available, b.Reserved, b.Debt, b.UpdatedAt, b.SellerID, b.Version}
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save seller balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleVersion
	}
	b.Version++
	return nil
}

func scanBalance(row pgx.Row, sellerID uuid.UUID) (*domain.SellerBalance, error) {
	b := &domain.SellerBalance{}
	err := row.Scan(&b.SellerID, &b.Available, &b.Reserved, &b.Debt, &b.Version, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewSellerBalance(sellerID), nil
		}
		return nil, fmt.Errorf("get seller balance: %w", err)
	}
	return b, nil
}
