package postgres

import (
	"context"
	"fmt"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository. The table is append-only;
// a trigger rejects UPDATE and DELETE.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append inserts entries within a database transaction.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, entries ...domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, order_id, payout_id, owner_id, kind, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, e := range entries {
		_, err := tx.Exec(ctx, query, e.ID, e.OrderID, e.PayoutID, e.OwnerID, e.Kind, e.Amount, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert ledger entry %s: %w", e.Kind, err)
		}
	}
	return nil
}

// ListByOwner returns an owner's entries, newest first.
func (r *LedgerRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, error) {
	query := `SELECT id, order_id, payout_id, owner_id, kind, amount, created_at
		FROM ledger_entries WHERE owner_id = $1
		ORDER BY seq DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.PayoutID, &e.OwnerID, &e.Kind, &e.Amount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}

// SumByOwner adds up the balance-affecting entries of an owner.
func (r *LedgerRepo) SumByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0)::BIGINT FROM ledger_entries WHERE owner_id = $1 AND kind <> $2`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, ownerID, domain.LedgerSaleGross).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum ledger entries: %w", err)
	}
	return sum, nil
}

// Totals sums amounts per kind across all owners.
func (r *LedgerRepo) Totals(ctx context.Context) (domain.LedgerTotals, error) {
	query := `SELECT kind, COALESCE(SUM(amount), 0)::BIGINT FROM ledger_entries GROUP BY kind`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ledger totals: %w", err)
	}
	defer rows.Close()

	totals := make(domain.LedgerTotals)
	for rows.Next() {
		var (
			kind domain.LedgerKind
			sum  int64
		)
		if err := rows.Scan(&kind, &sum); err != nil {
			return nil, fmt.Errorf("scan ledger total: %w", err)
		}
		totals[kind] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger totals: %w", err)
	}
	return totals, nil
}
