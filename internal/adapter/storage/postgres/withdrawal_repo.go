package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `id, seller_id, amount, status, bank_account_id, gateway_payout_ref, failure_reason,
	attempt, version, created_at, updated_at, submitted_at, resolved_at`

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

// Create inserts a new withdrawal request within a database transaction.
func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	query := `INSERT INTO withdrawal_requests (` + withdrawalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.SellerID, w.Amount, w.Status, w.BankAccountID, w.GatewayPayoutRef, w.FailureReason,
		w.Attempt, w.Version, w.CreatedAt, w.UpdatedAt, w.SubmittedAt, w.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert withdrawal request: %w", err)
	}
	return nil
}

// GetByID fetches a withdrawal request by UUID.
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`
	return scanWithdrawal(r.pool.QueryRow(ctx, query, id))
}

// GetByIDTx fetches a withdrawal request by UUID and locks the row.
func (r *WithdrawalRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`
	return scanWithdrawal(tx.QueryRow(ctx, query, id))
}

// Update writes the mutable fields if the stored version still matches.
func (r *WithdrawalRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	query := `UPDATE withdrawal_requests SET status = $1, gateway_payout_ref = $2, failure_reason = $3,
		attempt = $4, updated_at = $5, submitted_at = $6, resolved_at = $7, version = version + 1
		WHERE id = $8 AND version = $9`

	tag, err := tx.Exec(ctx, query,
		w.Status, w.GatewayPayoutRef, w.FailureReason, w.Attempt,
		w.UpdatedAt, w.SubmittedAt, w.ResolvedAt, w.ID, w.Version,
	)
	if err != nil {
		return fmt.Errorf("update withdrawal request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleVersion
	}
	w.Version++
	return nil
}

// ListBySeller returns a seller's requests, newest first.
func (r *WithdrawalRepo) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests
		WHERE seller_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return r.list(ctx, query, sellerID, limit, offset)
}

// ListStale returns requests in status not touched since cutoff, oldest first.
func (r *WithdrawalRepo) ListStale(ctx context.Context, status domain.WithdrawalStatus, cutoff time.Time, limit int) ([]domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests
		WHERE status = $1 AND updated_at < $2 ORDER BY updated_at ASC LIMIT $3`
	return r.list(ctx, query, status, cutoff, limit)
}

// CountInFlightByAccountTx counts requests still holding funds against the account.
func (r *WithdrawalRepo) CountInFlightByAccountTx(ctx context.Context, tx pgx.Tx, bankAccountID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM withdrawal_requests
		WHERE bank_account_id = $1 AND status IN ($2, $3, $4)`

	var n int
	err := tx.QueryRow(ctx, query, bankAccountID,
		domain.WithdrawalRequested, domain.WithdrawalApproved, domain.WithdrawalProcessing,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count in-flight withdrawals: %w", err)
	}
	return n, nil
}

func (r *WithdrawalRepo) list(ctx context.Context, query string, args ...any) ([]domain.WithdrawalRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list withdrawal requests: %w", err)
	}
	defer rows.Close()

	var out []domain.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withdrawal requests: %w", err)
	}
	return out, nil
}

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalRequest, error) {
	w := &domain.WithdrawalRequest{}
	err := row.Scan(
		&w.ID, &w.SellerID, &w.Amount, &w.Status, &w.BankAccountID, &w.GatewayPayoutRef, &w.FailureReason,
		&w.Attempt, &w.Version, &w.CreatedAt, &w.UpdatedAt, &w.SubmittedAt, &w.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan withdrawal request: %w", err)
	}
	return w, nil
}
