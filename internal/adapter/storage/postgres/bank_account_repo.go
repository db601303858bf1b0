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

const bankAccountColumns = `id, owner_id, holder_name, account_number_enc, account_number_masked, ifsc,
	is_primary, is_verified, created_at, updated_at, deleted_at`

// BankAccountRepo implements ports.BankAccountRepository. Soft-deleted rows
// are filtered out of every read.
type BankAccountRepo struct {
	pool Pool
}

// NewBankAccountRepo creates a new BankAccountRepo.
func NewBankAccountRepo(pool Pool) *BankAccountRepo {
	return &BankAccountRepo{pool: pool}
}

// Create inserts a new bank account within a database transaction.
func (r *BankAccountRepo) Create(ctx context.Context, tx pgx.Tx, a *domain.BankAccount) error {
	query := `INSERT INTO bank_accounts (` + bankAccountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := tx.Exec(ctx, query,
		a.ID, a.OwnerID, a.HolderName, a.AccountNumberEnc, a.AccountNumberMasked, a.IFSC,
		a.IsPrimary, a.IsVerified, a.CreatedAt, a.UpdatedAt, a.DeletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert bank account: %w", err)
	}
	return nil
}

// GetByID fetches a live bank account by UUID.
func (r *BankAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BankAccount, error) {
	query := `SELECT ` + bankAccountColumns + ` FROM bank_accounts WHERE id = $1 AND deleted_at IS NULL`
	return scanBankAccount(r.pool.QueryRow(ctx, query, id))
}

// GetByIDTx fetches a live bank account by UUID and locks the row.
func (r *BankAccountRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.BankAccount, error) {
	query := `SELECT ` + bankAccountColumns + ` FROM bank_accounts WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
	return scanBankAccount(tx.QueryRow(ctx, query, id))
}

// ListByOwner returns the owner's live accounts, oldest first.
func (r *BankAccountRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.BankAccount, error) {
	query := `SELECT ` + bankAccountColumns + ` FROM bank_accounts
		WHERE owner_id = $1 AND deleted_at IS NULL ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list bank accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.BankAccount
	for rows.Next() {
		a, err := scanBankAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bank accounts: %w", err)
	}
	return out, nil
}

// GetPrimary fetches the owner's primary account, if any.
func (r *BankAccountRepo) GetPrimary(ctx context.Context, ownerID uuid.UUID) (*domain.BankAccount, error) {
	query := `SELECT ` + bankAccountColumns + ` FROM bank_accounts
		WHERE owner_id = $1 AND is_primary AND deleted_at IS NULL`
	return scanBankAccount(r.pool.QueryRow(ctx, query, ownerID))
}

// ClearPrimary unsets the primary flag on every account of the owner.
func (r *BankAccountRepo) ClearPrimary(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID) error {
	query := `UPDATE bank_accounts SET is_primary = FALSE, updated_at = NOW()
		WHERE owner_id = $1 AND is_primary`

	if _, err := tx.Exec(ctx, query, ownerID); err != nil {
		return fmt.Errorf("clear primary bank account: %w", err)
	}
	return nil
}

// MarkPrimary flags the account as primary. The partial unique index on
// (owner_id) WHERE is_primary rejects a concurrent second primary.
func (r *BankAccountRepo) MarkPrimary(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `UPDATE bank_accounts SET is_primary = TRUE, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrStaleVersion
		}
		return fmt.Errorf("mark primary bank account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleVersion
	}
	return nil
}

// MarkVerified flags the account as verified.
func (r *BankAccountRepo) MarkVerified(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `UPDATE bank_accounts SET is_verified = TRUE, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`
	return r.exec(ctx, tx, "verify bank account", query, id)
}

// SoftDelete hides the account and drops its primary flag.
func (r *BankAccountRepo) SoftDelete(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	query := `UPDATE bank_accounts SET deleted_at = $1, is_primary = FALSE, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL`
	return r.exec(ctx, tx, "delete bank account", query, at, id)
}

func (r *BankAccountRepo) exec(ctx context.Context, tx pgx.Tx, op, query string, args ...any) error {
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleVersion
	}
	return nil
}

func scanBankAccount(row pgx.Row) (*domain.BankAccount, error) {
	a := &domain.BankAccount{}
	err := row.Scan(
		&a.ID, &a.OwnerID, &a.HolderName, &a.AccountNumberEnc, &a.AccountNumberMasked, &a.IFSC,
		&a.IsPrimary, &a.IsVerified, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan bank account: %w", err)
	}
	return a, nil
}
