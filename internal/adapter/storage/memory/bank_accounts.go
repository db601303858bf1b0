package memory

import (
	"context"
	"sort"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BankAccountRepository implements ports.BankAccountRepository.
// Soft-deleted accounts are invisible to every read.
type BankAccountRepository struct{ s *Store }

func NewBankAccountRepository(s *Store) *BankAccountRepository { return &BankAccountRepository{s: s} }

func (r *BankAccountRepository) Create(ctx context.Context, tx pgx.Tx, a *domain.BankAccount) error {
	mt, err := r.s.open(tx)
	if err != nil {
		return err
	}
	if _, ok := r.s.accounts[a.ID]; ok {
		return domain.ErrDuplicate
	}
	put(mt, r.s.accounts, a.ID, *a)
	return nil
}

func (r *BankAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.BankAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(id), nil
}

func (r *BankAccountRepository) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.BankAccount, error) {
	if _, err := r.s.open(tx); err != nil {
		return nil, err
	}
	return r.get(id), nil
}

func (r *BankAccountRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.BankAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.BankAccount
	for _, a := range r.s.accounts {
		if a.OwnerID == ownerID && a.DeletedAt == nil {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *BankAccountRepository) GetPrimary(ctx context.Context, ownerID uuid.UUID) (*domain.BankAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.OwnerID == ownerID && a.IsPrimary && a.DeletedAt == nil {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *BankAccountRepository) ClearPrimary(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID) error {
	mt, err := r.s.open(tx)
	if err != nil {
		return err
	}
	for id, a := range r.s.accounts {
		if a.OwnerID == ownerID && a.IsPrimary {
			a.IsPrimary = false
			put(mt, r.s.accounts, id, a)
		}
	}
	return nil
}

func (r *BankAccountRepository) MarkPrimary(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	return r.modify(tx, id, func(a *domain.BankAccount) error {
		for _, other := range r.s.accounts {
			if other.OwnerID == a.OwnerID && other.IsPrimary && other.DeletedAt == nil && other.ID != id {
				return domain.ErrStaleVersion
			}
		}
		a.IsPrimary = true
		return nil
	})
}

func (r *BankAccountRepository) MarkVerified(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	return r.modify(tx, id, func(a *domain.BankAccount) error {
		a.IsVerified = true
		return nil
	})
}

func (r *BankAccountRepository) SoftDelete(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	return r.modify(tx, id, func(a *domain.BankAccount) error {
		a.DeletedAt = &at
		a.IsPrimary = false
		return nil
	})
}

func (r *BankAccountRepository) modify(tx pgx.Tx, id uuid.UUID, fn func(a *domain.BankAccount) error) error {
	mt, err := r.s.open(tx)
	if err != nil {
		return err
	}
	a := r.get(id)
	if a == nil {
		return domain.ErrStaleVersion
	}
	if err := fn(a); err != nil {
		return err
	}
	a.UpdatedAt = time.Now().UTC()
	put(mt, r.s.accounts, id, *a)
	return nil
}

func (r *BankAccountRepository) get(id uuid.UUID) *domain.BankAccount {
	a, ok := r.s.accounts[id]
	if !ok || a.DeletedAt != nil {
		return nil
	}
	return &a
}
