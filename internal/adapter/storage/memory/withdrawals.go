package memory

import (
	"context"
	"sort"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WithdrawalRepository implements ports.WithdrawalRepository.
type WithdrawalRepository struct{ s *Store }

func NewWithdrawalRepository(s *Store) *WithdrawalRepository { return &WithdrawalRepository{s: s} }

func (r *WithdrawalRepository) Create(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	mt, err := r.s.open(tx)
	if err != nil {
		return err
	}
	if _, ok := r.s.withdrawals[w.ID]; ok {
		return domain.ErrDuplicate
	}
	put(mt, r.s.withdrawals, w.ID, *w)
	return nil
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(id), nil
}

func (r *WithdrawalRepository) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	if _, err := r.s.open(tx); err != nil {
		return nil, err
	}
	return r.get(id), nil
}

func (r *WithdrawalRepository) Update(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	mt, err := r.s.open(tx)
	if err != nil {
		return err
	}
	stored, ok := r.s.withdrawals[w.ID]
	if !ok || stored.Version != w.Version {
		return domain.ErrStaleVersion
	}
	w.Version++
	put(mt, r.s.withdrawals, w.ID, *w)
	return nil
}

// ListBySeller returns the seller's requests newest first.
func (r *WithdrawalRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]domain.WithdrawalRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var all []domain.WithdrawalRequest
	for _, w := range r.s.withdrawals {
		if w.SellerID == sellerID {
			all = append(all, w)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), nil
}

func (r *WithdrawalRepository) ListStale(ctx context.Context, status domain.WithdrawalStatus, cutoff time.Time, limit int) ([]domain.WithdrawalRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.WithdrawalRequest
	for _, w := range r.s.withdrawals {
		if w.Status == status && w.UpdatedAt.Before(cutoff) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return page(out, limit, 0), nil
}

func (r *WithdrawalRepository) CountInFlightByAccountTx(ctx context.Context, tx pgx.Tx, bankAccountID uuid.UUID) (int, error) {
	if _, err := r.s.open(tx); err != nil {
		return 0, err
	}
	n := 0
	for _, w := range r.s.withdrawals {
		if w.BankAccountID == bankAccountID && w.Status.HoldsFunds() {
			n++
		}
	}
	return n, nil
}

func (r *WithdrawalRepository) get(id uuid.UUID) *domain.WithdrawalRequest {
	w, ok := r.s.withdrawals[id]
	if !ok {
		return nil
	}
	return &w
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
