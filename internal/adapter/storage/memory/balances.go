package memory

import (
	"context"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BalanceRepository implements ports.BalanceRepository.
type BalanceRepository struct{ s *Store }

func NewBalanceRepository(s *Store) *BalanceRepository { return &BalanceRepository{s: s} }

func (r *BalanceRepository) Get(ctx context.Context, sellerID uuid.UUID) (*domain.SellerBalance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(sellerID), nil
}

func (r *BalanceRepository) GetTx(ctx context.Context, tx pgx.Tx, sellerID uuid.UUID) (*domain.SellerBalance, error) {
	if _, err := r.s.open(tx); err != nil {
		return nil, err
	}
	return r.get(sellerID), nil
}

func (r *BalanceRepository) Save(ctx context.Context, tx pgx.Tx, balance *domain.SellerBalance) error {
	mt, err := r.s.open(tx)
	if err != nil {
		return err
	}
	stored, ok := r.s.balances[balance.SellerID]
	switch {
	case balance.Version == 0 && ok:
		return domain.ErrStaleVersion
	case balance.Version != 0 && (!ok || stored.Version != balance.Version):
		return domain.ErrStaleVersion
	}
	balance.Version++
	put(mt, r.s.balances, balance.SellerID, *balance)
	return nil
}

func (r *BalanceRepository) get(sellerID uuid.UUID) *domain.SellerBalance {
	b, ok := r.s.balances[sellerID]
	if !ok {
		return domain.NewSellerBalance(sellerID)
	}
	return &b
}
