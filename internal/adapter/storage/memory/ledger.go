package memory

import (
	"context"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepository implements ports.LedgerRepository.
type LedgerRepository struct{ s *Store }

func NewLedgerRepository(s *Store) *LedgerRepository { return &LedgerRepository{s: s} }

func (r *LedgerRepository) Append(ctx context.Context, tx pgx.Tx, entries ...domain.LedgerEntry) error {
	mt, err := r.s.open(tx)
	if err != nil {
		return err
	}
	n := len(r.s.ledger)
	mt.onRollback(func() { r.s.ledger = r.s.ledger[:n] })
	r.s.ledger = append(r.s.ledger, entries...)
	return nil
}

// ListByOwner returns entries newest first.
func (r *LedgerRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.LedgerEntry
	skipped := 0
	for i := len(r.s.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.s.ledger[i]
		if e.OwnerID != ownerID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *LedgerRepository) SumByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var owned []domain.LedgerEntry
	for _, e := range r.s.ledger {
		if e.OwnerID == ownerID {
			owned = append(owned, e)
		}
	}
	return domain.SumBalance(owned), nil
}

func (r *LedgerRepository) Totals(ctx context.Context) (domain.LedgerTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	totals := make(domain.LedgerTotals)
	for _, e := range r.s.ledger {
		totals[e.Kind] += e.Amount
	}
	return totals, nil
}
