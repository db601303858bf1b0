package memory

import (
	"context"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DisputeRepository implements ports.DisputeRepository.
type DisputeRepository struct{ s *Store }

func NewDisputeRepository(s *Store) *DisputeRepository { return &DisputeRepository{s: s} }

func (r *DisputeRepository) Create(ctx context.Context, tx pgx.Tx, d *domain.Dispute) error {
	mt, err := r.s.open(tx)
	if err != nil {
		return err
	}
	for _, existing := range r.s.disputes {
		if existing.OrderID == d.OrderID && existing.Status == domain.DisputeOpen {
			return domain.ErrDuplicate
		}
	}
	put(mt, r.s.disputes, d.ID, *d)
	return nil
}

func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(id), nil
}

func (r *DisputeRepository) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Dispute, error) {
	if _, err := r.s.open(tx); err != nil {
		return nil, err
	}
	return r.get(id), nil
}

func (r *DisputeRepository) Update(ctx context.Context, tx pgx.Tx, d *domain.Dispute) error {
	mt, err := r.s.open(tx)
	if err != nil {
		return err
	}
	stored, ok := r.s.disputes[d.ID]
	if !ok || stored.Version != d.Version {
		return domain.ErrStaleVersion
	}
	d.Version++
	put(mt, r.s.disputes, d.ID, *d)
	return nil
}

func (r *DisputeRepository) get(id uuid.UUID) *domain.Dispute {
	d, ok := r.s.disputes[id]
	if !ok {
		return nil
	}
	return &d
}
