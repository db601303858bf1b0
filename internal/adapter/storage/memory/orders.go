package memory

import (
	"context"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderRepository implements ports.OrderRepository.
type OrderRepository struct{ s *Store }

func NewOrderRepository(s *Store) *OrderRepository { return &OrderRepository{s: s} }

func (r *OrderRepository) Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	mt, err := r.s.open(tx)
	if err != nil {
		return err
	}
	if _, ok := r.s.orders[order.ID]; ok {
		return domain.ErrDuplicate
	}
	if order.GatewayOrderRef != "" {
		for _, o := range r.s.orders {
			if o.GatewayOrderRef == order.GatewayOrderRef {
				return domain.ErrDuplicate
			}
		}
	}
	put(mt, r.s.orders, order.ID, *order)
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(id), nil
}

func (r *OrderRepository) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	if _, err := r.s.open(tx); err != nil {
		return nil, err
	}
	return r.get(id), nil
}

func (r *OrderRepository) GetByGatewayRefTx(ctx context.Context, tx pgx.Tx, gatewayOrderRef string) (*domain.Order, error) {
	if _, err := r.s.open(tx); err != nil {
		return nil, err
	}
	for _, o := range r.s.orders {
		if o.GatewayOrderRef == gatewayOrderRef {
			return &o, nil
		}
	}
	return nil, nil
}

func (r *OrderRepository) Update(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	mt, err := r.s.open(tx)
	if err != nil {
		return err
	}
	stored, ok := r.s.orders[order.ID]
	if !ok || stored.Version != order.Version {
		return domain.ErrStaleVersion
	}
	order.Version++
	put(mt, r.s.orders, order.ID, *order)
	return nil
}

func (r *OrderRepository) get(id uuid.UUID) *domain.Order {
	o, ok := r.s.orders[id]
	if !ok {
		return nil
	}
	return &o
}
