package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, buyer_id, seller_id, product_id, category, gross_amount, gateway_order_ref,
	gateway_payment_ref, platform_fee, seller_earning, status, version, created_at, settled_at, updated_at`

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// Create inserts a new order within a database transaction.
func (r *OrderRepo) Create(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := tx.Exec(ctx, query,
		o.ID, o.BuyerID, o.SellerID, o.ProductID, o.Category, o.GrossAmount, o.GatewayOrderRef,
		o.GatewayPaymentRef, o.PlatformFee, o.SellerEarning, o.Status, o.Version,
		o.CreatedAt, o.SettledAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID fetches an order by UUID.
func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, id))
}

// GetByIDTx fetches an order by UUID and locks the row.
func (r *OrderRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return scanOrder(tx.QueryRow(ctx, query, id))
}

// GetByGatewayRefTx fetches an order by the gateway's order reference and locks the row.
func (r *OrderRepo) GetByGatewayRefTx(ctx context.Context, tx pgx.Tx, gatewayOrderRef string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE gateway_order_ref = $1 FOR UPDATE`
	return scanOrder(tx.QueryRow(ctx, query, gatewayOrderRef))
}

// Update writes the mutable order fields if the stored version still matches.
func (r *OrderRepo) Update(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	query := `UPDATE orders SET gateway_payment_ref = $1, platform_fee = $2, seller_earning = $3,
		status = $4, settled_at = $5, updated_at = $6, version = version + 1
		WHERE id = $7 AND version = $8`

	tag, err := tx.Exec(ctx, query,
		o.GatewayPaymentRef, o.PlatformFee, o.SellerEarning,
		o.Status, o.SettledAt, o.UpdatedAt, o.ID, o.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleVersion
	}
	o.Version++
	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.ID, &o.BuyerID, &o.SellerID, &o.ProductID, &o.Category, &o.GrossAmount, &o.GatewayOrderRef,
		&o.GatewayPaymentRef, &o.PlatformFee, &o.SellerEarning, &o.Status, &o.Version,
		&o.CreatedAt, &o.SettledAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}
