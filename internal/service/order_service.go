package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// OrderServiceImpl implements ports.OrderService.
type OrderServiceImpl struct {
	orders     ports.OrderRepository
	catalog    ports.ProductCatalog
	gateway    ports.PaymentGateway
	transactor ports.DBTransactor
	currency   string
	log        zerolog.Logger
	now        func() time.Time
}

// NewOrderService creates a new OrderServiceImpl.
func NewOrderService(
	orders ports.OrderRepository,
	catalog ports.ProductCatalog,
	gateway ports.PaymentGateway,
	transactor ports.DBTransactor,
	currency string,
	log zerolog.Logger,
) *OrderServiceImpl {
	return &OrderServiceImpl{
		orders:     orders,
		catalog:    catalog,
		gateway:    gateway,
		transactor: transactor,
		currency:   currency,
		log:        log,
		now:        utcNow,
	}
}

// CreateOrder prices the product, registers the charge with the gateway and
// stores the order in created state. The gateway order ref is what payment
// webhooks later reference.
func (s *OrderServiceImpl) CreateOrder(ctx context.Context, buyerID, productID uuid.UUID) (*domain.Order, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load product: %w", err))
	}
	if product == nil {
		return nil, apperror.ErrNotFound("Product")
	}
	if product.SellerID == buyerID {
		return nil, apperror.ErrSelfPurchase()
	}
	if product.GrossAmount() <= 0 {
		return nil, apperror.Validation("product has no payable amount")
	}

	order := domain.NewOrder(buyerID, product, "", s.now())
	ref, err := s.gateway.CreateOrder(ctx, ports.GatewayOrderRequest{
		Receipt:  order.ID.String(),
		Amount:   order.GrossAmount,
		Currency: s.currency,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("product_id", productID.String()).Msg("gateway order creation failed")
		return nil, toAppError(err)
	}
	order.GatewayOrderRef = ref

	err = runInTx(ctx, s.transactor, func(tx pgx.Tx) error {
		return s.orders.Create(ctx, tx, order)
	})
	if err != nil {
		return nil, toAppError(fmt.Errorf("create order: %w", err))
	}

	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("buyer_id", buyerID.String()).
		Str("seller_id", order.SellerID.String()).
		Str("gateway_order_ref", ref).
		Int64("gross_amount", order.GrossAmount).
		Msg("order created")
	return order, nil
}

func (s *OrderServiceImpl) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("Order")
	}
	return order, nil
}

func (s *OrderServiceImpl) GetOrderStatus(ctx context.Context, orderID uuid.UUID) (domain.OrderStatus, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	return order.Status, nil
}

// IsOrderPaid is the file-delivery gate. Refunded orders are not paid.
func (s *OrderServiceImpl) IsOrderPaid(ctx context.Context, orderID uuid.UUID) (bool, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	return order.IsPaid(), nil
}
