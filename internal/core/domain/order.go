package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of a purchase attempt.
type OrderStatus string

const (
	OrderStatusCreated  OrderStatus = "created"
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusFailed   OrderStatus = "failed"
	OrderStatusRefunded OrderStatus = "refunded"
)

// CanTransitionTo reports whether next is a legal edge from s.
// Legal edges: created->paid, created->failed, paid->refunded.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusCreated:
		return next == OrderStatusPaid || next == OrderStatusFailed
	case OrderStatusPaid:
		return next == OrderStatusRefunded
	default:
		return false
	}
}

// Order is one purchase attempt. Never deleted.
type Order struct {
	ID                uuid.UUID   `json:"id"`
	BuyerID           uuid.UUID   `json:"buyer_id"`
	SellerID          uuid.UUID   `json:"seller_id"`
	ProductID         uuid.UUID   `json:"product_id"`
	Category          string      `json:"category"`
	GrossAmount       int64       `json:"gross_amount"` // minor units
	GatewayOrderRef   string      `json:"gateway_order_ref"`
	GatewayPaymentRef *string     `json:"gateway_payment_ref,omitempty"`
	PlatformFee       int64       `json:"platform_fee"`
	SellerEarning     int64       `json:"seller_earning"`
	Status            OrderStatus `json:"status"`
	Version           int64       `json:"version"`
	CreatedAt         time.Time   `json:"created_at"`
	SettledAt         *time.Time  `json:"settled_at,omitempty"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// NewOrder builds an order in the created state.
func NewOrder(buyerID uuid.UUID, product *Product, gatewayOrderRef string, now time.Time) *Order {
	return &Order{
		ID:              uuid.New(),
		BuyerID:         buyerID,
		SellerID:        product.SellerID,
		ProductID:       product.ID,
		Category:        product.Category,
		GrossAmount:     product.GrossAmount(),
		GatewayOrderRef: gatewayOrderRef,
		Status:          OrderStatusCreated,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Transition moves the order to next or returns a *TransitionError.
func (o *Order) Transition(next OrderStatus, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return &TransitionError{Entity: "order", From: string(o.Status), To: string(next)}
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}

// IsPaid gates file delivery.
func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusPaid
}

// SettlementOutcome is the gateway verdict for a payment.
type SettlementOutcome string

const (
	OutcomePaid   SettlementOutcome = "paid"
	OutcomeFailed SettlementOutcome = "failed"
)
