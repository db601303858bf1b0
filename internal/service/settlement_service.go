package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// SettlementServiceImpl implements ports.SettlementService.
type SettlementServiceImpl struct {
	orders     ports.OrderRepository
	ledger     ports.LedgerRepository
	balances   ports.BalanceRepository
	transactor ports.DBTransactor
	policy     *CommissionPolicy
	notifier   ports.Notifier
	metrics    *metrics.SettlementMetrics
	retry      versionRetrier
	platformID uuid.UUID
	log        zerolog.Logger
	now        func() time.Time
}

// NewSettlementService creates a new SettlementServiceImpl. Platform
// commission is credited to platformID.
func NewSettlementService(
	orders ports.OrderRepository,
	ledger ports.LedgerRepository,
	balances ports.BalanceRepository,
	transactor ports.DBTransactor,
	policy *CommissionPolicy,
	notifier ports.Notifier,
	m *metrics.SettlementMetrics,
	platformID uuid.UUID,
	maxRetries int,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		orders:     orders,
		ledger:     ledger,
		balances:   balances,
		transactor: transactor,
		policy:     policy,
		notifier:   notifier,
		metrics:    m,
		retry:      newVersionRetrier(maxRetries, m, log),
		platformID: platformID,
		log:        log,
		now:        utcNow,
	}
}

// Settle applies a payment outcome to a created order. Settling an order
// that already left created is a successful no-op.
func (s *SettlementServiceImpl) Settle(ctx context.Context, orderID uuid.UUID, outcome domain.SettlementOutcome, gatewayPaymentRef string) error {
	if outcome != domain.OutcomePaid && outcome != domain.OutcomeFailed {
		return apperror.Validation(fmt.Sprintf("unknown settlement outcome %q", outcome))
	}

	var note *domain.NotificationEvent
	err := s.retry.do(ctx, "settle", func() error {
		return runInTx(ctx, s.transactor, func(tx pgx.Tx) error {
			order, err := s.orders.GetByIDTx(ctx, tx, orderID)
			if err != nil {
				return fmt.Errorf("load order: %w", err)
			}
			if order == nil {
				return apperror.ErrNotFound("Order")
			}
			note, err = s.settleTx(ctx, tx, order, outcome, gatewayPaymentRef)
			return err
		})
	})
	if err != nil {
		return err
	}

	s.afterSettle(ctx, note)
	return nil
}

// settleTx performs the settlement inside tx. It returns the event to emit
// after commit, or nil when the order was already settled.
func (s *SettlementServiceImpl) settleTx(ctx context.Context, tx pgx.Tx, order *domain.Order, outcome domain.SettlementOutcome, gatewayPaymentRef string) (*domain.NotificationEvent, error) {
	if order.Status != domain.OrderStatusCreated {
		return nil, nil
	}

	now := s.now()
	if gatewayPaymentRef != "" {
		order.GatewayPaymentRef = &gatewayPaymentRef
	}

	if outcome == domain.OutcomeFailed {
		if err := order.Transition(domain.OrderStatusFailed, now); err != nil {
			return nil, err
		}
		if err := s.orders.Update(ctx, tx, order); err != nil {
			return nil, fmt.Errorf("update order: %w", err)
		}
		note := domain.NewNotification(domain.NotifyOrderFailed, order.ID, order.BuyerID, order.GrossAmount, now)
		return &note, nil
	}

	fee, earning := s.policy.Split(order.GrossAmount, order.Category)
	if err := order.Transition(domain.OrderStatusPaid, now); err != nil {
		return nil, err
	}
	order.PlatformFee = fee
	order.SellerEarning = earning
	order.SettledAt = &now

	if err := s.orders.Update(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	entries := []domain.LedgerEntry{
		domain.OrderEntry(order.ID, order.SellerID, domain.LedgerSaleGross, order.GrossAmount, now),
		domain.OrderEntry(order.ID, s.platformID, domain.LedgerPlatformCommission, fee, now),
		domain.OrderEntry(order.ID, order.SellerID, domain.LedgerSellerEarning, earning, now),
	}
	if err := s.ledger.Append(ctx, tx, entries...); err != nil {
		return nil, fmt.Errorf("append ledger: %w", err)
	}

	balance, err := s.balances.GetTx(ctx, tx, order.SellerID)
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}
	balance.Credit(earning)
	balance.UpdatedAt = now
	if err := s.balances.Save(ctx, tx, balance); err != nil {
		return nil, fmt.Errorf("save balance: %w", err)
	}

	note := domain.NewNotification(domain.NotifyOrderPaid, order.ID, order.BuyerID, order.GrossAmount, now)
	note.Attributes = map[string]string{
		"seller_id":      order.SellerID.String(),
		"seller_earning": fmt.Sprint(earning),
		"platform_fee":   fmt.Sprint(fee),
	}
	return &note, nil
}

// afterSettle runs once the settlement transaction committed.
func (s *SettlementServiceImpl) afterSettle(ctx context.Context, note *domain.NotificationEvent) {
	if note == nil {
		s.log.Debug().Msg("order already settled, nothing to do")
		return
	}
	outcome := "paid"
	if note.Type == domain.NotifyOrderFailed {
		outcome = "failed"
	}
	s.metrics.OrderSettled(outcome)
	s.log.Info().
		Str("order_id", note.SubjectID.String()).
		Str("outcome", outcome).
		Int64("amount", note.Amount).
		Msg("order settled")
	s.notifier.Notify(ctx, *note)
}
