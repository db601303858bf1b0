package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// DisputeServiceImpl implements ports.DisputeService.
type DisputeServiceImpl struct {
	disputes   ports.DisputeRepository
	orders     ports.OrderRepository
	ledger     ports.LedgerRepository
	balances   ports.BalanceRepository
	transactor ports.DBTransactor
	notifier   ports.Notifier
	retry      versionRetrier
	platformID uuid.UUID
	log        zerolog.Logger
	now        func() time.Time
}

// NewDisputeService creates a new DisputeServiceImpl.
func NewDisputeService(
	disputes ports.DisputeRepository,
	orders ports.OrderRepository,
	ledger ports.LedgerRepository,
	balances ports.BalanceRepository,
	transactor ports.DBTransactor,
	notifier ports.Notifier,
	m *metrics.SettlementMetrics,
	platformID uuid.UUID,
	maxRetries int,
	log zerolog.Logger,
) *DisputeServiceImpl {
	return &DisputeServiceImpl{
		disputes:   disputes,
		orders:     orders,
		ledger:     ledger,
		balances:   balances,
		transactor: transactor,
		notifier:   notifier,
		retry:      newVersionRetrier(maxRetries, m, log),
		platformID: platformID,
		log:        log,
		now:        utcNow,
	}
}

// OpenDispute files a buyer claim against one of the buyer's paid orders.
func (s *DisputeServiceImpl) OpenDispute(ctx context.Context, orderID, buyerID uuid.UUID, reason string) (*domain.Dispute, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.Validation("reason is required")
	}

	var dispute *domain.Dispute
	var sellerID uuid.UUID
	err := runInTx(ctx, s.transactor, func(tx pgx.Tx) error {
		order, err := s.orders.GetByIDTx(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if order == nil || order.BuyerID != buyerID {
			return apperror.ErrNotFound("Order")
		}
		if !order.IsPaid() {
			return apperror.ErrOrderNotPaid()
		}
		sellerID = order.SellerID

		dispute = domain.NewDispute(order.ID, buyerID, reason, s.now())
		if err := s.disputes.Create(ctx, tx, dispute); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				return apperror.ErrDisputeAlreadyOpen()
			}
			return fmt.Errorf("create dispute: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, toAppError(err)
	}

	s.log.Info().
		Str("dispute_id", dispute.ID.String()).
		Str("order_id", orderID.String()).
		Msg("dispute opened")
	s.notifier.Notify(ctx, domain.NewNotification(domain.NotifyDisputeOpened, dispute.ID, sellerID, 0, dispute.CreatedAt))

	return dispute, nil
}

// ApproveDispute refunds the order in full: the seller earning and the
// platform commission are both reversed. Whatever the seller's available
// balance cannot absorb becomes debt recovered from future credits.
func (s *DisputeServiceImpl) ApproveDispute(ctx context.Context, disputeID uuid.UUID) error {
	var notes []domain.NotificationEvent
	var order *domain.Order
	err := s.retry.do(ctx, "dispute_approve", func() error {
		notes = nil
		return runInTx(ctx, s.transactor, func(tx pgx.Tx) error {
			now := s.now()

			dispute, err := s.disputes.GetByIDTx(ctx, tx, disputeID)
			if err != nil {
				return fmt.Errorf("load dispute: %w", err)
			}
			if dispute == nil {
				return apperror.ErrNotFound("Dispute")
			}

			order, err = s.orders.GetByIDTx(ctx, tx, dispute.OrderID)
			if err != nil {
				return fmt.Errorf("load order: %w", err)
			}
			if order == nil {
				return apperror.ErrNotFound("Order")
			}

			if err := dispute.Resolve(domain.DisputeApproved, nil, now); err != nil {
				return err
			}
			if err := order.Transition(domain.OrderStatusRefunded, now); err != nil {
				return err
			}

			if err := s.orders.Update(ctx, tx, order); err != nil {
				return fmt.Errorf("update order: %w", err)
			}
			if err := s.disputes.Update(ctx, tx, dispute); err != nil {
				return fmt.Errorf("update dispute: %w", err)
			}

			entries := []domain.LedgerEntry{
				domain.OrderEntry(order.ID, order.SellerID, domain.LedgerDisputeReversal, -order.SellerEarning, now),
			}
			if order.PlatformFee != 0 {
				entries = append(entries, domain.OrderEntry(order.ID, s.platformID, domain.LedgerDisputeReversal, -order.PlatformFee, now))
			}
			if err := s.ledger.Append(ctx, tx, entries...); err != nil {
				return fmt.Errorf("append ledger: %w", err)
			}

			balance, err := s.balances.GetTx(ctx, tx, order.SellerID)
			if err != nil {
				return fmt.Errorf("load balance: %w", err)
			}
			balance.Reverse(order.SellerEarning)
			balance.UpdatedAt = now
			if err := s.balances.Save(ctx, tx, balance); err != nil {
				return fmt.Errorf("save balance: %w", err)
			}

			notes = append(notes,
				domain.NewNotification(domain.NotifyOrderRefunded, order.ID, order.BuyerID, order.GrossAmount, now),
				domain.NewNotification(domain.NotifyDisputeApproved, dispute.ID, order.SellerID, order.SellerEarning, now),
			)
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("dispute_id", disputeID.String()).
		Str("order_id", order.ID.String()).
		Str("seller_id", order.SellerID.String()).
		Int64("reversed", order.SellerEarning).
		Msg("dispute approved, order refunded")
	s.notifier.Notify(ctx, notes...)
	return nil
}

// RejectDispute closes the dispute with an admin note and no balance effect.
func (s *DisputeServiceImpl) RejectDispute(ctx context.Context, disputeID uuid.UUID, note string) error {
	var dispute *domain.Dispute
	err := s.retry.do(ctx, "dispute_reject", func() error {
		return runInTx(ctx, s.transactor, func(tx pgx.Tx) error {
			var err error
			dispute, err = s.disputes.GetByIDTx(ctx, tx, disputeID)
			if err != nil {
				return fmt.Errorf("load dispute: %w", err)
			}
			if dispute == nil {
				return apperror.ErrNotFound("Dispute")
			}
			if err := dispute.Resolve(domain.DisputeRejected, &note, s.now()); err != nil {
				return err
			}
			if err := s.disputes.Update(ctx, tx, dispute); err != nil {
				return fmt.Errorf("update dispute: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("dispute_id", disputeID.String()).Msg("dispute rejected")
	s.notifier.Notify(ctx, domain.NewNotification(domain.NotifyDisputeRejected, dispute.ID, dispute.BuyerID, 0, *dispute.ResolvedAt))
	return nil
}

func (s *DisputeServiceImpl) GetDispute(ctx context.Context, disputeID uuid.UUID) (*domain.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get dispute: %w", err))
	}
	if dispute == nil {
		return nil, apperror.ErrNotFound("Dispute")
	}
	return dispute, nil
}
