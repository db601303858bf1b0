package service

import (
	"context"
	"errors"
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

// PayoutSettings tunes the payout orchestrator.
type PayoutSettings struct {
	Currency           string
	Narration          string
	ReconcileAfter     time.Duration // processing requests older than this are polled
	HoldReleaseTimeout time.Duration // requested withdrawals older than this expire
	BatchSize          int
	MaxVersionRetries  int
}

// destinationResolver is the bank registry read path used at submit time.
type destinationResolver interface {
	Destination(ctx context.Context, ownerID uuid.UUID) (*domain.BankAccount, ports.PayoutDestination, error)
}

// PayoutServiceImpl implements ports.PayoutService.
type PayoutServiceImpl struct {
	withdrawals  ports.WithdrawalRepository
	balances     ports.BalanceRepository
	ledger       ports.LedgerRepository
	accounts     ports.BankAccountRepository
	destinations destinationResolver
	gateway      ports.PayoutGateway
	transactor   ports.DBTransactor
	notifier     ports.Notifier
	metrics      *metrics.SettlementMetrics
	retry        versionRetrier
	settings     PayoutSettings
	log          zerolog.Logger
	now          func() time.Time
}

// NewPayoutService creates a new PayoutServiceImpl.
func NewPayoutService(
	withdrawals ports.WithdrawalRepository,
	balances ports.BalanceRepository,
	ledger ports.LedgerRepository,
	accounts ports.BankAccountRepository,
	destinations destinationResolver,
	gateway ports.PayoutGateway,
	transactor ports.DBTransactor,
	notifier ports.Notifier,
	m *metrics.SettlementMetrics,
	settings PayoutSettings,
	log zerolog.Logger,
) *PayoutServiceImpl {
	if settings.BatchSize <= 0 {
		settings.BatchSize = 100
	}
	if settings.Narration == "" {
		settings.Narration = "Marketplace payout"
	}
	return &PayoutServiceImpl{
		withdrawals:  withdrawals,
		balances:     balances,
		ledger:       ledger,
		accounts:     accounts,
		destinations: destinations,
		gateway:      gateway,
		transactor:   transactor,
		notifier:     notifier,
		metrics:      m,
		retry:        newVersionRetrier(settings.MaxVersionRetries, m, log),
		settings:     settings,
		log:          log,
		now:          utcNow,
	}
}

// RequestWithdrawal reserves amount from the seller's available balance and
// opens a request against a verified account the seller owns.
func (s *PayoutServiceImpl) RequestWithdrawal(ctx context.Context, sellerID uuid.UUID, amount int64, bankAccountID uuid.UUID) (*domain.WithdrawalRequest, error) {
	if amount <= 0 {
		return nil, apperror.Validation("amount must be positive")
	}

	var w *domain.WithdrawalRequest
	err := s.retry.do(ctx, "withdrawal_request", func() error {
		return runInTx(ctx, s.transactor, func(tx pgx.Tx) error {
			now := s.now()

			account, err := s.accounts.GetByIDTx(ctx, tx, bankAccountID)
			if err != nil {
				return fmt.Errorf("load bank account: %w", err)
			}
			if account == nil || !account.UsableFor(sellerID) {
				return apperror.ErrAccountNotVerified()
			}

			balance, err := s.balances.GetTx(ctx, tx, sellerID)
			if err != nil {
				return fmt.Errorf("load balance: %w", err)
			}
			if err := balance.Reserve(amount); err != nil {
				return err
			}
			balance.UpdatedAt = now
			if err := s.balances.Save(ctx, tx, balance); err != nil {
				return fmt.Errorf("save balance: %w", err)
			}

			w = domain.NewWithdrawalRequest(sellerID, bankAccountID, amount, now)
			if err := s.withdrawals.Create(ctx, tx, w); err != nil {
				return fmt.Errorf("create withdrawal: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, w, domain.NotifyPayoutRequested)
	return w, nil
}

// Approve moves requested -> approved.
func (s *PayoutServiceImpl) Approve(ctx context.Context, withdrawalID uuid.UUID) (*domain.WithdrawalRequest, error) {
	return s.transition(ctx, withdrawalID, "withdrawal_approve", domain.NotifyPayoutApproved,
		func(_ pgx.Tx, w *domain.WithdrawalRequest, now time.Time) error {
			return w.Transition(domain.WithdrawalApproved, now)
		})
}

// Reject moves requested -> rejected and releases the hold.
func (s *PayoutServiceImpl) Reject(ctx context.Context, withdrawalID uuid.UUID, reason string) (*domain.WithdrawalRequest, error) {
	return s.transition(ctx, withdrawalID, "withdrawal_reject", domain.NotifyPayoutRejected,
		func(tx pgx.Tx, w *domain.WithdrawalRequest, now time.Time) error {
			if w.Status != domain.WithdrawalRequested {
				return &domain.TransitionError{Entity: "withdrawal", From: string(w.Status), To: string(domain.WithdrawalRejected)}
			}
			return s.closeAndRelease(ctx, tx, w, domain.WithdrawalRejected, reason, now)
		})
}

// Hold sends an approved request back to requested. The funds stay reserved.
func (s *PayoutServiceImpl) Hold(ctx context.Context, withdrawalID uuid.UUID) (*domain.WithdrawalRequest, error) {
	return s.transition(ctx, withdrawalID, "withdrawal_hold", "",
		func(_ pgx.Tx, w *domain.WithdrawalRequest, now time.Time) error {
			if w.Status != domain.WithdrawalApproved {
				return &domain.TransitionError{Entity: "withdrawal", From: string(w.Status), To: string(domain.WithdrawalRequested)}
			}
			return w.Transition(domain.WithdrawalRequested, now)
		})
}

// Retry re-queues a failed request as a new attempt. The amount is reserved
// again and must fit the current available balance.
func (s *PayoutServiceImpl) Retry(ctx context.Context, withdrawalID uuid.UUID) (*domain.WithdrawalRequest, error) {
	return s.transition(ctx, withdrawalID, "withdrawal_retry", domain.NotifyPayoutRequested,
		func(tx pgx.Tx, w *domain.WithdrawalRequest, now time.Time) error {
			if w.Status != domain.WithdrawalFailed {
				return &domain.TransitionError{Entity: "withdrawal", From: string(w.Status), To: string(domain.WithdrawalRequested)}
			}
			balance, err := s.balances.GetTx(ctx, tx, w.SellerID)
			if err != nil {
				return fmt.Errorf("load balance: %w", err)
			}
			if err := balance.Reserve(w.Amount); err != nil {
				return err
			}
			balance.UpdatedAt = now
			if err := s.balances.Save(ctx, tx, balance); err != nil {
				return fmt.Errorf("save balance: %w", err)
			}
			return w.Transition(domain.WithdrawalRequested, now)
		})
}

// SubmitToGateway sends an approved request to the payout gateway.
//
// The request moves to processing before the gateway call so a crash after
// the call cannot lose track of a real transfer. The gateway idempotency key
// is the request's payout reference, so resubmitting a processing request
// that never got a gateway ref repeats the same transfer instead of creating
// a second one.
func (s *PayoutServiceImpl) SubmitToGateway(ctx context.Context, withdrawalID uuid.UUID) (*domain.WithdrawalRequest, error) {
	current, err := s.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	resubmit := current.Status == domain.WithdrawalProcessing && current.GatewayPayoutRef == nil
	if current.Status != domain.WithdrawalApproved && !resubmit {
		return nil, apperror.ErrInvalidTransition("withdrawal", string(current.Status), string(domain.WithdrawalProcessing))
	}

	account, dest, err := s.destinations.Destination(ctx, current.SellerID)
	if err != nil {
		return nil, err
	}
	if account.ID != current.BankAccountID {
		return nil, apperror.ErrDestinationMismatch()
	}

	var w *domain.WithdrawalRequest
	if resubmit {
		w = current
	} else {
		w, err = s.transition(ctx, withdrawalID, "withdrawal_submit", domain.NotifyPayoutProcessing,
			func(_ pgx.Tx, w *domain.WithdrawalRequest, now time.Time) error {
				if w.BankAccountID != account.ID {
					return apperror.ErrDestinationMismatch()
				}
				return w.Transition(domain.WithdrawalProcessing, now)
			})
		if err != nil {
			return nil, err
		}
	}

	return s.sendToGateway(ctx, w, dest)
}

// sendToGateway calls CreatePayout for a processing request and records the
// outcome. A timeout leaves the request processing for reconciliation.
func (s *PayoutServiceImpl) sendToGateway(ctx context.Context, w *domain.WithdrawalRequest, dest ports.PayoutDestination) (*domain.WithdrawalRequest, error) {
	reference := w.PayoutReference()
	result, err := s.gateway.CreatePayout(ctx, ports.PayoutRequest{
		IdempotencyKey: reference,
		Amount:         w.Amount,
		Currency:       s.settings.Currency,
		Destination:    dest,
		Narration:      s.settings.Narration,
	})

	switch {
	case errors.Is(err, domain.ErrGatewayRejected):
		s.log.Warn().Err(err).Str("withdrawal_id", w.ID.String()).Msg("payout rejected by gateway")
		if _, applyErr := s.applyResult(ctx, reference, &ports.PayoutResult{State: ports.PayoutStateFailed, FailureReason: err.Error()}); applyErr != nil {
			return nil, applyErr
		}
		return nil, apperror.ErrGatewayPermanentFailure(err)
	case err != nil:
		s.log.Warn().Err(err).Str("withdrawal_id", w.ID.String()).Msg("payout submission unresolved, left for reconciliation")
		return nil, toAppError(err)
	}

	updated, err := s.applyResult(ctx, reference, result)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("payout_ref", result.PayoutRef).
		Int64("amount", w.Amount).
		Msg("payout submitted")
	return updated, nil
}

// applyResult stores the gateway ref and applies a terminal state if the
// gateway already reports one.
func (s *PayoutServiceImpl) applyResult(ctx context.Context, reference string, result *ports.PayoutResult) (*domain.WithdrawalRequest, error) {
	cmd := domain.Command{ReferenceID: reference, GatewayRef: result.PayoutRef, Reason: result.FailureReason}
	switch result.State {
	case ports.PayoutStateProcessed:
		cmd.Kind = domain.CommandPayoutPaid
	case ports.PayoutStateFailed:
		cmd.Kind = domain.CommandPayoutFailed
	case ports.PayoutStateReversed:
		cmd.Kind = domain.CommandPayoutReversed
	}

	var w *domain.WithdrawalRequest
	var note *domain.NotificationEvent
	err := s.retry.do(ctx, "payout_resolve", func() error {
		return runInTx(ctx, s.transactor, func(tx pgx.Tx) error {
			var err error
			w, note, err = s.applyCommandTx(ctx, tx, cmd)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	if note != nil {
		s.recordTransition(ctx, w, note.Type)
	}
	return w, nil
}

// applyCommandTx resolves a payout command against the request named by its
// reference. Commands for a superseded attempt are ignored. An empty Kind
// only records the gateway ref.
func (s *PayoutServiceImpl) applyCommandTx(ctx context.Context, tx pgx.Tx, cmd domain.Command) (*domain.WithdrawalRequest, *domain.NotificationEvent, error) {
	id, attempt, err := domain.ParsePayoutReference(cmd.ReferenceID)
	if err != nil {
		return nil, nil, apperror.ErrInvalidPayload(err.Error())
	}
	w, err := s.withdrawals.GetByIDTx(ctx, tx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load withdrawal: %w", err)
	}
	if w == nil {
		return nil, nil, fmt.Errorf("%w: withdrawal %s", errUnknownReference, id)
	}
	if attempt != w.Attempt {
		s.log.Debug().Str("withdrawal_id", id.String()).Int("attempt", attempt).Msg("payout event for superseded attempt ignored")
		return w, nil, nil
	}
	if cmd.Amount != 0 && cmd.Amount != w.Amount {
		return nil, nil, apperror.ErrAmountMismatch()
	}

	note, err := s.resolveTx(ctx, tx, w, cmd)
	return w, note, err
}

// resolveTx applies one gateway verdict. Redelivered verdicts are no-ops.
func (s *PayoutServiceImpl) resolveTx(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest, cmd domain.Command) (*domain.NotificationEvent, error) {
	now := s.now()
	refChanged := false
	if cmd.GatewayRef != "" && w.GatewayPayoutRef == nil {
		ref := cmd.GatewayRef
		w.GatewayPayoutRef = &ref
		w.UpdatedAt = now
		refChanged = true
	}

	var noteType domain.NotificationType
	switch cmd.Kind {
	case "":
		// ref only
	case domain.CommandPayoutPaid:
		if w.Status != domain.WithdrawalProcessing {
			if w.Status == domain.WithdrawalApproved || w.Status == domain.WithdrawalRequested {
				return nil, &domain.TransitionError{Entity: "withdrawal", From: string(w.Status), To: string(domain.WithdrawalPaid)}
			}
			s.log.Warn().Str("withdrawal_id", w.ID.String()).Str("status", string(w.Status)).Msg("processed event for resolved payout ignored")
			break
		}
		if err := w.Transition(domain.WithdrawalPaid, now); err != nil {
			return nil, err
		}
		balance, err := s.balances.GetTx(ctx, tx, w.SellerID)
		if err != nil {
			return nil, fmt.Errorf("load balance: %w", err)
		}
		if err := balance.ConsumeHold(w.Amount); err != nil {
			return nil, err
		}
		balance.UpdatedAt = now
		if err := s.balances.Save(ctx, tx, balance); err != nil {
			return nil, fmt.Errorf("save balance: %w", err)
		}
		if err := s.ledger.Append(ctx, tx, domain.PayoutEntry(w.ID, w.SellerID, domain.LedgerPayoutDebit, -w.Amount, now)); err != nil {
			return nil, fmt.Errorf("append ledger: %w", err)
		}
		noteType = domain.NotifyPayoutPaid

	case domain.CommandPayoutFailed, domain.CommandPayoutReversed:
		switch w.Status {
		case domain.WithdrawalProcessing:
			if err := s.closeAndRelease(ctx, tx, w, domain.WithdrawalFailed, cmd.Reason, now); err != nil {
				return nil, err
			}
			noteType = domain.NotifyPayoutFailed
		case domain.WithdrawalPaid:
			if cmd.Kind != domain.CommandPayoutReversed {
				s.log.Warn().Str("withdrawal_id", w.ID.String()).Msg("failure event for paid payout ignored")
				break
			}
			if err := s.reverseTx(ctx, tx, w, cmd.Reason, now); err != nil {
				return nil, err
			}
			noteType = domain.NotifyPayoutFailed
		case domain.WithdrawalApproved, domain.WithdrawalRequested:
			return nil, &domain.TransitionError{Entity: "withdrawal", From: string(w.Status), To: string(domain.WithdrawalFailed)}
		}

	default:
		return nil, apperror.ErrInvalidPayload(fmt.Sprintf("unsupported payout command %q", cmd.Kind))
	}

	if noteType == "" && !refChanged {
		return nil, nil
	}
	if err := s.withdrawals.Update(ctx, tx, w); err != nil {
		return nil, fmt.Errorf("update withdrawal: %w", err)
	}
	if noteType == "" {
		return nil, nil
	}
	note := domain.NewNotification(noteType, w.ID, w.SellerID, w.Amount, now)
	if w.FailureReason != nil {
		note.Attributes = map[string]string{"reason": *w.FailureReason}
	}
	return &note, nil
}

// reverseTx handles a bank returning an already paid-out transfer: the
// debit is offset by a payout_reversal and the amount is credited back.
func (s *PayoutServiceImpl) reverseTx(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest, reason string, now time.Time) error {
	if err := w.Transition(domain.WithdrawalFailed, now); err != nil {
		return err
	}
	if reason == "" {
		reason = "payout reversed"
	}
	w.FailureReason = &reason

	balance, err := s.balances.GetTx(ctx, tx, w.SellerID)
	if err != nil {
		return fmt.Errorf("load balance: %w", err)
	}
	balance.Credit(w.Amount)
	balance.UpdatedAt = now
	if err := s.balances.Save(ctx, tx, balance); err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	if err := s.ledger.Append(ctx, tx, domain.PayoutEntry(w.ID, w.SellerID, domain.LedgerPayoutReversal, w.Amount, now)); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	return nil
}

// closeAndRelease moves w to a terminal-for-now status and returns the
// reserved amount to the seller.
func (s *PayoutServiceImpl) closeAndRelease(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest, next domain.WithdrawalStatus, reason string, now time.Time) error {
	if err := w.Transition(next, now); err != nil {
		return err
	}
	if reason != "" {
		w.FailureReason = &reason
	}
	balance, err := s.balances.GetTx(ctx, tx, w.SellerID)
	if err != nil {
		return fmt.Errorf("load balance: %w", err)
	}
	if err := balance.Release(w.Amount); err != nil {
		return err
	}
	balance.UpdatedAt = now
	if err := s.balances.Save(ctx, tx, balance); err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	return nil
}

// transition loads, mutates and saves one request under the version retry loop.
func (s *PayoutServiceImpl) transition(
	ctx context.Context,
	withdrawalID uuid.UUID,
	op string,
	notify domain.NotificationType,
	mutate func(tx pgx.Tx, w *domain.WithdrawalRequest, now time.Time) error,
) (*domain.WithdrawalRequest, error) {
	var w *domain.WithdrawalRequest
	err := s.retry.do(ctx, op, func() error {
		return runInTx(ctx, s.transactor, func(tx pgx.Tx) error {
			var err error
			w, err = s.withdrawals.GetByIDTx(ctx, tx, withdrawalID)
			if err != nil {
				return fmt.Errorf("load withdrawal: %w", err)
			}
			if w == nil {
				return apperror.ErrNotFound("Withdrawal request")
			}
			if err := mutate(tx, w, s.now()); err != nil {
				return err
			}
			if err := s.withdrawals.Update(ctx, tx, w); err != nil {
				return fmt.Errorf("update withdrawal: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, w, notify)
	return w, nil
}

func (s *PayoutServiceImpl) recordTransition(ctx context.Context, w *domain.WithdrawalRequest, notify domain.NotificationType) {
	s.metrics.WithdrawalTransition(string(w.Status))
	s.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("seller_id", w.SellerID.String()).
		Str("status", string(w.Status)).
		Int("attempt", w.Attempt).
		Int64("amount", w.Amount).
		Msg("withdrawal transitioned")
	if notify == "" {
		return
	}
	note := domain.NewNotification(notify, w.ID, w.SellerID, w.Amount, w.UpdatedAt)
	if w.FailureReason != nil {
		note.Attributes = map[string]string{"reason": *w.FailureReason}
	}
	s.notifier.Notify(ctx, note)
}

func (s *PayoutServiceImpl) GetWithdrawal(ctx context.Context, withdrawalID uuid.UUID) (*domain.WithdrawalRequest, error) {
	w, err := s.withdrawals.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get withdrawal: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrNotFound("Withdrawal request")
	}
	return w, nil
}

func (s *PayoutServiceImpl) ListWithdrawals(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]domain.WithdrawalRequest, error) {
	limit, offset = clampPage(limit, offset)
	list, err := s.withdrawals.ListBySeller(ctx, sellerID, limit, offset)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list withdrawals: %w", err))
	}
	return list, nil
}

// Reconcile polls the gateway for processing requests that have not been
// resolved by webhook within the configured window. Requests that never got
// a gateway ref are resubmitted under the same idempotency key.
func (s *PayoutServiceImpl) Reconcile(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.settings.ReconcileAfter)
	stale, err := s.withdrawals.ListStale(ctx, domain.WithdrawalProcessing, cutoff, s.settings.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list processing withdrawals: %w", err)
	}

	resolved := 0
	var errs []error
	for i := range stale {
		w := &stale[i]
		done, err := s.reconcileOne(ctx, w)
		if err != nil {
			s.log.Warn().Err(err).Str("withdrawal_id", w.ID.String()).Msg("payout reconciliation failed")
			errs = append(errs, err)
			continue
		}
		if done {
			resolved++
		}
	}
	return resolved, errors.Join(errs...)
}

func (s *PayoutServiceImpl) reconcileOne(ctx context.Context, w *domain.WithdrawalRequest) (bool, error) {
	if w.GatewayPayoutRef == nil {
		_, dest, err := s.destinations.Destination(ctx, w.SellerID)
		if err != nil {
			return false, err
		}
		updated, err := s.sendToGateway(ctx, w, dest)
		if err != nil {
			return false, err
		}
		return updated.Status != domain.WithdrawalProcessing, nil
	}

	result, err := s.gateway.GetPayoutStatus(ctx, *w.GatewayPayoutRef)
	if err != nil {
		return false, fmt.Errorf("query payout status: %w", err)
	}
	if result.State == ports.PayoutStateProcessing {
		return false, nil
	}
	updated, err := s.applyResult(ctx, w.PayoutReference(), result)
	if err != nil {
		return false, err
	}
	return updated.Status != domain.WithdrawalProcessing, nil
}

// ExpireStaleRequests rejects requested withdrawals nobody acted on within
// the hold release timeout, returning their funds.
func (s *PayoutServiceImpl) ExpireStaleRequests(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.settings.HoldReleaseTimeout)
	stale, err := s.withdrawals.ListStale(ctx, domain.WithdrawalRequested, cutoff, s.settings.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list requested withdrawals: %w", err)
	}

	expired := 0
	var errs []error
	for _, candidate := range stale {
		_, err := s.transition(ctx, candidate.ID, "withdrawal_expire", domain.NotifyPayoutRejected,
			func(tx pgx.Tx, w *domain.WithdrawalRequest, now time.Time) error {
				if w.Status != domain.WithdrawalRequested || w.UpdatedAt.After(cutoff) {
					return errSkip
				}
				return s.closeAndRelease(ctx, tx, w, domain.WithdrawalRejected, "expired", now)
			})
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		expired++
	}
	return expired, errors.Join(errs...)
}
