package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const dedupKeyPrefix = "webhook:"

// IngressSettings configures webhook verification and the apply sweep.
type IngressSettings struct {
	PaymentSecret     string
	PayoutSecret      string
	SweepGrace        time.Duration // events younger than this are left to the request path
	MaxApplyAttempts  int
	DedupCacheTTL     time.Duration
	BatchSize         int
	MaxVersionRetries int
}

// gatewayEvent is the wire payload both channels post.
type gatewayEvent struct {
	EventID       string `json:"eventId"`
	EventType     string `json:"eventType"`
	ReferenceID   string `json:"referenceId"`
	Amount        int64  `json:"amount"`
	PaymentID     string `json:"paymentId,omitempty"`
	PayoutID      string `json:"payoutId,omitempty"`
	FailureReason string `json:"failureReason,omitempty"`
}

// IngressServiceImpl implements ports.IngressService.
type IngressServiceImpl struct {
	events     ports.WebhookEventRepository
	orders     ports.OrderRepository
	transactor ports.DBTransactor
	sigSvc     ports.SignatureService
	cache      ports.IdempotencyCache
	settlement *SettlementServiceImpl
	payouts    *PayoutServiceImpl
	metrics    *metrics.SettlementMetrics
	retry      versionRetrier
	settings   IngressSettings
	log        zerolog.Logger
	now        func() time.Time
}

// NewIngressService creates a new IngressServiceImpl. cache may be nil.
func NewIngressService(
	events ports.WebhookEventRepository,
	orders ports.OrderRepository,
	transactor ports.DBTransactor,
	sigSvc ports.SignatureService,
	cache ports.IdempotencyCache,
	settlement *SettlementServiceImpl,
	payouts *PayoutServiceImpl,
	m *metrics.SettlementMetrics,
	settings IngressSettings,
	log zerolog.Logger,
) *IngressServiceImpl {
	if settings.MaxApplyAttempts <= 0 {
		settings.MaxApplyAttempts = 10
	}
	if settings.BatchSize <= 0 {
		settings.BatchSize = 100
	}
	if settings.DedupCacheTTL <= 0 {
		settings.DedupCacheTTL = 24 * time.Hour
	}
	return &IngressServiceImpl{
		events:     events,
		orders:     orders,
		transactor: transactor,
		sigSvc:     sigSvc,
		cache:      cache,
		settlement: settlement,
		payouts:    payouts,
		metrics:    m,
		retry:      newVersionRetrier(settings.MaxVersionRetries, m, log),
		settings:   settings,
		log:        log,
		now:        utcNow,
	}
}

// Ingest verifies the signature, parses the payload and records the event
// exactly once. It does not apply the command.
func (s *IngressServiceImpl) Ingest(ctx context.Context, channel domain.WebhookChannel, rawBody []byte, signature string) (*ports.IngestResult, error) {
	secret, err := s.secretFor(channel)
	if err != nil {
		return nil, err
	}
	if signature == "" || !s.sigSvc.Verify(secret, string(rawBody), signature) {
		s.metrics.WebhookEvent(string(channel), "invalid_signature")
		return nil, apperror.ErrInvalidSignature()
	}

	evt, cmd, err := parseGatewayEvent(channel, rawBody)
	if err != nil {
		s.metrics.WebhookEvent(string(channel), "invalid_payload")
		return nil, err
	}

	if status, ok := s.cachedStatus(ctx, evt.EventID); ok {
		s.metrics.WebhookEvent(string(channel), "duplicate")
		return &ports.IngestResult{EventID: evt.EventID, Duplicate: true, Command: cmd, Status: status}, nil
	}

	now := s.now()
	record := &domain.ProcessedWebhookEvent{
		EventID:    evt.EventID,
		Channel:    channel,
		EventType:  domain.GatewayEventType(evt.EventType),
		Command:    cmd,
		Status:     domain.WebhookEventPending,
		ReceivedAt: now,
		UpdatedAt:  now,
	}

	var inserted bool
	err = runInTx(ctx, s.transactor, func(tx pgx.Tx) error {
		var err error
		inserted, err = s.events.Insert(ctx, tx, record)
		return err
	})
	if err != nil {
		return nil, toAppError(fmt.Errorf("record webhook event: %w", err))
	}

	if !inserted {
		existing, err := s.events.GetByEventID(ctx, evt.EventID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("load webhook event: %w", err))
		}
		result := &ports.IngestResult{EventID: evt.EventID, Duplicate: true, Command: cmd, Status: domain.WebhookEventPending}
		if existing != nil {
			result.Command = existing.Command
			result.Status = existing.Status
		}
		s.metrics.WebhookEvent(string(channel), "duplicate")
		s.log.Debug().Str("event_id", evt.EventID).Str("status", string(result.Status)).Msg("duplicate webhook delivery")
		return result, nil
	}

	s.metrics.WebhookEvent(string(channel), "received")
	s.log.Info().
		Str("event_id", evt.EventID).
		Str("channel", string(channel)).
		Str("event_type", evt.EventType).
		Str("reference_id", evt.ReferenceID).
		Msg("webhook event recorded")

	return &ports.IngestResult{EventID: evt.EventID, Command: cmd, Status: domain.WebhookEventPending}, nil
}

// Process ingests the delivery and applies the command on first sight.
func (s *IngressServiceImpl) Process(ctx context.Context, channel domain.WebhookChannel, rawBody []byte, signature string) (*ports.IngestResult, error) {
	result, err := s.Ingest(ctx, channel, rawBody, signature)
	if err != nil || result.Duplicate {
		return result, err
	}

	status, applyErr := s.apply(ctx, channel, result.EventID, result.Command)
	if applyErr != nil {
		s.log.Warn().Err(applyErr).
			Str("event_id", result.EventID).
			Str("status", string(status)).
			Msg("webhook apply failed")
	}
	result.Status = status
	return result, nil
}

// Sweep re-applies events that were recorded but not applied, oldest first.
func (s *IngressServiceImpl) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.settings.SweepGrace)
	pending, err := s.events.ListRetryable(ctx, cutoff, s.settings.MaxApplyAttempts, s.settings.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list retryable webhook events: %w", err)
	}

	applied := 0
	var errs []error
	for _, evt := range pending {
		if ctx.Err() != nil {
			break
		}
		status, err := s.apply(ctx, evt.Channel, evt.EventID, evt.Command)
		if err != nil {
			errs = append(errs, fmt.Errorf("event %s: %w", evt.EventID, err))
			continue
		}
		if status == domain.WebhookEventApplied {
			applied++
		}
	}
	return applied, errors.Join(errs...)
}

// apply runs the command and the applied mark in one transaction, so a
// command takes effect at most once however many times it is delivered.
func (s *IngressServiceImpl) apply(ctx context.Context, channel domain.WebhookChannel, eventID string, cmd domain.Command) (domain.WebhookEventStatus, error) {
	var after func()
	err := s.retry.do(ctx, "webhook_apply", func() error {
		after = nil
		return runInTx(ctx, s.transactor, func(tx pgx.Tx) error {
			marked, err := s.events.MarkAppliedTx(ctx, tx, eventID, s.now())
			if err != nil {
				return fmt.Errorf("mark event applied: %w", err)
			}
			if !marked {
				return errAlreadyApplied
			}
			after, err = s.dispatchTx(ctx, tx, channel, cmd)
			return err
		})
	})

	switch {
	case err == nil:
		if after != nil {
			after()
		}
		s.metrics.WebhookEvent(string(channel), "applied")
		s.remember(ctx, eventID, domain.WebhookEventApplied)
		return domain.WebhookEventApplied, nil
	case errors.Is(err, errAlreadyApplied):
		return domain.WebhookEventApplied, nil
	}

	status := domain.WebhookEventFailed
	if isPermanent(err) {
		status = domain.WebhookEventRejected
	}
	if recErr := s.events.RecordFailure(ctx, eventID, status, err.Error(), s.now()); recErr != nil {
		s.log.Error().Err(recErr).Str("event_id", eventID).Msg("failed to record webhook failure")
	}
	s.metrics.WebhookEvent(string(channel), string(status))
	if status == domain.WebhookEventRejected {
		s.remember(ctx, eventID, status)
	}
	return status, err
}

// dispatchTx routes a command to its processor. The returned func runs
// after commit.
func (s *IngressServiceImpl) dispatchTx(ctx context.Context, tx pgx.Tx, channel domain.WebhookChannel, cmd domain.Command) (func(), error) {
	switch cmd.Kind {
	case domain.CommandSettlePaid, domain.CommandSettleFailed:
		if channel != domain.ChannelPayment {
			return nil, apperror.ErrInvalidPayload("payment command on payout channel")
		}
		order, err := s.orders.GetByGatewayRefTx(ctx, tx, cmd.ReferenceID)
		if err != nil {
			return nil, fmt.Errorf("load order: %w", err)
		}
		if order == nil {
			return nil, fmt.Errorf("%w: order %s", errUnknownReference, cmd.ReferenceID)
		}
		outcome := domain.OutcomeFailed
		if cmd.Kind == domain.CommandSettlePaid {
			outcome = domain.OutcomePaid
			if order.Status == domain.OrderStatusCreated && cmd.Amount != order.GrossAmount {
				return nil, apperror.ErrAmountMismatch()
			}
		}
		note, err := s.settlement.settleTx(ctx, tx, order, outcome, cmd.GatewayRef)
		if err != nil {
			return nil, err
		}
		return func() { s.settlement.afterSettle(ctx, note) }, nil

	case domain.CommandPayoutPaid, domain.CommandPayoutFailed, domain.CommandPayoutReversed:
		if channel != domain.ChannelPayout {
			return nil, apperror.ErrInvalidPayload("payout command on payment channel")
		}
		w, note, err := s.payouts.applyCommandTx(ctx, tx, cmd)
		if err != nil {
			return nil, err
		}
		if note == nil {
			return nil, nil
		}
		return func() { s.payouts.recordTransition(ctx, w, note.Type) }, nil
	}
	return nil, apperror.ErrInvalidPayload(fmt.Sprintf("unsupported command %q", cmd.Kind))
}

func (s *IngressServiceImpl) secretFor(channel domain.WebhookChannel) (string, error) {
	switch channel {
	case domain.ChannelPayment:
		return s.settings.PaymentSecret, nil
	case domain.ChannelPayout:
		return s.settings.PayoutSecret, nil
	}
	return "", apperror.Validation(fmt.Sprintf("unknown webhook channel %q", channel))
}

func (s *IngressServiceImpl) cachedStatus(ctx context.Context, eventID string) (domain.WebhookEventStatus, bool) {
	if s.cache == nil {
		return "", false
	}
	val, err := s.cache.Get(ctx, dedupKeyPrefix+eventID)
	if err != nil {
		s.log.Warn().Err(err).Str("event_id", eventID).Msg("dedup cache read failed, falling back to store")
		return "", false
	}
	if val == nil {
		return "", false
	}
	return domain.WebhookEventStatus(val), true
}

// remember caches a final status. Only settled outcomes are cached so a
// retryable event is never short-circuited.
func (s *IngressServiceImpl) remember(ctx context.Context, eventID string, status domain.WebhookEventStatus) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, dedupKeyPrefix+eventID, []byte(status), s.settings.DedupCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("event_id", eventID).Msg("dedup cache write failed")
	}
}

func parseGatewayEvent(channel domain.WebhookChannel, rawBody []byte) (*gatewayEvent, domain.Command, error) {
	var evt gatewayEvent
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		return nil, domain.Command{}, apperror.ErrInvalidPayload("malformed JSON")
	}
	evt.EventID = strings.TrimSpace(evt.EventID)
	evt.ReferenceID = strings.TrimSpace(evt.ReferenceID)
	if evt.EventID == "" {
		return nil, domain.Command{}, apperror.ErrInvalidPayload("eventId is required")
	}
	if evt.ReferenceID == "" {
		return nil, domain.Command{}, apperror.ErrInvalidPayload("referenceId is required")
	}
	if evt.Amount < 0 {
		return nil, domain.Command{}, apperror.ErrInvalidPayload("amount must not be negative")
	}

	eventType := domain.GatewayEventType(evt.EventType)
	if eventType.Channel() != channel {
		return nil, domain.Command{}, apperror.ErrInvalidPayload(fmt.Sprintf("event type %q not accepted on %s channel", evt.EventType, channel))
	}

	gatewayRef := evt.PaymentID
	if channel == domain.ChannelPayout {
		gatewayRef = evt.PayoutID
	}
	cmd, ok := domain.NewCommand(eventType, evt.ReferenceID, evt.Amount, gatewayRef, evt.FailureReason)
	if !ok {
		return nil, domain.Command{}, apperror.ErrInvalidPayload(fmt.Sprintf("unsupported event type %q", evt.EventType))
	}
	if cmd.Kind == domain.CommandSettlePaid && cmd.Amount == 0 {
		return nil, domain.Command{}, apperror.ErrInvalidPayload("amount is required")
	}
	return &evt, cmd, nil
}

// isPermanent reports whether redelivering the command can never succeed.
func isPermanent(err error) bool {
	for _, permanent := range []*apperror.AppError{
		apperror.ErrAmountMismatch(),
		apperror.ErrInvalidPayload(""),
		apperror.Validation(""),
	} {
		if errors.Is(err, permanent) {
			return true
		}
	}
	return false
}
