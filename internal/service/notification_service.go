package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// defaultNotifyRetryIntervals is the backoff between delivery attempts.
var defaultNotifyRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// NotificationService implements ports.Notifier. Each event is delivered to
// every sink on its own goroutine with retries; failures are logged and
// never reach the caller.
type NotificationService struct {
	sinks     []ports.NotificationSink
	repo      ports.NotificationRepository
	intervals []time.Duration
	log       zerolog.Logger

	mu      sync.RWMutex
	closing bool
	wg      sync.WaitGroup
	abort   chan struct{} // closed when the Close deadline passes
	aborted sync.Once
}

// NewNotificationService creates a new NotificationService. repo may be nil,
// in which case deliveries are only logged.
func NewNotificationService(sinks []ports.NotificationSink, repo ports.NotificationRepository, log zerolog.Logger) *NotificationService {
	return &NotificationService{
		sinks:     sinks,
		repo:      repo,
		intervals: defaultNotifyRetryIntervals,
		log:       log,
		abort:     make(chan struct{}),
	}
}

// WithRetryIntervals overrides the retry backoff.
func (s *NotificationService) WithRetryIntervals(intervals ...time.Duration) *NotificationService {
	s.intervals = intervals
	return s
}

// Notify fans events out to the sinks asynchronously. Events arriving after
// Close are dropped.
func (s *NotificationService) Notify(ctx context.Context, events ...domain.NotificationEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closing {
		s.log.Warn().Int("events", len(events)).Msg("notifier closed, dropping events")
		return
	}

	ctx = context.WithoutCancel(ctx)
	for _, event := range events {
		for _, sink := range s.sinks {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.deliverWithRetries(ctx, sink, event)
			}()
		}
	}
}

// Close stops accepting events and drains pending deliveries, retries
// included. When ctx is done first, the remaining retries are abandoned and
// ctx.Err() is returned.
func (s *NotificationService) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.aborted.Do(func() { close(s.abort) })
		return ctx.Err()
	}
}

func (s *NotificationService) deliverWithRetries(ctx context.Context, sink ports.NotificationSink, event domain.NotificationEvent) {
	delivery := s.openDelivery(ctx, sink, event)
	log := s.log.With().
		Str("sink", sink.Name()).
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Logger()

	for attempt := 1; attempt <= len(s.intervals)+1; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(s.intervals[attempt-2])
			select {
			case <-timer.C:
			case <-s.abort:
				timer.Stop()
				log.Warn().Int("attempt", attempt).Msg("notification: shutdown deadline before retry")
				return
			}
		}

		err := sink.Deliver(ctx, event)
		if err == nil {
			s.recordAttempt(ctx, delivery, domain.DeliveryDelivered, attempt, nil)
			log.Debug().Int("attempt", attempt).Msg("notification: delivered")
			return
		}

		msg := err.Error()
		s.recordAttempt(ctx, delivery, domain.DeliveryPending, attempt, &msg)
		log.Warn().Err(err).Int("attempt", attempt).Msg("notification: delivery failed")
	}

	msg := "retries exhausted"
	s.recordAttempt(ctx, delivery, domain.DeliveryFailed, len(s.intervals)+1, &msg)
	log.Error().Msg("notification: all retry attempts exhausted")
}

func (s *NotificationService) openDelivery(ctx context.Context, sink ports.NotificationSink, event domain.NotificationEvent) *domain.NotificationDelivery {
	if s.repo == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("notification: failed to marshal event")
		return nil
	}
	now := time.Now().UTC()
	d := &domain.NotificationDelivery{
		ID:        uuid.New(),
		EventID:   event.ID,
		EventType: event.Type,
		Sink:      sink.Name(),
		Payload:   string(payload),
		Status:    domain.DeliveryPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		s.log.Warn().Err(err).Str("event_id", event.ID.String()).Msg("notification: failed to record delivery")
		return nil
	}
	return d
}

func (s *NotificationService) recordAttempt(ctx context.Context, d *domain.NotificationDelivery, status domain.DeliveryStatus, attempt int, lastErr *string) {
	if d == nil {
		return
	}
	if err := s.repo.UpdateStatus(ctx, d.ID, status, attempt, lastErr); err != nil {
		s.log.Warn().Err(err).Str("delivery_id", d.ID.String()).Msg("notification: failed to update delivery")
	}
}
