package memory

import (
	"context"
	"sort"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// WebhookEventRepository implements ports.WebhookEventRepository.
type WebhookEventRepository struct{ s *Store }

func NewWebhookEventRepository(s *Store) *WebhookEventRepository {
	return &WebhookEventRepository{s: s}
}

func (r *WebhookEventRepository) Insert(ctx context.Context, tx pgx.Tx, e *domain.ProcessedWebhookEvent) (bool, error) {
	mt, err := r.s.open(tx)
	if err != nil {
		return false, err
	}
	if _, ok := r.s.events[e.EventID]; ok {
		return false, nil
	}
	put(mt, r.s.events, e.EventID, *e)
	return true, nil
}

func (r *WebhookEventRepository) GetByEventID(ctx context.Context, eventID string) (*domain.ProcessedWebhookEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[eventID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *WebhookEventRepository) MarkAppliedTx(ctx context.Context, tx pgx.Tx, eventID string, at time.Time) (bool, error) {
	mt, err := r.s.open(tx)
	if err != nil {
		return false, err
	}
	e, ok := r.s.events[eventID]
	if !ok || (e.Status != domain.WebhookEventPending && e.Status != domain.WebhookEventFailed) {
		return false, nil
	}
	e.Status = domain.WebhookEventApplied
	e.AppliedAt = &at
	e.UpdatedAt = at
	put(mt, r.s.events, eventID, e)
	return true, nil
}

func (r *WebhookEventRepository) RecordFailure(ctx context.Context, eventID string, status domain.WebhookEventStatus, reason string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[eventID]
	if !ok || e.Status == domain.WebhookEventApplied {
		return nil
	}
	e.Status = status
	e.Attempts++
	e.LastError = &reason
	e.UpdatedAt = at
	r.s.events[eventID] = e
	return nil
}

func (r *WebhookEventRepository) ListRetryable(ctx context.Context, cutoff time.Time, maxAttempts, limit int) ([]domain.ProcessedWebhookEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.ProcessedWebhookEvent
	for _, e := range r.s.events {
		retryable := e.Status == domain.WebhookEventPending || e.Status == domain.WebhookEventFailed
		if retryable && e.ReceivedAt.Before(cutoff) && e.Attempts < maxAttempts {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return page(out, limit, 0), nil
}
