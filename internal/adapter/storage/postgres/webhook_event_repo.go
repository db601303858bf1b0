package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const webhookEventColumns = `event_id, channel, event_type, command_kind, reference_id, amount, gateway_ref,
	failure_reason, status, attempts, last_error, received_at, applied_at, updated_at`

// WebhookEventRepo implements ports.WebhookEventRepository. The primary key
// on event_id is the dedup guard.
type WebhookEventRepo struct {
	pool Pool
}

// NewWebhookEventRepo creates a new WebhookEventRepo.
func NewWebhookEventRepo(pool Pool) *WebhookEventRepo {
	return &WebhookEventRepo{pool: pool}
}

// Insert records the event unless its id was seen before.
func (r *WebhookEventRepo) Insert(ctx context.Context, tx pgx.Tx, e *domain.ProcessedWebhookEvent) (bool, error) {
	query := `INSERT INTO processed_webhook_events (` + webhookEventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (event_id) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		e.EventID, e.Channel, e.EventType, e.Command.Kind, e.Command.ReferenceID, e.Command.Amount,
		e.Command.GatewayRef, e.Command.Reason, e.Status, e.Attempts, e.LastError,
		e.ReceivedAt, e.AppliedAt, e.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert webhook event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByEventID fetches a recorded event.
func (r *WebhookEventRepo) GetByEventID(ctx context.Context, eventID string) (*domain.ProcessedWebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM processed_webhook_events WHERE event_id = $1`

	return scanWebhookEvent(r.pool.QueryRow(ctx, query, eventID))
}

// MarkAppliedTx flips a pending or failed event to applied.
func (r *WebhookEventRepo) MarkAppliedTx(ctx context.Context, tx pgx.Tx, eventID string, at time.Time) (bool, error) {
	query := `UPDATE processed_webhook_events SET status = $1, applied_at = $2, updated_at = $2
		WHERE event_id = $3 AND status IN ($4, $5)`

	tag, err := tx.Exec(ctx, query,
		domain.WebhookEventApplied, at, eventID, domain.WebhookEventPending, domain.WebhookEventFailed,
	)
	if err != nil {
		return false, fmt.Errorf("mark webhook event applied: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordFailure bumps attempts and stores the error. Applied events are left alone.
func (r *WebhookEventRepo) RecordFailure(ctx context.Context, eventID string, status domain.WebhookEventStatus, reason string, at time.Time) error {
	query := `UPDATE processed_webhook_events SET status = $1, attempts = attempts + 1, last_error = $2, updated_at = $3
		WHERE event_id = $4 AND status <> $5`

	if _, err := r.pool.Exec(ctx, query, status, reason, at, eventID, domain.WebhookEventApplied); err != nil {
		return fmt.Errorf("record webhook failure: %w", err)
	}
	return nil
}

// ListRetryable returns pending or failed events older than cutoff, oldest first.
func (r *WebhookEventRepo) ListRetryable(ctx context.Context, cutoff time.Time, maxAttempts, limit int) ([]domain.ProcessedWebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM processed_webhook_events
		WHERE status IN ($1, $2) AND received_at < $3 AND attempts < $4
		ORDER BY received_at ASC LIMIT $5`

	rows, err := r.pool.Query(ctx, query,
		domain.WebhookEventPending, domain.WebhookEventFailed, cutoff, maxAttempts, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list retryable webhook events: %w", err)
	}
	defer rows.Close()

	var out []domain.ProcessedWebhookEvent
	for rows.Next() {
		e, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook events: %w", err)
	}
	return out, nil
}

func scanWebhookEvent(row pgx.Row) (*domain.ProcessedWebhookEvent, error) {
	e := &domain.ProcessedWebhookEvent{}
	err := row.Scan(
		&e.EventID, &e.Channel, &e.EventType, &e.Command.Kind, &e.Command.ReferenceID, &e.Command.Amount,
		&e.Command.GatewayRef, &e.Command.Reason, &e.Status, &e.Attempts, &e.LastError,
		&e.ReceivedAt, &e.AppliedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan webhook event: %w", err)
	}
	return e, nil
}
