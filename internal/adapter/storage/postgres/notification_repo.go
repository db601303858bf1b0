package postgres

import (
	"context"
	"fmt"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
)

// NotificationRepo implements ports.NotificationRepository.
type NotificationRepo struct {
	pool Pool
}

// NewNotificationRepo creates a PostgreSQL-backed NotificationRepository.
func NewNotificationRepo(pool Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

func (r *NotificationRepo) Create(ctx context.Context, d *domain.NotificationDelivery) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notification_deliveries
		 (id, event_id, event_type, sink, payload, attempt, status, last_error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.EventID, d.EventType, d.Sink, d.Payload,
		d.Attempt, d.Status, d.LastError, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification delivery: %w", err)
	}
	return nil
}

func (r *NotificationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DeliveryStatus, attempt int, lastError *string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notification_deliveries SET status = $1, attempt = $2, last_error = $3, updated_at = NOW()
		 WHERE id = $4`,
		status, attempt, lastError, id,
	)
	if err != nil {
		return fmt.Errorf("update notification delivery: %w", err)
	}
	return nil
}
