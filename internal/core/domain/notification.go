package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType names an outbound event for the notification collaborator.
type NotificationType string

const (
	NotifyOrderPaid        NotificationType = "order.paid"
	NotifyOrderFailed      NotificationType = "order.failed"
	NotifyOrderRefunded    NotificationType = "order.refunded"
	NotifyPayoutRequested  NotificationType = "payout.requested"
	NotifyPayoutApproved   NotificationType = "payout.approved"
	NotifyPayoutRejected   NotificationType = "payout.rejected"
	NotifyPayoutProcessing NotificationType = "payout.processing"
	NotifyPayoutPaid       NotificationType = "payout.paid"
	NotifyPayoutFailed     NotificationType = "payout.failed"
	NotifyDisputeOpened    NotificationType = "dispute.opened"
	NotifyDisputeApproved  NotificationType = "dispute.approved"
	NotifyDisputeRejected  NotificationType = "dispute.rejected"
)

// NotificationEvent is a fire-and-forget message about a committed change.
type NotificationEvent struct {
	ID         uuid.UUID         `json:"id"`
	Type       NotificationType  `json:"type"`
	SubjectID  uuid.UUID         `json:"subject_id"` // order, withdrawal or dispute id
	OwnerID    uuid.UUID         `json:"owner_id"`   // recipient user
	Amount     int64             `json:"amount,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func NewNotification(t NotificationType, subjectID, ownerID uuid.UUID, amount int64, now time.Time) NotificationEvent {
	return NotificationEvent{
		ID:         uuid.New(),
		Type:       t,
		SubjectID:  subjectID,
		OwnerID:    ownerID,
		Amount:     amount,
		OccurredAt: now,
	}
}

// DeliveryStatus represents the delivery state of a notification.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
)

// NotificationDelivery records the outcome of delivering one event to a sink.
type NotificationDelivery struct {
	ID        uuid.UUID        `json:"id"`
	EventID   uuid.UUID        `json:"event_id"`
	EventType NotificationType `json:"event_type"`
	Sink      string           `json:"sink"`
	Payload   string           `json:"payload"` // JSON string
	Attempt   int              `json:"attempt"`
	Status    DeliveryStatus   `json:"status"`
	LastError *string          `json:"last_error"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
