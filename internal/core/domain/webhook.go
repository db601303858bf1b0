package domain

import (
	"time"
)

// WebhookChannel is one of the two inbound gateway channels.
type WebhookChannel string

const (
	ChannelPayment WebhookChannel = "payment"
	ChannelPayout  WebhookChannel = "payout"
)

// GatewayEventType is the gateway's name for an event.
type GatewayEventType string

const (
	EventPaymentCaptured GatewayEventType = "payment.captured"
	EventPaymentFailed   GatewayEventType = "payment.failed"
	EventPayoutProcessed GatewayEventType = "payout.processed"
	EventPayoutFailed    GatewayEventType = "payout.failed"
	EventPayoutReversed  GatewayEventType = "payout.reversed"
)

// Channel returns the channel an event type belongs to, or "" if unknown.
func (t GatewayEventType) Channel() WebhookChannel {
	switch t {
	case EventPaymentCaptured, EventPaymentFailed:
		return ChannelPayment
	case EventPayoutProcessed, EventPayoutFailed, EventPayoutReversed:
		return ChannelPayout
	default:
		return ""
	}
}

// CommandKind is the normalized internal action for an event.
type CommandKind string

const (
	CommandSettlePaid     CommandKind = "settle_paid"
	CommandSettleFailed   CommandKind = "settle_failed"
	CommandPayoutPaid     CommandKind = "payout_paid"
	CommandPayoutFailed   CommandKind = "payout_failed"
	CommandPayoutReversed CommandKind = "payout_reversed"
)

var commandForEvent = map[GatewayEventType]CommandKind{
	EventPaymentCaptured: CommandSettlePaid,
	EventPaymentFailed:   CommandSettleFailed,
	EventPayoutProcessed: CommandPayoutPaid,
	EventPayoutFailed:    CommandPayoutFailed,
	EventPayoutReversed:  CommandPayoutReversed,
}

// Command is what the ingress hands to a processor. ReferenceID is the
// gateway order ref on the payment channel and the payout reference on the
// payout channel.
type Command struct {
	Kind        CommandKind `json:"kind"`
	ReferenceID string      `json:"reference_id"`
	Amount      int64       `json:"amount"`
	GatewayRef  string      `json:"gateway_ref,omitempty"`
	Reason      string      `json:"reason,omitempty"`
}

// NewCommand normalizes an event. ok is false for unsupported types.
func NewCommand(t GatewayEventType, referenceID string, amount int64, gatewayRef, reason string) (Command, bool) {
	kind, ok := commandForEvent[t]
	if !ok {
		return Command{}, false
	}
	return Command{
		Kind:        kind,
		ReferenceID: referenceID,
		Amount:      amount,
		GatewayRef:  gatewayRef,
		Reason:      reason,
	}, true
}

// WebhookEventStatus tracks the outbox state of a recorded event.
type WebhookEventStatus string

const (
	WebhookEventPending  WebhookEventStatus = "pending"
	WebhookEventApplied  WebhookEventStatus = "applied"
	WebhookEventFailed   WebhookEventStatus = "failed"   // retried by the sweep
	WebhookEventRejected WebhookEventStatus = "rejected" // never retried
)

// ProcessedWebhookEvent is the dedup row plus the stored command.
type ProcessedWebhookEvent struct {
	EventID    string             `json:"event_id"`
	Channel    WebhookChannel     `json:"channel"`
	EventType  GatewayEventType   `json:"event_type"`
	Command    Command            `json:"command"`
	Status     WebhookEventStatus `json:"status"`
	Attempts   int                `json:"attempts"`
	LastError  *string            `json:"last_error,omitempty"`
	ReceivedAt time.Time          `json:"received_at"`
	AppliedAt  *time.Time         `json:"applied_at,omitempty"`
	UpdatedAt  time.Time          `json:"updated_at"`
}
