package domain

import (
	"time"

	"github.com/google/uuid"
)

type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeApproved DisputeStatus = "approved"
	DisputeRejected DisputeStatus = "rejected"
)

// Dispute is a buyer claim against a paid order. Resolution is all-or-nothing.
type Dispute struct {
	ID         uuid.UUID     `json:"id"`
	OrderID    uuid.UUID     `json:"order_id"`
	BuyerID    uuid.UUID     `json:"buyer_id"`
	Reason     string        `json:"reason"`
	Status     DisputeStatus `json:"status"`
	AdminNote  *string       `json:"admin_note,omitempty"`
	Version    int64         `json:"version"`
	CreatedAt  time.Time     `json:"created_at"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}

func NewDispute(orderID, buyerID uuid.UUID, reason string, now time.Time) *Dispute {
	return &Dispute{
		ID:        uuid.New(),
		OrderID:   orderID,
		BuyerID:   buyerID,
		Reason:    reason,
		Status:    DisputeOpen,
		Version:   1,
		CreatedAt: now,
	}
}

// Resolve closes an open dispute.
func (d *Dispute) Resolve(next DisputeStatus, note *string, now time.Time) error {
	if d.Status != DisputeOpen || next == DisputeOpen {
		return &TransitionError{Entity: "dispute", From: string(d.Status), To: string(next)}
	}
	d.Status = next
	d.AdminNote = note
	d.ResolvedAt = &now
	return nil
}
