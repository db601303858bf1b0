package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WithdrawalStatus is a state of the payout state machine.
type WithdrawalStatus string

const (
	WithdrawalRequested  WithdrawalStatus = "requested"
	WithdrawalApproved   WithdrawalStatus = "approved"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalPaid       WithdrawalStatus = "paid"
	WithdrawalFailed     WithdrawalStatus = "failed"
	WithdrawalRejected   WithdrawalStatus = "rejected"
)

var withdrawalEdges = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalRequested:  {WithdrawalApproved, WithdrawalRejected},
	WithdrawalApproved:   {WithdrawalProcessing, WithdrawalRequested},
	WithdrawalProcessing: {WithdrawalPaid, WithdrawalFailed},
	WithdrawalPaid:       {WithdrawalFailed}, // payout reversed by the bank
	WithdrawalFailed:     {WithdrawalRequested},
}

// CanTransitionTo reports whether next is a legal edge from s.
func (s WithdrawalStatus) CanTransitionTo(next WithdrawalStatus) bool {
	for _, allowed := range withdrawalEdges[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// HoldsFunds is true while the amount sits in the seller's reserved balance.
func (s WithdrawalStatus) HoldsFunds() bool {
	return s == WithdrawalRequested || s == WithdrawalApproved || s == WithdrawalProcessing
}

// WithdrawalRequest is a seller's ask to cash out.
type WithdrawalRequest struct {
	ID               uuid.UUID        `json:"id"`
	SellerID         uuid.UUID        `json:"seller_id"`
	Amount           int64            `json:"amount"`
	Status           WithdrawalStatus `json:"status"`
	BankAccountID    uuid.UUID        `json:"bank_account_id"`
	GatewayPayoutRef *string          `json:"gateway_payout_ref,omitempty"`
	FailureReason    *string          `json:"failure_reason,omitempty"`
	Attempt          int              `json:"attempt"`
	Version          int64            `json:"version"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	SubmittedAt      *time.Time       `json:"submitted_at,omitempty"`
	ResolvedAt       *time.Time       `json:"resolved_at,omitempty"`
}

// NewWithdrawalRequest builds a request in the requested state.
func NewWithdrawalRequest(sellerID, bankAccountID uuid.UUID, amount int64, now time.Time) *WithdrawalRequest {
	return &WithdrawalRequest{
		ID:            uuid.New(),
		SellerID:      sellerID,
		Amount:        amount,
		Status:        WithdrawalRequested,
		BankAccountID: bankAccountID,
		Attempt:       1,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Transition moves the request to next or returns a *TransitionError.
func (w *WithdrawalRequest) Transition(next WithdrawalStatus, now time.Time) error {
	if !w.Status.CanTransitionTo(next) {
		return &TransitionError{Entity: "withdrawal", From: string(w.Status), To: string(next)}
	}
	switch next {
	case WithdrawalProcessing:
		w.SubmittedAt = &now
	case WithdrawalPaid, WithdrawalFailed, WithdrawalRejected:
		w.ResolvedAt = &now
	case WithdrawalRequested:
		if w.Status == WithdrawalFailed {
			w.Attempt++
			w.GatewayPayoutRef = nil
			w.FailureReason = nil
			w.SubmittedAt = nil
			w.ResolvedAt = nil
		}
	}
	w.Status = next
	w.UpdatedAt = now
	return nil
}

// PayoutReference is the idempotency key sent to the payout gateway. A retry
// after a timeout reuses it; a re-submission after failure gets a new one.
func (w *WithdrawalRequest) PayoutReference() string {
	if w.Attempt <= 1 {
		return w.ID.String()
	}
	return fmt.Sprintf("%s-r%d", w.ID, w.Attempt)
}

// ParsePayoutReference splits a reference built by PayoutReference.
func ParsePayoutReference(ref string) (uuid.UUID, int, error) {
	idPart, attemptPart, retried := strings.Cut(ref, "-r")
	id, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("payout reference %q: %w", ref, err)
	}
	if !retried {
		return id, 1, nil
	}
	attempt, err := strconv.Atoi(attemptPart)
	if err != nil || attempt < 2 {
		return uuid.Nil, 0, fmt.Errorf("payout reference %q: bad attempt suffix", ref)
	}
	return id, attempt, nil
}
