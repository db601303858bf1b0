package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerKind classifies a money movement.
type LedgerKind string

const (
	LedgerSaleGross          LedgerKind = "sale_gross"
	LedgerPlatformCommission LedgerKind = "platform_commission"
	LedgerSellerEarning      LedgerKind = "seller_earning"
	LedgerDisputeReversal    LedgerKind = "dispute_reversal"
	LedgerPayoutDebit        LedgerKind = "payout_debit"
	LedgerPayoutReversal     LedgerKind = "payout_reversal"
)

// AffectsBalance is false for sale_gross, which records the gross of a sale
// for reporting and is excluded from every owner's balance.
func (k LedgerKind) AffectsBalance() bool {
	return k != LedgerSaleGross
}

// LedgerEntry is an immutable signed money movement. Corrections are new rows.
type LedgerEntry struct {
	ID        uuid.UUID  `json:"id"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
	PayoutID  *uuid.UUID `json:"payout_id,omitempty"`
	OwnerID   uuid.UUID  `json:"owner_id"`
	Kind      LedgerKind `json:"kind"`
	Amount    int64      `json:"amount"`
	CreatedAt time.Time  `json:"created_at"`
}

// OrderEntry builds a ledger row tied to an order.
func OrderEntry(orderID, ownerID uuid.UUID, kind LedgerKind, amount int64, now time.Time) LedgerEntry {
	return LedgerEntry{
		ID:        uuid.New(),
		OrderID:   &orderID,
		OwnerID:   ownerID,
		Kind:      kind,
		Amount:    amount,
		CreatedAt: now,
	}
}

// PayoutEntry builds a ledger row tied to a withdrawal request.
func PayoutEntry(payoutID, ownerID uuid.UUID, kind LedgerKind, amount int64, now time.Time) LedgerEntry {
	return LedgerEntry{
		ID:        uuid.New(),
		PayoutID:  &payoutID,
		OwnerID:   ownerID,
		Kind:      kind,
		Amount:    amount,
		CreatedAt: now,
	}
}

// LedgerTotals is the sum of amounts per kind across all owners.
type LedgerTotals map[LedgerKind]int64

// Conserved reports whether commission plus earnings equal gross sales.
func (t LedgerTotals) Conserved() bool {
	return t[LedgerSellerEarning]+t[LedgerPlatformCommission] == t[LedgerSaleGross]
}

// SumBalance adds the balance-affecting entries.
func SumBalance(entries []LedgerEntry) int64 {
	var total int64
	for _, e := range entries {
		if e.Kind.AffectsBalance() {
			total += e.Amount
		}
	}
	return total
}
