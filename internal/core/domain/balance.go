package domain

import (
	"time"

	"github.com/google/uuid"
)

// SellerBalance is the cached aggregate over a seller's ledger.
//
// Reserved holds withdrawals in flight. Debt is the unrecovered part of a
// dispute reversal that the available balance could not absorb. The held
// balance reported to callers is Reserved - Debt, so a pure debt reads as a
// negative hold. Available + HeldBalance() always equals the ledger sum.
type SellerBalance struct {
	SellerID  uuid.UUID `json:"seller_id"`
	Available int64     `json:"available_balance"`
	Reserved  int64     `json:"reserved_balance"`
	Debt      int64     `json:"debt_balance"`
	Version   int64     `json:"version"` // 0 until first persisted
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSellerBalance returns an unpersisted empty balance.
func NewSellerBalance(sellerID uuid.UUID) *SellerBalance {
	return &SellerBalance{SellerID: sellerID}
}

// HeldBalance is reserved funds net of dispute debt.
func (b *SellerBalance) HeldBalance() int64 {
	return b.Reserved - b.Debt
}

// LedgerBalance is what the ledger sum must equal.
func (b *SellerBalance) LedgerBalance() int64 {
	return b.Available + b.HeldBalance()
}

// Credit adds money owed to the seller, paying down debt first.
func (b *SellerBalance) Credit(amount int64) {
	repay := min(b.Debt, amount)
	b.Debt -= repay
	b.Available += amount - repay
}

// Reserve moves amount from available into the withdrawal hold.
func (b *SellerBalance) Reserve(amount int64) error {
	if amount <= 0 {
		return ErrNonPositiveAmount
	}
	if amount > b.Available {
		return ErrInsufficientFunds
	}
	b.Available -= amount
	b.Reserved += amount
	return nil
}

// Release returns a withdrawal hold to the seller.
func (b *SellerBalance) Release(amount int64) error {
	if amount > b.Reserved {
		return ErrHoldUnderflow
	}
	b.Reserved -= amount
	b.Credit(amount)
	return nil
}

// ConsumeHold permanently removes a paid-out withdrawal hold.
func (b *SellerBalance) ConsumeHold(amount int64) error {
	if amount > b.Reserved {
		return ErrHoldUnderflow
	}
	b.Reserved -= amount
	return nil
}

// Reverse claws back amount. Whatever available cannot cover becomes debt;
// available never goes negative.
func (b *SellerBalance) Reverse(amount int64) {
	taken := min(b.Available, amount)
	b.Available -= taken
	b.Debt += amount - taken
}
