package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// BankAccount is a payout destination.
type BankAccount struct {
	ID                  uuid.UUID  `json:"id"`
	OwnerID             uuid.UUID  `json:"owner_id"`
	HolderName          string     `json:"holder_name"`
	AccountNumberEnc    string     `json:"-"` // AES-256-GCM, never exposed
	AccountNumberMasked string     `json:"account_number_masked"`
	IFSC                string     `json:"ifsc"`
	IsPrimary           bool       `json:"is_primary"`
	IsVerified          bool       `json:"is_verified"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	DeletedAt           *time.Time `json:"-"`
}

// UsableFor reports whether a withdrawal by ownerID may target this account.
func (a *BankAccount) UsableFor(ownerID uuid.UUID) bool {
	return a.OwnerID == ownerID && a.IsVerified && a.DeletedAt == nil
}

// MaskAccountNumber keeps the last four digits.
func MaskAccountNumber(number string) string {
	number = strings.TrimSpace(number)
	if len(number) <= 4 {
		return strings.Repeat("X", len(number))
	}
	return strings.Repeat("X", len(number)-4) + number[len(number)-4:]
}
