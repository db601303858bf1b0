package service

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CommissionPolicy resolves the platform rate for a sale. A category
// override wins over the global rate.
type CommissionPolicy struct {
	global     decimal.Decimal
	byCategory map[string]decimal.Decimal
}

// NewCommissionPolicy builds a policy. Category keys are case-insensitive.
func NewCommissionPolicy(global decimal.Decimal, overrides map[string]decimal.Decimal) *CommissionPolicy {
	byCategory := make(map[string]decimal.Decimal, len(overrides))
	for category, rate := range overrides {
		byCategory[normalizeCategory(category)] = rate
	}
	return &CommissionPolicy{global: global, byCategory: byCategory}
}

// RateFor returns the rate applied to a sale in category.
func (p *CommissionPolicy) RateFor(category string) decimal.Decimal {
	if rate, ok := p.byCategory[normalizeCategory(category)]; ok {
		return rate
	}
	return p.global
}

// Split returns the platform fee and seller earning for a gross amount.
// The fee is rounded half away from zero to a whole minor unit; the seller
// gets the exact remainder so the two always sum to gross.
func (p *CommissionPolicy) Split(gross int64, category string) (fee int64, earning int64) {
	fee = decimal.NewFromInt(gross).Mul(p.RateFor(category)).Round(0).IntPart()
	return fee, gross - fee
}

func normalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}
