package service

import (
	"testing"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettle_PaidSplitsCommission(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()

	order := h.paidOrder(seller, 2000, "software")

	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.Equal(t, int64(200), order.PlatformFee)
	assert.Equal(t, int64(1800), order.SellerEarning)
	require.NotNil(t, order.SettledAt)
	require.NotNil(t, order.GatewayPaymentRef)

	assert.Equal(t, int64(1800), h.balance(seller).Available)

	platform := h.entries(testPlatformID)
	require.Len(t, platform, 1)
	assert.Equal(t, domain.LedgerPlatformCommission, platform[0].Kind)
	assert.Equal(t, int64(200), platform[0].Amount)

	sellerEntries := h.entries(seller)
	require.Len(t, sellerEntries, 2)
	kinds := []domain.LedgerKind{sellerEntries[0].Kind, sellerEntries[1].Kind}
	assert.ElementsMatch(t, []domain.LedgerKind{domain.LedgerSaleGross, domain.LedgerSellerEarning}, kinds)

	totals, err := h.query.LedgerTotals(h.ctx)
	require.NoError(t, err)
	assert.True(t, totals.Conserved())
	h.requireConsistent(seller)
	assert.Contains(t, h.notifier.types(), domain.NotifyOrderPaid)
}

func TestSettle_CategoryOverride(t *testing.T) {
	h := newHarness(t)
	order := h.paidOrder(uuid.New(), 999, "EBooks")

	// 5% of 999 rounds half away from zero.
	assert.Equal(t, int64(50), order.PlatformFee)
	assert.Equal(t, int64(949), order.SellerEarning)
}

func TestSettle_SecondCallIsNoOp(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	order := h.paidOrder(seller, 2000, "software")

	require.NoError(t, h.settlement.Settle(h.ctx, order.ID, domain.OutcomePaid, "pay_again"))
	require.NoError(t, h.settlement.Settle(h.ctx, order.ID, domain.OutcomeFailed, ""))

	got, err := h.orderSvc.GetOrder(h.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, got.Status)
	assert.Len(t, h.entries(seller), 2)
	assert.Equal(t, int64(1800), h.balance(seller).Available)
}

func TestSettle_Failed(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	order := h.newOrder(seller, 500, "software")

	require.NoError(t, h.settlement.Settle(h.ctx, order.ID, domain.OutcomeFailed, ""))

	got, err := h.orderSvc.GetOrder(h.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFailed, got.Status)
	assert.Empty(t, h.entries(seller))
	assert.Zero(t, h.balance(seller).Available)

	paid, err := h.orderSvc.IsOrderPaid(h.ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, paid)
}

func TestSettle_Errors(t *testing.T) {
	h := newHarness(t)

	err := h.settlement.Settle(h.ctx, uuid.New(), domain.OutcomePaid, "")
	assert.ErrorIs(t, err, apperror.ErrNotFound("Order"))

	order := h.newOrder(uuid.New(), 100, "software")
	err = h.settlement.Settle(h.ctx, order.ID, domain.SettlementOutcome("refunded"), "")
	assert.ErrorIs(t, err, apperror.Validation(""))
}
