package service

import (
	"testing"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispute_ApproveAfterWithdrawalCreatesDebt(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	order := h.paidOrder(seller, 2000, "software")
	require.Equal(t, int64(1800), order.SellerEarning)

	account := h.primaryAccount(seller)
	w, err := h.payouts.RequestWithdrawal(h.ctx, seller, 1800, account.ID)
	require.NoError(t, err)
	_, err = h.payouts.Approve(h.ctx, w.ID)
	require.NoError(t, err)
	w, err = h.payouts.SubmitToGateway(h.ctx, w.ID)
	require.NoError(t, err)
	h.process(domain.ChannelPayout, map[string]any{
		"eventId": "evt_paid", "eventType": "payout.processed", "referenceId": w.PayoutReference(), "amount": 1800,
	})
	require.Zero(t, h.balance(seller).Available)

	dispute, err := h.disputes.OpenDispute(h.ctx, order.ID, order.BuyerID, "file was corrupted")
	require.NoError(t, err)
	require.NoError(t, h.disputes.ApproveDispute(h.ctx, dispute.ID))

	b := h.balance(seller)
	assert.Zero(t, b.Available)
	assert.Equal(t, int64(-1800), b.HeldBalance())

	refunded, err := h.orderSvc.GetOrderStatus(h.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRefunded, refunded)
	paid, err := h.orderSvc.IsOrderPaid(h.ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, paid)

	platform := h.entries(testPlatformID)
	require.Len(t, platform, 2)
	assert.Equal(t, domain.LedgerDisputeReversal, platform[0].Kind)
	assert.Equal(t, int64(-200), platform[0].Amount)

	h.earn(seller, 500)
	b = h.balance(seller)
	assert.Zero(t, b.Available)
	assert.Equal(t, int64(-1300), b.HeldBalance())
	h.requireConsistent(seller)

	assert.Subset(t, h.notifier.types(), []domain.NotificationType{
		domain.NotifyDisputeOpened, domain.NotifyDisputeApproved, domain.NotifyOrderRefunded,
	})
}

func TestDispute_ApproveWithAvailableFunds(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	h.earn(seller, 5000)
	order := h.paidOrder(seller, 1000, "software")

	dispute, err := h.disputes.OpenDispute(h.ctx, order.ID, order.BuyerID, "wrong item")
	require.NoError(t, err)
	require.NoError(t, h.disputes.ApproveDispute(h.ctx, dispute.ID))

	b := h.balance(seller)
	assert.Equal(t, int64(5000), b.Available)
	assert.Zero(t, b.HeldBalance())
	h.requireConsistent(seller)

	got, err := h.disputes.GetDispute(h.ctx, dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeApproved, got.Status)
	require.NotNil(t, got.ResolvedAt)

	err = h.disputes.ApproveDispute(h.ctx, dispute.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition("", "", ""))
	assert.Equal(t, int64(5000), h.balance(seller).Available)
}

func TestDispute_OpenPreconditions(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()

	unpaid := h.newOrder(seller, 1000, "software")
	_, err := h.disputes.OpenDispute(h.ctx, unpaid.ID, unpaid.BuyerID, "never arrived")
	assert.ErrorIs(t, err, apperror.ErrOrderNotPaid())

	order := h.paidOrder(seller, 1000, "software")
	_, err = h.disputes.OpenDispute(h.ctx, order.ID, uuid.New(), "not mine")
	assert.ErrorIs(t, err, apperror.ErrNotFound(""))

	_, err = h.disputes.OpenDispute(h.ctx, order.ID, order.BuyerID, "  ")
	assert.ErrorIs(t, err, apperror.Validation(""))

	_, err = h.disputes.OpenDispute(h.ctx, order.ID, order.BuyerID, "broken")
	require.NoError(t, err)
	_, err = h.disputes.OpenDispute(h.ctx, order.ID, order.BuyerID, "broken again")
	assert.ErrorIs(t, err, apperror.ErrDisputeAlreadyOpen())
}

func TestDispute_RejectKeepsBalance(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	order := h.paidOrder(seller, 1000, "software")

	dispute, err := h.disputes.OpenDispute(h.ctx, order.ID, order.BuyerID, "changed my mind")
	require.NoError(t, err)
	require.NoError(t, h.disputes.RejectDispute(h.ctx, dispute.ID, "digital goods are final"))

	got, err := h.disputes.GetDispute(h.ctx, dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DisputeRejected, got.Status)
	require.NotNil(t, got.AdminNote)
	assert.Equal(t, "digital goods are final", *got.AdminNote)
	assert.Equal(t, int64(900), h.balance(seller).Available)

	status, err := h.orderSvc.GetOrderStatus(h.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, status)
}
