package service

import (
	"fmt"
	"testing"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// approvedWithdrawal funds the seller, registers a primary account and
// approves a request for amount.
func approvedWithdrawal(h *harness, seller uuid.UUID, funds, amount int64) *domain.WithdrawalRequest {
	h.t.Helper()
	h.earn(seller, funds)
	account := h.primaryAccount(seller)
	w, err := h.payouts.RequestWithdrawal(h.ctx, seller, amount, account.ID)
	require.NoError(h.t, err)
	w, err = h.payouts.Approve(h.ctx, w.ID)
	require.NoError(h.t, err)
	return w
}

func TestPayout_RequestAndPaidWebhook(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	h.earn(seller, 10000)
	account := h.primaryAccount(seller)

	w, err := h.payouts.RequestWithdrawal(h.ctx, seller, 4000, account.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalRequested, w.Status)

	b := h.balance(seller)
	assert.Equal(t, int64(6000), b.Available)
	assert.Equal(t, int64(4000), b.HeldBalance())

	_, err = h.payouts.Approve(h.ctx, w.ID)
	require.NoError(t, err)
	w, err = h.payouts.SubmitToGateway(h.ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalProcessing, w.Status)
	require.NotNil(t, w.GatewayPayoutRef)

	reqs := h.gateway.payoutRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, w.ID.String(), reqs[0].IdempotencyKey)
	assert.Equal(t, "001122334455", reqs[0].Destination.AccountNumber)
	assert.Equal(t, "HDFC0001234", reqs[0].Destination.IFSC)

	res := h.process(domain.ChannelPayout, map[string]any{
		"eventId":     "evt_payout_1",
		"eventType":   "payout.processed",
		"referenceId": w.PayoutReference(),
		"amount":      4000,
		"payoutId":    *w.GatewayPayoutRef,
	})
	assert.Equal(t, domain.WebhookEventApplied, res.Status)

	b = h.balance(seller)
	assert.Equal(t, int64(6000), b.Available)
	assert.Equal(t, int64(0), b.HeldBalance())

	entries := h.entries(seller)
	require.NotEmpty(t, entries)
	assert.Equal(t, domain.LedgerPayoutDebit, entries[0].Kind)
	assert.Equal(t, int64(-4000), entries[0].Amount)
	assert.Equal(t, domain.WithdrawalPaid, h.withdrawal(w.ID).Status)
	h.requireConsistent(seller)

	assert.Subset(t, h.notifier.types(), []domain.NotificationType{
		domain.NotifyPayoutRequested, domain.NotifyPayoutApproved, domain.NotifyPayoutProcessing, domain.NotifyPayoutPaid,
	})
}

func TestPayout_RequestValidation(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	h.earn(seller, 1000)
	account := h.primaryAccount(seller)

	_, err := h.payouts.RequestWithdrawal(h.ctx, seller, 1001, account.ID)
	assert.ErrorIs(t, err, apperror.ErrInsufficientBalance())

	_, err = h.payouts.RequestWithdrawal(h.ctx, seller, 0, account.ID)
	assert.ErrorIs(t, err, apperror.Validation(""))

	unverified, err := h.banks.Register(h.ctx, ports.RegisterBankAccountRequest{
		OwnerID: seller, HolderName: "Asha Rao", AccountNumber: "999988887777", IFSC: "SBIN0000001",
	})
	require.NoError(t, err)
	_, err = h.payouts.RequestWithdrawal(h.ctx, seller, 100, unverified.ID)
	assert.ErrorIs(t, err, apperror.ErrAccountNotVerified())

	other := h.primaryAccount(uuid.New())
	_, err = h.payouts.RequestWithdrawal(h.ctx, seller, 100, other.ID)
	assert.ErrorIs(t, err, apperror.ErrAccountNotVerified())

	assert.Equal(t, int64(1000), h.balance(seller).Available)
}

func TestPayout_RejectReleasesHold(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	h.earn(seller, 5000)
	account := h.primaryAccount(seller)

	w, err := h.payouts.RequestWithdrawal(h.ctx, seller, 3000, account.ID)
	require.NoError(t, err)
	w, err = h.payouts.Reject(h.ctx, w.ID, "kyc pending")
	require.NoError(t, err)

	assert.Equal(t, domain.WithdrawalRejected, w.Status)
	require.NotNil(t, w.FailureReason)
	assert.Equal(t, "kyc pending", *w.FailureReason)
	assert.Equal(t, int64(5000), h.balance(seller).Available)
	assert.Zero(t, h.balance(seller).HeldBalance())

	_, err = h.payouts.Approve(h.ctx, w.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition("", "", ""))
}

func TestPayout_HoldReturnsToRequested(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	w := approvedWithdrawal(h, seller, 1000, 600)

	w, err := h.payouts.Hold(h.ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalRequested, w.Status)
	assert.Equal(t, int64(600), h.balance(seller).HeldBalance())

	_, err = h.payouts.SubmitToGateway(h.ctx, w.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition("", "", ""))
	assert.Empty(t, h.gateway.payoutRequests())
}

func TestPayout_ApprovePaidIsRejected(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	h.gateway.payoutState = ports.PayoutStateProcessed
	w := approvedWithdrawal(h, seller, 1000, 1000)

	w, err := h.payouts.SubmitToGateway(h.ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalPaid, w.Status)

	_, err = h.payouts.Approve(h.ctx, w.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition("", "", ""))
	h.requireConsistent(seller)
}

func TestPayout_GatewayRejectionFailsAndReleases(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	w := approvedWithdrawal(h, seller, 2000, 1500)
	h.gateway.payoutErr = fmt.Errorf("%w: invalid ifsc", domain.ErrGatewayRejected)

	_, err := h.payouts.SubmitToGateway(h.ctx, w.ID)
	assert.ErrorIs(t, err, apperror.ErrGatewayPermanentFailure(nil))

	got := h.withdrawal(w.ID)
	assert.Equal(t, domain.WithdrawalFailed, got.Status)
	require.NotNil(t, got.FailureReason)
	assert.Equal(t, int64(2000), h.balance(seller).Available)

	// Retry re-reserves and bumps the attempt, which changes the gateway key.
	got, err = h.payouts.Retry(h.ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalRequested, got.Status)
	assert.Equal(t, 2, got.Attempt)
	assert.Equal(t, int64(500), h.balance(seller).Available)

	_, err = h.payouts.Approve(h.ctx, w.ID)
	require.NoError(t, err)
	got, err = h.payouts.SubmitToGateway(h.ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalProcessing, got.Status)

	reqs := h.gateway.payoutRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, w.ID.String()+"-r2", reqs[1].IdempotencyKey)
	h.requireConsistent(seller)
}

func TestPayout_TimeoutThenReconcile(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	w := approvedWithdrawal(h, seller, 3000, 3000)
	h.gateway.payoutErr = fmt.Errorf("%w: read deadline", domain.ErrGatewayTimeout)

	_, err := h.payouts.SubmitToGateway(h.ctx, w.ID)
	assert.ErrorIs(t, err, apperror.ErrGatewayTimeout(nil))

	got := h.withdrawal(w.ID)
	assert.Equal(t, domain.WithdrawalProcessing, got.Status)
	assert.Nil(t, got.GatewayPayoutRef)
	assert.Equal(t, int64(3000), h.balance(seller).HeldBalance())

	// Too early: nothing is stale yet.
	n, err := h.payouts.Reconcile(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, h.gateway.payoutRequests(), 1)

	h.advance(31 * time.Minute)
	n, err = h.payouts.Reconcile(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	reqs := h.gateway.payoutRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, reqs[0].IdempotencyKey, reqs[1].IdempotencyKey)

	got = h.withdrawal(w.ID)
	require.NotNil(t, got.GatewayPayoutRef)
	h.gateway.setStatus(*got.GatewayPayoutRef, ports.PayoutStateProcessed)

	h.advance(31 * time.Minute)
	n, err = h.payouts.Reconcile(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.WithdrawalPaid, h.withdrawal(w.ID).Status)
	assert.Zero(t, h.balance(seller).HeldBalance())
	h.requireConsistent(seller)
}

func TestPayout_ReconcileFailedReleases(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	w := approvedWithdrawal(h, seller, 800, 800)

	w, err := h.payouts.SubmitToGateway(h.ctx, w.ID)
	require.NoError(t, err)
	h.gateway.setStatus(*w.GatewayPayoutRef, ports.PayoutStateFailed)

	h.advance(time.Hour)
	n, err := h.payouts.Reconcile(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.WithdrawalFailed, h.withdrawal(w.ID).Status)
	assert.Equal(t, int64(800), h.balance(seller).Available)
}

func TestPayout_ReversedAfterPaid(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	h.gateway.payoutState = ports.PayoutStateProcessed
	w := approvedWithdrawal(h, seller, 1200, 1000)

	w, err := h.payouts.SubmitToGateway(h.ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, domain.WithdrawalPaid, w.Status)
	assert.Equal(t, int64(200), h.balance(seller).Available)

	payload := map[string]any{
		"eventId":       "evt_rev_1",
		"eventType":     "payout.reversed",
		"referenceId":   w.PayoutReference(),
		"amount":        1000,
		"failureReason": "beneficiary account closed",
	}
	res := h.process(domain.ChannelPayout, payload)
	assert.Equal(t, domain.WebhookEventApplied, res.Status)

	got := h.withdrawal(w.ID)
	assert.Equal(t, domain.WithdrawalFailed, got.Status)
	assert.Equal(t, int64(1200), h.balance(seller).Available)
	assert.Equal(t, domain.LedgerPayoutReversal, h.entries(seller)[0].Kind)
	h.requireConsistent(seller)

	// A second reversal with a new event id changes nothing.
	payload["eventId"] = "evt_rev_2"
	h.process(domain.ChannelPayout, payload)
	assert.Equal(t, int64(1200), h.balance(seller).Available)
}

func TestPayout_StaleAttemptEventIgnored(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	w := approvedWithdrawal(h, seller, 1000, 1000)
	h.gateway.payoutErr = fmt.Errorf("%w: closed", domain.ErrGatewayRejected)
	_, err := h.payouts.SubmitToGateway(h.ctx, w.ID)
	require.Error(t, err)

	firstRef := h.withdrawal(w.ID).PayoutReference()
	_, err = h.payouts.Retry(h.ctx, w.ID)
	require.NoError(t, err)

	res := h.process(domain.ChannelPayout, map[string]any{
		"eventId":     "evt_old_attempt",
		"eventType":   "payout.failed",
		"referenceId": firstRef,
		"amount":      1000,
	})
	assert.Equal(t, domain.WebhookEventApplied, res.Status)

	got := h.withdrawal(w.ID)
	assert.Equal(t, domain.WithdrawalRequested, got.Status)
	assert.Equal(t, int64(1000), h.balance(seller).HeldBalance())
}

func TestPayout_DestinationMismatch(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	w := approvedWithdrawal(h, seller, 1000, 500)

	second, err := h.banks.Register(h.ctx, ports.RegisterBankAccountRequest{
		OwnerID: seller, HolderName: "Asha Rao", AccountNumber: "555566667777", IFSC: "ICIC0000001",
	})
	require.NoError(t, err)
	require.NoError(t, h.banks.Verify(h.ctx, second.ID))
	require.NoError(t, h.banks.SetPrimary(h.ctx, seller, second.ID))

	_, err = h.payouts.SubmitToGateway(h.ctx, w.ID)
	assert.ErrorIs(t, err, apperror.ErrDestinationMismatch())
	assert.Equal(t, domain.WithdrawalApproved, h.withdrawal(w.ID).Status)
	assert.Empty(t, h.gateway.payoutRequests())
}

func TestPayout_ExpireStaleRequests(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	h.earn(seller, 900)
	account := h.primaryAccount(seller)

	old, err := h.payouts.RequestWithdrawal(h.ctx, seller, 400, account.ID)
	require.NoError(t, err)
	h.advance(6 * 24 * time.Hour)
	fresh, err := h.payouts.RequestWithdrawal(h.ctx, seller, 300, account.ID)
	require.NoError(t, err)

	h.advance(2 * 24 * time.Hour)
	n, err := h.payouts.ExpireStaleRequests(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := h.withdrawal(old.ID)
	assert.Equal(t, domain.WithdrawalRejected, got.Status)
	require.NotNil(t, got.FailureReason)
	assert.Equal(t, "expired", *got.FailureReason)
	assert.Equal(t, domain.WithdrawalRequested, h.withdrawal(fresh.ID).Status)

	b := h.balance(seller)
	assert.Equal(t, int64(600), b.Available)
	assert.Equal(t, int64(300), b.HeldBalance())
}

func TestPayout_ListWithdrawals(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	h.earn(seller, 900)
	account := h.primaryAccount(seller)

	for i := 0; i < 3; i++ {
		_, err := h.payouts.RequestWithdrawal(h.ctx, seller, 100, account.ID)
		require.NoError(t, err)
		h.advance(time.Minute)
	}

	list, err := h.payouts.ListWithdrawals(h.ctx, seller, 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))

	_, err = h.payouts.GetWithdrawal(h.ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound(""))
}
