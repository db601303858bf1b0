package service

import (
	"testing"

	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBankAccount_RegisterEncryptsAndMasks(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()

	account, err := h.banks.Register(h.ctx, ports.RegisterBankAccountRequest{
		OwnerID:       owner,
		HolderName:    "  Asha Rao ",
		AccountNumber: "001122334455",
		IFSC:          "hdfc0001234",
	})
	require.NoError(t, err)

	assert.Equal(t, "Asha Rao", account.HolderName)
	assert.Equal(t, "HDFC0001234", account.IFSC)
	assert.NotContains(t, account.AccountNumberEnc, "001122334455")
	assert.Equal(t, "XXXXXXXX4455", account.AccountNumberMasked)
	assert.False(t, account.IsVerified)
	assert.False(t, account.IsPrimary)

	_, err = h.banks.Register(h.ctx, ports.RegisterBankAccountRequest{OwnerID: owner, HolderName: "x"})
	assert.ErrorIs(t, err, apperror.Validation(""))
}

func TestBankAccount_PrimaryRequiresVerification(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()

	account, err := h.banks.Register(h.ctx, ports.RegisterBankAccountRequest{
		OwnerID: owner, HolderName: "Asha Rao", AccountNumber: "123456789", IFSC: "SBIN0000001",
	})
	require.NoError(t, err)

	err = h.banks.SetPrimary(h.ctx, owner, account.ID)
	assert.ErrorIs(t, err, apperror.ErrAccountNotVerified())

	_, err = h.banks.GetPrimary(h.ctx, owner)
	assert.ErrorIs(t, err, apperror.ErrNotFound(""))

	require.NoError(t, h.banks.Verify(h.ctx, account.ID))
	err = h.banks.SetPrimary(h.ctx, uuid.New(), account.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound(""))

	require.NoError(t, h.banks.SetPrimary(h.ctx, owner, account.ID))
	require.NoError(t, h.banks.SetPrimary(h.ctx, owner, account.ID))

	primary, err := h.banks.GetPrimary(h.ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, account.ID, primary.ID)
}

func TestBankAccount_SwitchPrimaryKeepsOne(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	first := h.primaryAccount(owner)
	second := h.primaryAccount(owner)

	list, err := h.banks.List(h.ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	primaries := 0
	for _, a := range list {
		if a.IsPrimary {
			primaries++
			assert.Equal(t, second.ID, a.ID)
		}
	}
	assert.Equal(t, 1, primaries)

	require.NoError(t, h.banks.Delete(h.ctx, first.ID))
	list, err = h.banks.List(h.ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestBankAccount_DeleteGuards(t *testing.T) {
	h := newHarness(t)
	seller := uuid.New()
	h.earn(seller, 1000)
	primary := h.primaryAccount(seller)

	err := h.banks.Delete(h.ctx, primary.ID)
	assert.ErrorIs(t, err, apperror.ErrPrimaryAccountProtected())

	// A withdrawal against the old primary keeps it alive after a switch.
	_, err = h.payouts.RequestWithdrawal(h.ctx, seller, 500, primary.ID)
	require.NoError(t, err)
	h.primaryAccount(seller)

	err = h.banks.Delete(h.ctx, primary.ID)
	assert.ErrorIs(t, err, apperror.ErrAccountInUse())

	err = h.banks.Delete(h.ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound(""))
}

func TestBankAccount_DestinationDecrypts(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	account := h.primaryAccount(owner)

	got, dest, err := h.banks.Destination(h.ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
	assert.Equal(t, "001122334455", dest.AccountNumber)
	assert.Equal(t, "Asha Rao", dest.HolderName)
	assert.Equal(t, "HDFC0001234", dest.IFSC)

	_, _, err = h.banks.Destination(h.ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound(""))
}
