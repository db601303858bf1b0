package handler

import (
	"strings"

	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
)

// BankAccountHandler manages payout destinations.
type BankAccountHandler struct {
	bankSvc ports.BankAccountService
}

func NewBankAccountHandler(bankSvc ports.BankAccountService) *BankAccountHandler {
	return &BankAccountHandler{bankSvc: bankSvc}
}

// Register handles POST /api/v1/bank-accounts.
func (h *BankAccountHandler) Register(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req dto.RegisterBankAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	account, err := h.bankSvc.Register(c.Request.Context(), ports.RegisterBankAccountRequest{
		OwnerID:       p.UserID,
		HolderName:    strings.TrimSpace(req.HolderName),
		AccountNumber: strings.TrimSpace(req.AccountNumber),
		IFSC:          req.IFSC,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, account)
}

// List handles GET /api/v1/bank-accounts.
func (h *BankAccountHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	accounts, err := h.bankSvc.List(c.Request.Context(), p.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, accounts)
}

// SetPrimary handles PUT /api/v1/bank-accounts/:id/primary.
func (h *BankAccountHandler) SetPrimary(c *gin.Context) {
	account, ok := h.ownedAccount(c)
	if !ok {
		return
	}
	if err := h.bankSvc.SetPrimary(c.Request.Context(), account.OwnerID, account.ID); err != nil {
		response.Error(c, err)
		return
	}
	account.IsPrimary = true
	response.OK(c, account)
}

// Delete handles DELETE /api/v1/bank-accounts/:id.
func (h *BankAccountHandler) Delete(c *gin.Context) {
	account, ok := h.ownedAccount(c)
	if !ok {
		return
	}
	if err := h.bankSvc.Delete(c.Request.Context(), account.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": account.ID.String(), "deleted": true})
}

// Verify handles POST /api/v1/bank-accounts/:id/verify (admin).
func (h *BankAccountHandler) Verify(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.bankSvc.Verify(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	account, err := h.bankSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, account)
}

func (h *BankAccountHandler) ownedAccount(c *gin.Context) (*domain.BankAccount, bool) {
	p, ok := principal(c)
	if !ok {
		return nil, false
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return nil, false
	}
	account, err := h.bankSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if !p.CanActFor(account.OwnerID) {
		response.Error(c, apperror.ErrNotFound("Bank account"))
		return nil, false
	}
	return account, true
}
