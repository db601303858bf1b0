package handler

import (
	"context"

	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WithdrawalHandler exposes the payout state machine.
type WithdrawalHandler struct {
	payoutSvc ports.PayoutService
}

func NewWithdrawalHandler(payoutSvc ports.PayoutService) *WithdrawalHandler {
	return &WithdrawalHandler{payoutSvc: payoutSvc}
}

// Create handles POST /api/v1/withdrawals.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req dto.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	w, err := h.payoutSvc.RequestWithdrawal(c.Request.Context(), p.UserID, req.Amount, uuid.MustParse(req.BankAccountID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, w)
}

// Get handles GET /api/v1/withdrawals/:id.
func (h *WithdrawalHandler) Get(c *gin.Context) {
	w, ok := h.authorizedWithdrawal(c)
	if !ok {
		return
	}
	response.OK(c, w)
}

// Approve handles POST /api/v1/withdrawals/:id/approve (admin).
func (h *WithdrawalHandler) Approve(c *gin.Context) {
	h.transition(c, h.payoutSvc.Approve)
}

// Hold handles POST /api/v1/withdrawals/:id/hold (admin).
func (h *WithdrawalHandler) Hold(c *gin.Context) {
	h.transition(c, h.payoutSvc.Hold)
}

// Submit handles POST /api/v1/withdrawals/:id/submit (admin).
func (h *WithdrawalHandler) Submit(c *gin.Context) {
	h.transition(c, h.payoutSvc.SubmitToGateway)
}

// Reject handles POST /api/v1/withdrawals/:id/reject (admin).
func (h *WithdrawalHandler) Reject(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.RejectWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	w, err := h.payoutSvc.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, w)
}

// Retry handles POST /api/v1/withdrawals/:id/retry. Sellers may re-submit
// their own failed requests.
func (h *WithdrawalHandler) Retry(c *gin.Context) {
	w, ok := h.authorizedWithdrawal(c)
	if !ok {
		return
	}
	retried, err := h.payoutSvc.Retry(c.Request.Context(), w.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, retried)
}

func (h *WithdrawalHandler) transition(c *gin.Context, fn func(context.Context, uuid.UUID) (*domain.WithdrawalRequest, error)) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	w, err := fn(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, w)
}

func (h *WithdrawalHandler) authorizedWithdrawal(c *gin.Context) (*domain.WithdrawalRequest, bool) {
	p, ok := principal(c)
	if !ok {
		return nil, false
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return nil, false
	}
	w, err := h.payoutSvc.GetWithdrawal(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if !p.CanActFor(w.SellerID) {
		response.Error(c, apperror.ErrNotFound("Withdrawal request"))
		return nil, false
	}
	return w, true
}
