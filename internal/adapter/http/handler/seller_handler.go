package handler

import (
	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
)

// SellerHandler serves balance, ledger and withdrawal history reads.
type SellerHandler struct {
	ledgerSvc ports.LedgerQueryService
	payoutSvc ports.PayoutService
}

func NewSellerHandler(ledgerSvc ports.LedgerQueryService, payoutSvc ports.PayoutService) *SellerHandler {
	return &SellerHandler{ledgerSvc: ledgerSvc, payoutSvc: payoutSvc}
}

// GetBalance handles GET /api/v1/sellers/:id/balance.
func (h *SellerHandler) GetBalance(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	sellerID, ok := uuidParam(c, "id")
	if !ok || !authorizeOwner(c, p, sellerID) {
		return
	}

	bal, err := h.ledgerSvc.GetBalance(c.Request.Context(), sellerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.BalanceResponse{
		SellerID:         sellerID.String(),
		AvailableBalance: bal.Available,
		HeldBalance:      bal.HeldBalance(),
	})
}

// ListLedger handles GET /api/v1/sellers/:id/ledger.
func (h *SellerHandler) ListLedger(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	sellerID, ok := uuidParam(c, "id")
	if !ok || !authorizeOwner(c, p, sellerID) {
		return
	}
	q, ok := pageQuery(c)
	if !ok {
		return
	}

	entries, err := h.ledgerSvc.ListLedger(c.Request.Context(), sellerID, q.Limit, q.Offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, entries, q.Limit, q.Offset, len(entries))
}

// ListWithdrawals handles GET /api/v1/sellers/:id/withdrawals.
func (h *SellerHandler) ListWithdrawals(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	sellerID, ok := uuidParam(c, "id")
	if !ok || !authorizeOwner(c, p, sellerID) {
		return
	}
	q, ok := pageQuery(c)
	if !ok {
		return
	}

	list, err := h.payoutSvc.ListWithdrawals(c.Request.Context(), sellerID, q.Limit, q.Offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, list, q.Limit, q.Offset, len(list))
}

// AuditBalance handles GET /api/v1/sellers/:id/balance/audit (admin).
func (h *SellerHandler) AuditBalance(c *gin.Context) {
	sellerID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	audit, err := h.ledgerSvc.VerifySellerBalance(c.Request.Context(), sellerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, audit)
}

// LedgerTotals handles GET /api/v1/ledger/totals (admin).
func (h *SellerHandler) LedgerTotals(c *gin.Context) {
	totals, err := h.ledgerSvc.LedgerTotals(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, totals)
}
