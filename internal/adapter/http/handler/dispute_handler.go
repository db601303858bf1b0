package handler

import (
	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DisputeHandler handles dispute reads and admin resolution.
type DisputeHandler struct {
	disputeSvc ports.DisputeService
}

func NewDisputeHandler(disputeSvc ports.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputeSvc: disputeSvc}
}

// Get handles GET /api/v1/disputes/:id.
func (h *DisputeHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	d, err := h.disputeSvc.GetDispute(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !p.CanActFor(d.BuyerID) {
		response.Error(c, apperror.ErrNotFound("Dispute"))
		return
	}
	response.OK(c, d)
}

// Approve handles POST /api/v1/disputes/:id/approve (admin).
func (h *DisputeHandler) Approve(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.disputeSvc.ApproveDispute(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	h.respondWithDispute(c, id)
}

// Reject handles POST /api/v1/disputes/:id/reject (admin).
func (h *DisputeHandler) Reject(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.RejectDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	if err := h.disputeSvc.RejectDispute(c.Request.Context(), id, req.Note); err != nil {
		response.Error(c, err)
		return
	}
	h.respondWithDispute(c, id)
}

// respondWithDispute reports the resolved dispute. The resolution has
// committed, so a failed re-read still answers 200.
func (h *DisputeHandler) respondWithDispute(c *gin.Context, id uuid.UUID) {
	d, err := h.disputeSvc.GetDispute(c.Request.Context(), id)
	if err != nil {
		response.OK(c, gin.H{"id": id.String()})
		return
	}
	response.OK(c, d)
}
