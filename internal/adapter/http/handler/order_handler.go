package handler

import (
	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OrderHandler handles checkout, order reads and dispute opening.
type OrderHandler struct {
	orderSvc   ports.OrderService
	disputeSvc ports.DisputeService
}

func NewOrderHandler(orderSvc ports.OrderService, disputeSvc ports.DisputeService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc, disputeSvc: disputeSvc}
}

// CreateOrder handles POST /api/v1/orders.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	order, err := h.orderSvc.CreateOrder(c.Request.Context(), p.UserID, uuid.MustParse(req.ProductID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, order)
}

// GetOrder handles GET /api/v1/orders/:id.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, ok := h.authorizedOrder(c)
	if !ok {
		return
	}
	response.OK(c, order)
}

// GetStatus handles GET /api/v1/orders/:id/status.
func (h *OrderHandler) GetStatus(c *gin.Context) {
	order, ok := h.authorizedOrder(c)
	if !ok {
		return
	}
	status, err := h.orderSvc.GetOrderStatus(c.Request.Context(), order.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.OrderStatusResponse{OrderID: order.ID.String(), Status: string(status)})
}

// IsPaid handles GET /api/v1/orders/:id/paid.
func (h *OrderHandler) IsPaid(c *gin.Context) {
	order, ok := h.authorizedOrder(c)
	if !ok {
		return
	}
	paid, err := h.orderSvc.IsOrderPaid(c.Request.Context(), order.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.OrderPaidResponse{OrderID: order.ID.String(), Paid: paid})
}

// OpenDispute handles POST /api/v1/orders/:id/disputes.
func (h *OrderHandler) OpenDispute(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.OpenDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	dispute, err := h.disputeSvc.OpenDispute(c.Request.Context(), orderID, p.UserID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dispute)
}

// authorizedOrder loads the order for its buyer, its seller or an admin.
func (h *OrderHandler) authorizedOrder(c *gin.Context) (*domain.Order, bool) {
	p, ok := principal(c)
	if !ok {
		return nil, false
	}
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return nil, false
	}

	order, err := h.orderSvc.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if !p.CanActFor(order.BuyerID) && !p.CanActFor(order.SellerID) {
		response.Error(c, apperror.ErrNotFound("Order"))
		return nil, false
	}
	return order, true
}
