package handler

import (
	"io"

	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/adapter/http/middleware"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
)

// WebhookHandler receives gateway event deliveries.
type WebhookHandler struct {
	ingress ports.IngressService
}

func NewWebhookHandler(ingress ports.IngressService) *WebhookHandler {
	return &WebhookHandler{ingress: ingress}
}

// Payment handles POST /webhooks/payment.
func (h *WebhookHandler) Payment(c *gin.Context) {
	h.receive(c, domain.ChannelPayment)
}

// Payout handles POST /webhooks/payout.
func (h *WebhookHandler) Payout(c *gin.Context) {
	h.receive(c, domain.ChannelPayout)
}

// receive answers 200 once the event is durably recorded, duplicates
// included. Only signature and payload errors are rejected so the gateway
// stops redelivering events that can never apply.
func (h *WebhookHandler) receive(c *gin.Context, channel domain.WebhookChannel) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.ErrInvalidPayload("cannot read request body"))
		return
	}

	result, err := h.ingress.Process(c.Request.Context(), channel, body, c.GetHeader(middleware.HeaderGatewaySignature))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WebhookAckResponse{
		EventID:   result.EventID,
		Duplicate: result.Duplicate,
		Status:    string(result.Status),
	})
}
