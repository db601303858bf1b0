package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
}

// auditedRoutes maps "METHOD route-pattern" to the recorded action.
var auditedRoutes = map[string]auditRoute{
	"POST /api/v1/withdrawals":              {domain.AuditWithdrawalRequest, "withdrawal"},
	"POST /api/v1/withdrawals/:id/approve":  {domain.AuditWithdrawalApprove, "withdrawal"},
	"POST /api/v1/withdrawals/:id/reject":   {domain.AuditWithdrawalReject, "withdrawal"},
	"POST /api/v1/withdrawals/:id/hold":     {domain.AuditWithdrawalHold, "withdrawal"},
	"POST /api/v1/withdrawals/:id/submit":   {domain.AuditWithdrawalSubmit, "withdrawal"},
	"POST /api/v1/withdrawals/:id/retry":    {domain.AuditWithdrawalRetry, "withdrawal"},
	"POST /api/v1/orders/:id/disputes":      {domain.AuditDisputeOpen, "order"},
	"POST /api/v1/disputes/:id/approve":     {domain.AuditDisputeApprove, "dispute"},
	"POST /api/v1/disputes/:id/reject":      {domain.AuditDisputeReject, "dispute"},
	"POST /api/v1/bank-accounts":            {domain.AuditBankAccountAdd, "bank_account"},
	"POST /api/v1/bank-accounts/:id/verify": {domain.AuditBankAccountVerify, "bank_account"},
	"PUT /api/v1/bank-accounts/:id/primary": {domain.AuditSetPrimary, "bank_account"},
	"DELETE /api/v1/bank-accounts/:id":      {domain.AuditBankAccountRemove, "bank_account"},
}

// AuditLog records successful audited writes after the handler has run.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		route, ok := auditedRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		entry := &domain.AuditLog{
			ID:           uuid.New(),
			Action:       route.action,
			ResourceType: route.resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now().UTC(),
		}
		if p, ok := PrincipalFrom(c); ok {
			actor := p.UserID
			entry.ActorID = &actor
			entry.ActorRole = p.Role
		}
		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": status,
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}
