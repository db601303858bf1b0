package handler

import (
	"marketplace-settlement/internal/adapter/http/middleware"
	redisStore "marketplace-settlement/internal/adapter/storage/redis"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const maxRequestBody = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	IngressSvc      ports.IngressService
	OrderSvc        ports.OrderService
	DisputeSvc      ports.DisputeService
	PayoutSvc       ports.PayoutService
	BankAccountSvc  ports.BankAccountService
	LedgerSvc       ports.LedgerQueryService
	TokenSvc        ports.TokenService
	AuditSvc        ports.AuditService         // nil = audit logging disabled
	RateLimitStore  *redisStore.RateLimitStore // nil = rate limiting disabled
	MetricsGatherer prometheus.Gatherer        // nil = /metrics disabled
	HealthCheckers  []ports.HealthChecker
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxRequestBody))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsGatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.MetricsGatherer, promhttp.HandlerOpts{})))
	}

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// --- Gateway webhooks (signature-authenticated by the ingress service) ---
	webhookHandler := NewWebhookHandler(deps.IngressSvc)
	webhooks := r.Group("/webhooks", rl("webhooks"))
	{
		webhooks.POST("/payment", webhookHandler.Payment)
		webhooks.POST("/payout", webhookHandler.Payout)
	}

	// --- Internal API (JWT principal from the auth layer) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	admin := middleware.RequireRole(domain.RoleAdmin)
	v1 := r.Group("/api/v1", jwtAuth)
	if deps.AuditSvc != nil {
		v1.Use(middleware.AuditLog(deps.AuditSvc))
	}

	orderHandler := NewOrderHandler(deps.OrderSvc, deps.DisputeSvc)
	orders := v1.Group("/orders")
	{
		orders.POST("", middleware.RequireRole(domain.RoleBuyer), rl("checkout"), orderHandler.CreateOrder)
		orders.GET("/:id", rl("reads"), orderHandler.GetOrder)
		orders.GET("/:id/status", rl("reads"), orderHandler.GetStatus)
		orders.GET("/:id/paid", rl("reads"), orderHandler.IsPaid)
		orders.POST("/:id/disputes", middleware.RequireRole(domain.RoleBuyer), rl("disputes"), orderHandler.OpenDispute)
	}

	disputeHandler := NewDisputeHandler(deps.DisputeSvc)
	disputes := v1.Group("/disputes")
	{
		disputes.GET("/:id", rl("reads"), disputeHandler.Get)
		disputes.POST("/:id/approve", admin, rl("admin"), disputeHandler.Approve)
		disputes.POST("/:id/reject", admin, rl("admin"), disputeHandler.Reject)
	}

	withdrawalHandler := NewWithdrawalHandler(deps.PayoutSvc)
	withdrawals := v1.Group("/withdrawals")
	{
		withdrawals.POST("", middleware.RequireRole(domain.RoleSeller), rl("withdrawals"), withdrawalHandler.Create)
		withdrawals.GET("/:id", rl("reads"), withdrawalHandler.Get)
		withdrawals.POST("/:id/approve", admin, rl("admin"), withdrawalHandler.Approve)
		withdrawals.POST("/:id/reject", admin, rl("admin"), withdrawalHandler.Reject)
		withdrawals.POST("/:id/hold", admin, rl("admin"), withdrawalHandler.Hold)
		withdrawals.POST("/:id/submit", admin, rl("admin"), withdrawalHandler.Submit)
		withdrawals.POST("/:id/retry", rl("withdrawals"), withdrawalHandler.Retry)
	}

	sellerHandler := NewSellerHandler(deps.LedgerSvc, deps.PayoutSvc)
	sellers := v1.Group("/sellers/:id")
	{
		sellers.GET("/balance", rl("reads"), sellerHandler.GetBalance)
		sellers.GET("/balance/audit", admin, rl("admin"), sellerHandler.AuditBalance)
		sellers.GET("/ledger", rl("reads"), sellerHandler.ListLedger)
		sellers.GET("/withdrawals", rl("reads"), sellerHandler.ListWithdrawals)
	}
	v1.GET("/ledger/totals", admin, rl("admin"), sellerHandler.LedgerTotals)

	bankHandler := NewBankAccountHandler(deps.BankAccountSvc)
	bank := v1.Group("/bank-accounts")
	{
		bank.POST("", middleware.RequireRole(domain.RoleSeller), rl("bank_accounts"), bankHandler.Register)
		bank.GET("", rl("reads"), bankHandler.List)
		bank.PUT("/:id/primary", rl("bank_accounts"), bankHandler.SetPrimary)
		bank.DELETE("/:id", rl("bank_accounts"), bankHandler.Delete)
		bank.POST("/:id/verify", admin, rl("admin"), bankHandler.Verify)
	}

	return r
}
