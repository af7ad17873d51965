// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"dairyflow/internal/app"
	"dairyflow/internal/domain/auth"
	"dairyflow/internal/infrastructure/http/v1/handlers"
	"dairyflow/internal/infrastructure/http/v1/middleware"
	"dairyflow/internal/observability/metrics"
	"dairyflow/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Binder attaches the tenant store named by X-Tenant-ID to each request
	Binder middleware.TenantBinder

	// Services is the billing core
	Services *app.Services

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for operator tokens
	JWTValidator middleware.JWTValidator

	// Gateway verifies the payment gateway key; nil disables callbacks
	Gateway middleware.KeyVerifier

	// Idempotency stores keyed responses; nil disables replay
	Idempotency middleware.IdempotencyStore

	// Health serves the ops probes
	Health *handlers.HealthHandler
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	if cfg.Health != nil {
		health := router.Group("/health")
		{
			health.GET("/live", cfg.Health.Live)
			health.GET("/ready", cfg.Health.Ready)
			health.GET("/info", cfg.Health.Info)
		}
	}
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	base := handlers.NewBaseHandler()
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Tenant(cfg.Binder))

	// Payment gateway: tenant + gateway key, no operator token.
	callbacks := v1.Group("/payments")
	callbacks.Use(middleware.Gateway(cfg.Gateway))
	if cfg.Idempotency != nil {
		callbacks.Use(middleware.Idempotency(cfg.Idempotency))
	}
	registerCallbackRoutes(callbacks, base, cfg.Services)

	protected := v1.Group("")
	protected.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.Idempotency != nil {
		protected.Use(middleware.Idempotency(cfg.Idempotency))
	}
	registerBillingRoutes(protected, base, cfg.Services)
	registerPaymentRoutes(protected, base, cfg.Services)
	registerDeliveryRoutes(protected, base, cfg.Services)

	return router
}

func registerBillingRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc *app.Services) {
	billing := handlers.NewBillingHandler(base, svc.Billing)
	overdue := handlers.NewOverdueHandler(base, svc.Overdue)

	rg.POST("/billing/generate", middleware.RequireRole(auth.RoleAccountant), billing.Generate)

	bills := rg.Group("/bills")
	{
		bills.POST("", middleware.RequireRole(auth.RoleAccountant), billing.Create)
		bills.GET("", billing.ListByPeriod)
		bills.GET("/overdue", overdue.List)
		bills.GET("/:id", billing.Get)
	}
	rg.GET("/clients/:id/bills", billing.ListByClient)
}

func registerPaymentRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc *app.Services) {
	payments := handlers.NewPaymentHandler(base, svc.Payments)

	bills := rg.Group("/bills/:id")
	{
		bills.POST("/pay", middleware.RequireRole(auth.RoleAccountant, auth.RoleOperator), payments.MarkPaid)
		bills.POST("/unpay", middleware.RequireRole(auth.RoleAdmin, auth.RoleAccountant), payments.MarkUnpaid)
	}
}

func registerCallbackRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc *app.Services) {
	payments := handlers.NewPaymentHandler(base, svc.Payments)
	rg.POST("/callback", payments.Callback)
}

func registerDeliveryRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc *app.Services) {
	deliveries := handlers.NewDeliveryHandler(base, svc.Ledger)

	rg.PUT("/deliveries", middleware.RequireRole(auth.RoleOperator, auth.RoleAccountant), deliveries.Record)
	rg.GET("/clients/:id/deliveries", deliveries.ListForClient)
}
