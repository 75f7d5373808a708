package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rechnung/server/internal/logger"
)

// Controllers groups everything the router serves
type Controllers struct {
	Health   *HealthController
	Auth     *AuthController
	Company  *CompanyController
	Invoices *InvoiceController
	WS       *WSController
}

// RouterConfig carries the cross-cutting pieces of the router
type RouterConfig struct {
	Log         *zap.Logger
	Auth        TokenParser
	Metrics     *Metrics
	CORSOrigins []string
}

// SetupRouter builds the gin engine. Probe and stream paths are left out of the request log.
func SetupRouter(cfg RouterConfig, ctrl Controllers) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware(cfg.CORSOrigins))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
		r.GET("/metrics", cfg.Metrics.Handler())
	}
	r.Use(logger.GinMiddleware(log, "/api/health", "/metrics", "/api/ws"))

	api := r.Group("/api")
	api.GET("/health", ctrl.Health.Health)
	if ctrl.WS != nil {
		api.GET("/ws", ctrl.WS.ServeWS)
	}

	requireAuth := AuthMiddleware(cfg.Auth)

	admin := api.Group("/admin")
	{
		admin.POST("/login", ctrl.Auth.Login)
		admin.POST("/change-credentials", requireAuth, ctrl.Auth.ChangeCredentials)
	}

	api.GET("/company", ctrl.Company.Get)
	api.PUT("/company", requireAuth, ctrl.Company.Update)

	invoices := api.Group("/invoices")
	{
		invoices.GET("", ctrl.Invoices.List)
		invoices.GET("/export.xlsx", ctrl.Invoices.Export)
		invoices.POST("", ctrl.Invoices.Create)
		invoices.GET("/:id", ctrl.Invoices.Get)
		invoices.PUT("/:id", ctrl.Invoices.Update)
		invoices.DELETE("/:id", ctrl.Invoices.Delete)
		invoices.GET("/:id/pdf", ctrl.Invoices.PDF)
		invoices.GET("/:id/print", ctrl.Invoices.Print)
	}

	return r
}
