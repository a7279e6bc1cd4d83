package v1

import (
	"github.com/gin-gonic/gin"

	"tillcore/internal/core/clock"
	"tillcore/internal/domain/heldsale"
	"tillcore/internal/domain/register"
	"tillcore/internal/domain/sales"
	"tillcore/internal/infrastructure/http/v1/handlers"
	"tillcore/internal/infrastructure/http/v1/middleware"
	"tillcore/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// DB is pinged by the readiness probe
	DB handlers.Pinger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Idempotency stores X-Idempotency-Key responses; nil disables it
	Idempotency middleware.IdempotencyStore

	Clock    clock.Clock
	Gate     *register.Gate
	Register *register.Service
	Sales    *sales.Service
	Holds    *heldsale.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}

	router := gin.New()

	// Order matters: Recovery sits inside ErrorHandler so panics are rendered.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.DB)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.Idempotency != nil {
		v1.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	RegisterRoutes(v1.Group("/register"), handlers.NewRegisterHandler(base, cfg.Register))
	SaleRoutes(v1.Group("/sales"), handlers.NewSaleHandler(base, cfg.Gate, cfg.Sales))
	HoldRoutes(v1.Group("/holds"), handlers.NewHoldHandler(base, cfg.Gate, cfg.Holds, cfg.Sales, cfg.Clock))

	return router
}
