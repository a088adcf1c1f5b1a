package routes

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"github.com/umoja-exchange/settlement-service/internal/api/handlers"
	"github.com/umoja-exchange/settlement-service/internal/api/middleware"
	"github.com/umoja-exchange/settlement-service/internal/domain/services/deposit"
	"github.com/umoja-exchange/settlement-service/internal/domain/services/monitor"
	"github.com/umoja-exchange/settlement-service/internal/domain/services/treasury"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/config"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
)

// Setup wires the ops API. The surface is read-mostly: deposit and treasury
// lookups for support, plus per-chain listener control for operators.
func Setup(
	db *sql.DB,
	cfg *config.Config,
	depositService *deposit.Service,
	treasuryService *treasury.Service,
	monitorService *monitor.Service,
	log *logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(cfg.Server.RateLimitPerMin))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit())

	coreHandlers := handlers.NewCoreHandlers(db, log)
	depositHandlers := handlers.NewDepositHandlers(depositService, log)
	treasuryHandlers := handlers.NewTreasuryHandlers(treasuryService, log)
	monitorHandlers := handlers.NewMonitorHandlers(monitorService, log)

	// Probes and metrics (no versioning)
	router.GET("/health", coreHandlers.Health)
	router.GET("/ready", coreHandlers.Ready)
	router.GET("/live", coreHandlers.Live)
	router.GET("/metrics", coreHandlers.Metrics)

	v1 := router.Group("/api/v1")
	{
		deposits := v1.Group("/deposits")
		{
			deposits.GET("", depositHandlers.ListDeposits)
			deposits.GET("/:txHash", depositHandlers.GetDeposit)
		}

		treasuryGroup := v1.Group("/treasury")
		{
			treasuryGroup.GET("/balances", treasuryHandlers.GetBalances)
			treasuryGroup.GET("/history", treasuryHandlers.GetHistory)
		}

		monitorGroup := v1.Group("/monitor")
		{
			monitorGroup.GET("/status", monitorHandlers.Status)
			monitorGroup.POST("/chains/:chain/start", monitorHandlers.StartChain)
			monitorGroup.POST("/chains/:chain/stop", monitorHandlers.StopChain)
		}
	}

	return router
}
