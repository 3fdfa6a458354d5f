package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/liliang-cn/chatsupervisor/internal/api/dashboard"
	"github.com/liliang-cn/chatsupervisor/internal/api/middleware"
	"github.com/liliang-cn/chatsupervisor/internal/events"
	"github.com/liliang-cn/chatsupervisor/internal/metrics"
	"github.com/liliang-cn/chatsupervisor/internal/service"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	AllowOrigins []string
	Logger       *zap.Logger
}

// SetupRouter sets up the Gin router
func SetupRouter(
	supervisorService *service.SupervisorService,
	broker *events.Broker,
	cfg RouterConfig,
) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/metrics", metrics.Handler())

	// Dashboard API
	dashboardHandler := dashboard.NewHandler(supervisorService, broker, logger)
	apiGroup := r.Group("/api")
	dashboardHandler.RegisterRoutes(apiGroup)

	return r
}
