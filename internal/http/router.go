package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "nebula-miniapp/docs"
	"nebula-miniapp/internal/common/config"
	apperrors "nebula-miniapp/internal/common/errors"
	"nebula-miniapp/internal/common/middleware"
	catalogHTTP "nebula-miniapp/internal/features/catalog/delivery/http"
	catalogService "nebula-miniapp/internal/features/catalog/service"
	sessionHTTP "nebula-miniapp/internal/features/session/delivery/http"
	sessionService "nebula-miniapp/internal/features/session/service"
)

const serviceName = "nebula-miniapp"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Healthy(ctx context.Context) error
}

// Sessions is the session service as seen by the router.
type Sessions interface {
	sessionService.SessionService
	Active() int
}

type Deps struct {
	Catalog  catalogService.CatalogService
	Sessions Sessions
	Redis    Pinger
	Log      zerolog.Logger
}

// NewRouter builds the gin engine with middleware, health checks, docs and the v1 API.
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler(deps.Log))
	router.Use(middleware.ErrorResponder(deps.Log))
	router.Use(middleware.Logger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{
		"Content-Type", "Accept", "Origin",
		middleware.InitDataHeader, middleware.PlatformHeader, "init_data", "X-Request-ID",
	}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if deps.Redis != nil {
			if err := deps.Redis.Healthy(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unready",
					"error":   "redis unavailable",
					"details": err.Error(),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
			"sessions":  deps.Sessions.Active(),
		})
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.NoRoute(func(c *gin.Context) {
		_ = c.Error(apperrors.NewNotFoundError("route", c.Request.URL.Path))
	})

	v1 := router.Group("/api/v1")
	v1.Use(middleware.TelegramIdentity(cfg.Telegram.BotToken, cfg.Telegram.InitDataTTL, deps.Log))
	v1.Use(middleware.TouchSession(deps.Sessions))
	{
		catalogHTTP.NewCatalogHandler(deps.Catalog, deps.Log).RegisterRoutes(v1)
		sessionHTTP.NewSessionHandler(deps.Sessions).RegisterRoutes(v1)
	}

	return router
}
