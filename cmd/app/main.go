package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"nebula-miniapp/internal/common/cache"
	"nebula-miniapp/internal/common/config"
	"nebula-miniapp/internal/common/logger"
	catalogService "nebula-miniapp/internal/features/catalog/service"
	sessionService "nebula-miniapp/internal/features/session/service"
	"nebula-miniapp/internal/features/session/syncloop"
	apphttp "nebula-miniapp/internal/http"
	"nebula-miniapp/internal/platform/backend"
	"nebula-miniapp/internal/platform/redis"
)

// @title           Nebula Mini-App API
// @version         1.0
// @description     Backend-for-frontend for the Nebula Telegram Mini-App catalog. Anonymous callers are served as guests.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey TelegramInitData
// @in header
// @name X-Telegram-Init-Data
// @description Telegram Mini App init data string

// @tag.name catalog
// @tag.description Ranked catalog, detail pages and item actions

// @tag.name session
// @tag.description Profile bootstrap and the per-user sync session

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Init("nebula-miniapp", cfg.Debug)
	logger.Info().
		Bool("debug", cfg.Debug).
		Str("backend", cfg.Backend.BaseURL).
		Msg("Starting Nebula Mini-App backend")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancelOpen := context.WithTimeout(ctx, 5*time.Second)
	rdb, err := redis.Open(openCtx, cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
	cancelOpen()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	cacheService := cache.NewCacheService(rdb)
	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)

	catalogSvc := catalogService.NewCatalogService(catalogService.Config{
		CacheTTL:     cfg.Catalog.CacheTTL,
		SimilarLimit: cfg.Catalog.SimilarLimit,
	}, client, cacheService)

	sessions := sessionService.New(ctx, sessionService.Config{
		IdleTimeout:  cfg.Session.IdleTimeout,
		ReapInterval: cfg.Session.ReapInterval,
		MirrorTTL:    cfg.Session.MirrorTTL,
		Sync: syncloop.Config{
			Interval:           cfg.Sync.Interval,
			MinAccrualInterval: cfg.Sync.MinAccrualInterval,
			AccrualUnit:        cfg.Sync.AccrualUnit,
			RequestTimeout:     cfg.Sync.RequestTimeout,
			MaxBackoff:         cfg.Sync.MaxBackoff,
		},
	}, sessionService.Deps{
		Backend: client,
		Catalog: catalogSvc,
		Mirror:  cacheService,
	})
	go sessions.RunReaper(ctx)

	router := apphttp.NewRouter(cfg, apphttp.Deps{
		Catalog:  catalogSvc,
		Sessions: sessions,
		Redis:    rdb,
		Log:      logger.With("http"),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	sessions.Shutdown(shutdownCtx)

	logger.Info().Msg("Server exited")
}
