package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"delta-gateway/internal/config"
	"delta-gateway/internal/controller"
	"delta-gateway/internal/logging"
	"delta-gateway/internal/middleware"
	"delta-gateway/internal/security"
	"delta-gateway/internal/service"
	"delta-gateway/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()
	logging.SetDefault(logger)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}

	if cfg.Metrics.Enabled {
		middleware.InitMetrics(nil)
	}

	tableService := service.NewTableService(store, cfg.Engine)
	tableController := controller.NewTableController(tableService)
	healthController := controller.NewHealthController(store, cfg.Storage.Backend)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.PrometheusMiddleware())

	if cfg.Security.EnableRateLimit {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RPM:             cfg.Security.RateLimitPerMinute,
			Burst:           cfg.Security.RateLimitBurst,
			CleanupInterval: 5 * time.Minute,
		})
		defer rateLimiter.Stop()
		router.Use(rateLimiter.RateLimit())
	}

	router.GET("/health", healthController.HealthCheck)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api/v1")
	if cfg.Security.EnableAuth {
		if cfg.Security.JWTSecret == "" {
			logger.Fatal("security.jwt_secret is required when auth is enabled")
		}
		auth := security.NewAuthMiddleware(security.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.JWTExpiration))
		api.Use(auth.RequireAuth(), auth.RequireTableAccess())
	}
	tableController.RegisterRoutes(api)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("addr", srv.Addr),
			zap.String("storage", cfg.Storage.Backend),
			zap.Int("max_reader_version", cfg.Engine.MaxReaderVersion))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}
