package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"bailian-gateway/internal/api"
	"bailian-gateway/internal/api/controllers"
	"bailian-gateway/internal/config"
	"bailian-gateway/internal/database"
	"bailian-gateway/internal/logger"
	"bailian-gateway/internal/metrics"
	"bailian-gateway/internal/middleware"
	"bailian-gateway/internal/repository"
	"bailian-gateway/internal/services"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Logger.WithError(err).Fatal("Failed to load configuration")
	}
	logger.Init(cfg.Logging)

	// Initialize database connection
	db, err := database.InitDB(cfg.Database, cfg.Admin)
	if err != nil {
		logger.Logger.WithError(err).Fatal("Failed to connect to database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Shared store for the rate limiter and the token denylist
	var (
		cache          services.CacheService
		rateLimitStore services.RateLimitStore
		redisClient    *redis.Client
	)
	switch cfg.Cache.Backend {
	case config.CacheBackendMemory:
		logger.Logger.Warn("Using in-process cache; rate limits and revocations are not shared between instances")
		cache = services.NewMemoryCacheService()
		rateLimitStore = services.NewMemoryRateLimitStore()
	default:
		redisClient, err = services.NewRedisClient(ctx, cfg.Cache)
		if err != nil {
			logger.Logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		cache = services.NewRedisCacheService(redisClient)
		rateLimitStore = services.NewRedisRateLimitStore(redisClient)
	}

	registry, err := services.LoadModelRegistry(cfg.Upstream.ModelRegistryFile)
	if err != nil {
		logger.Logger.WithError(err).Fatal("Failed to load model registry")
	}

	m := metrics.New()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	apiCallRepo := repository.NewAPICallRepository(db)
	auditLogRepo := repository.NewAuditLogRepository(db)

	// Initialize services
	auditLogService := services.NewAuditLogService(auditLogRepo)
	tokenService := services.NewTokenService(cfg.Auth, cache)
	authService := services.NewAuthService(userRepo, tokenService, auditLogService)
	usageService := services.NewUsageService(apiCallRepo)
	conversationService := services.NewConversationService(conversationRepo, messageRepo)
	proxy := services.NewUpstreamProxy(cfg.Upstream)
	gatewayService := services.NewGatewayService(registry, proxy, usageService, conversationRepo, m, cfg.Upstream)

	if !proxy.APIKeyConfigured() {
		logger.Logger.Warn("QWEN_API_KEY is not set; upstream calls will fail")
	}

	var mediaService services.MediaService
	if cfg.Media.Bucket != "" {
		store, err := services.NewS3MediaStore(cfg.Media)
		if err != nil {
			logger.Logger.WithError(err).Fatal("Failed to initialize media storage")
		}
		mediaService = services.NewMediaService(store, cfg.Media.MaxUploadBytes)
	}

	router := api.SetupRoutes(api.Dependencies{
		AuthService:         authService,
		AuditLogService:     auditLogService,
		ConversationService: conversationService,
		GatewayService:      gatewayService,
		UsageService:        usageService,
		MediaService:        mediaService,
		MaxUploadBytes:      cfg.Media.MaxUploadBytes,
		RateLimiter:         middleware.NewRateLimiter(services.NewRateLimiter(rateLimitStore), cfg.RateLimit, m),
		Health:              controllers.NewHealthController(db, cache),
		Metrics:             m,
	})

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Correlation-ID",
		},
		ExposedHeaders: []string{
			"X-Correlation-ID",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
		},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})

	// Create server with timeouts
	srv := &http.Server{
		Handler:      corsMiddleware.Handler(router),
		Addr:         ":" + cfg.Server.Port,
		WriteTimeout: cfg.Server.WriteTimeout,
		ReadTimeout:  cfg.Server.ReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.LogEvent(logrus.InfoLevel, "Server starting", logrus.Fields{
			"port":   cfg.Server.Port,
			"models": registry.Names(),
			"cache":  cfg.Cache.Backend,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if redisClient != nil {
			redisClient.Close()
		}
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Logger.WithError(err).Fatal("Server stopped with error")
	}
	logger.Logger.Info("Server stopped")
}
