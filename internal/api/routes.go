package api

import (
	"net/http"

	"bailian-gateway/internal/api/controllers"
	"bailian-gateway/internal/api/handlers"
	"bailian-gateway/internal/api/response"
	"bailian-gateway/internal/metrics"
	"bailian-gateway/internal/middleware"
	"bailian-gateway/internal/services"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
)

// Dependencies are the services the router needs. main builds them once.
type Dependencies struct {
	AuthService         services.AuthService
	AuditLogService     services.AuditLogService
	ConversationService services.ConversationService
	GatewayService      services.GatewayService
	UsageService        services.UsageService
	MediaService        services.MediaService // nil disables uploads
	MaxUploadBytes      int64
	RateLimiter         *middleware.RateLimiter
	Health              *controllers.HealthController
	Metrics             *metrics.Metrics
}

func SetupRoutes(deps Dependencies) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = middleware.CorrelationMiddleware(http.HandlerFunc(notFound))
	router.MethodNotAllowedHandler = middleware.CorrelationMiddleware(http.HandlerFunc(methodNotAllowed))

	router.Use(middleware.CorrelationMiddleware)
	router.Use(middleware.RecoveryMiddleware)
	router.Use(middleware.LoggingMiddleware(deps.Metrics))

	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.Metrics)
	gatewayHandler := handlers.NewGatewayHandler(deps.GatewayService)
	conversationHandler := handlers.NewConversationHandler(deps.ConversationService)
	usageHandler := handlers.NewUsageHandler(deps.UsageService)
	adminHandler := handlers.NewAdminHandler(deps.AuthService, deps.AuditLogService)

	// Probes and metrics
	router.HandleFunc("/health", deps.Health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/live", deps.Health.Live).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", deps.Health.Ready).Methods(http.MethodGet)
	router.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(chimiddleware.AllowContentType("application/json", "multipart/form-data"))

	// Public routes
	apiRouter.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost)
	apiRouter.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)
	apiRouter.HandleFunc("/auth/refresh", authHandler.Refresh).Methods(http.MethodPost)

	// Protected routes
	protected := apiRouter.NewRoute().Subrouter()
	protected.Use(middleware.AuthMiddleware(deps.AuthService))

	protected.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)
	protected.HandleFunc("/auth/user", authHandler.GetUser).Methods(http.MethodGet)
	protected.HandleFunc("/auth/user", authHandler.UpdateUser).Methods(http.MethodPut)

	protected.HandleFunc("/bailian/models/status", gatewayHandler.ModelsStatus).Methods(http.MethodGet)

	protected.HandleFunc("/conversations", conversationHandler.CreateConversation).Methods(http.MethodPost)
	protected.HandleFunc("/conversations", conversationHandler.ListConversations).Methods(http.MethodGet)
	protected.HandleFunc("/conversations/{id:[0-9]+}", conversationHandler.GetConversation).Methods(http.MethodGet)
	protected.HandleFunc("/conversations/{id:[0-9]+}", conversationHandler.UpdateConversation).Methods(http.MethodPut)
	protected.HandleFunc("/conversations/{id:[0-9]+}", conversationHandler.DeleteConversation).Methods(http.MethodDelete)
	protected.HandleFunc("/conversations/{id:[0-9]+}/messages", conversationHandler.CreateMessage).Methods(http.MethodPost)
	protected.HandleFunc("/conversations/{id:[0-9]+}/messages", conversationHandler.ListMessages).Methods(http.MethodGet)

	protected.HandleFunc("/usage", usageHandler.GetCurrentUsage).Methods(http.MethodGet)
	protected.HandleFunc("/usage/calls", usageHandler.ListCalls).Methods(http.MethodGet)

	if deps.MediaService != nil {
		uploadHandler := handlers.NewFileUploadHandler(deps.MediaService, deps.MaxUploadBytes)
		protected.HandleFunc("/media/upload", uploadHandler.Upload).Methods(http.MethodPost)
	}

	// Upstream proxy routes are rate limited per identity and route
	limited := protected.PathPrefix("/bailian").Subrouter()
	limited.Use(deps.RateLimiter.RateLimit)

	limited.HandleFunc("/chat/completions", gatewayHandler.ChatCompletions).Methods(http.MethodPost)
	limited.HandleFunc("/multimodal", gatewayHandler.Multimodal).Methods(http.MethodPost)
	limited.HandleFunc("/generation", gatewayHandler.Generation).Methods(http.MethodPost)

	// Admin routes
	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AdminMiddleware())

	admin.HandleFunc("/users/{id}/roles", adminHandler.UpdateUserRoles).Methods(http.MethodPut)
	admin.HandleFunc("/audit-logs", adminHandler.ListAuditLogs).Methods(http.MethodGet)

	return chimiddleware.RealIP(router)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	response.ErrorMessage(w, r, http.StatusNotFound, "Not found")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	response.ErrorMessage(w, r, http.StatusMethodNotAllowed, "Method not allowed")
}
