// File: internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"auth_api/internal/auth"
	"auth_api/internal/common"
	"auth_api/internal/config"
	"auth_api/internal/jobs"
	"auth_api/internal/middleware"
	"auth_api/internal/platform/database"
	"auth_api/internal/user"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const readyPingTimeout = 2 * time.Second

// Server struct holds the dependencies for the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
	logger     *zap.Logger

	// Jobs
	tokenCleanupJob *jobs.TokenCleanupJob
}

// NewServer creates a new instance of our application server.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	authService auth.Service,
	authHandler *auth.Handler,
	userHandler *user.Handler,
	tokenCleanupJob *jobs.TokenCleanupJob,
) (*Server, error) {
	if err := common.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.HandleMethodNotAllowed = true

	// --- Global Middleware ---
	router.Use(middleware.ZapLogger(logger, cfg))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg)))
	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	mwLogger := logger.Named("AuthMiddleware")
	accessMW := middleware.AuthMiddleware(authService, auth.TokenTypeAccess, mwLogger)
	refreshMW := middleware.AuthMiddleware(authService, auth.TokenTypeRefresh, mwLogger)

	// --- Setup Routes ---
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "auth_api is healthy!"})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyPingTimeout)
		defer cancel()
		if err := database.Ping(ctx, db); err != nil {
			logger.Warn("Readiness check failed", zap.Error(err))
			common.RespondWithError(c, common.ErrServiceUnavailable.WithDetails("Database is not reachable."))
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "READY"})
	})

	v1 := router.Group("/api/v1")
	authHandler.RegisterRoutes(v1, accessMW, refreshMW)
	userHandler.RegisterRoutes(v1, user.RouteGuards{
		Access:      accessMW,
		Admin:       middleware.RequireAdmin(),
		UserOrAdmin: middleware.UserOrAdmin("user_uuid"),
	})

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer:      httpServer,
		router:          router,
		cfg:             cfg,
		logger:          logger,
		tokenCleanupJob: tokenCleanupJob,
	}, nil
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.DefaultConfig()
	origins := cfg.AllowedOrigins()
	if len(origins) == 1 && origins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsCfg.ExposeHeaders = []string{"Content-Length", middleware.RequestIDHeader}
	return corsCfg
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	if s.tokenCleanupJob != nil {
		if err := s.tokenCleanupJob.SetupAndStart(); err != nil {
			s.logger.Error("Failed to setup and start token cleanup job", zap.Error(err))
		}
	}

	s.logger.Info("HTTP Server starting",
		zap.String("address", s.httpServer.Addr),
		zap.String("gin_mode", s.cfg.GinMode),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP Server stopped")
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Attempting graceful server shutdown...")
	if s.tokenCleanupJob != nil {
		s.tokenCleanupJob.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
