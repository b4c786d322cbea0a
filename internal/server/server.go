// Package server implements the employd identity provider API: the
// concrete auth gateway for self-hosted deployments, plus the guarded
// dashboard endpoints the front end consumes.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/employd-dev/employd/internal/auth"
	"github.com/employd-dev/employd/internal/authz"
	"github.com/employd-dev/employd/internal/config"
	"github.com/employd-dev/employd/internal/guard"
	"github.com/employd-dev/employd/internal/models"
	"github.com/employd-dev/employd/internal/routes"
	"github.com/employd-dev/employd/internal/session"
)

// Server represents the HTTP server
type Server struct {
	router      *gin.Engine
	db          *gorm.DB
	config      *config.Config
	logger      zerolog.Logger
	validator   *validator.Validate
	permissions *authz.Table
	cron        *cron.Cron
	version     string
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	db, err := initDatabase(cfg, zlog)
	if err != nil {
		return nil, err
	}

	// Run database migrations
	if err := models.AutoMigrate(db); err != nil {
		return nil, err
	}

	// Initialize JWT authentication. Without a configured secret every
	// restart invalidates all outstanding tokens.
	secret := cfg.Server.JWTSecret
	if secret == "" {
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		secret = hex.EncodeToString(secretBytes)
		zlog.Warn().Msg("JWT_SECRET not set, using an ephemeral secret; sessions will not survive restarts")
	}
	auth.InitializeJWT(secret)

	// Role/permission table: compiled-in defaults, optional YAML override
	permissions := authz.Default()
	if cfg.Authz.PermissionsFile != "" {
		permissions, err = authz.LoadFile(cfg.Authz.PermissionsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load permissions file: %w", err)
		}
		zlog.Info().Str("file", cfg.Authz.PermissionsFile).Msg("Loaded permissions override")
	}

	// Initialize validator
	validate := validator.New()
	validate.RegisterValidation("userrole", func(fl validator.FieldLevel) bool {
		return session.Role(fl.Field().String()).Valid()
	})

	server := &Server{
		db:          db,
		config:      cfg,
		logger:      zlog,
		validator:   validate,
		permissions: permissions,
		version:     version,
	}

	// Periodic purge of expired/revoked provider sessions
	server.cron = cron.New()
	if _, err := server.cron.AddFunc(cfg.Session.CleanupSchedule, server.purgeStaleSessions); err != nil {
		return nil, fmt.Errorf("invalid session cleanup schedule %q: %w", cfg.Session.CleanupSchedule, err)
	}

	// Setup router
	server.setupRouter()

	return server, nil
}

// initDatabase initializes the database connection with production settings
func initDatabase(cfg *config.Config, zlog zerolog.Logger) (*gorm.DB, error) {
	const (
		maxOpenConns    = 8
		maxIdleConns    = 4
		connMaxLifetime = 300 * time.Second
		busyTimeout     = 5000
	)

	db, err := gorm.Open(sqlite.Open(cfg.Database.URL), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				IgnoreRecordNotFoundError: true,
				SlowThreshold:             200 * time.Millisecond,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL mode first for concurrency; the rest tune the single-writer
	// profile this service has
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		"PRAGMA foreign_keys=1",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			zlog.Warn().Str("pragma", pragma).Err(err).Msg("Failed to apply pragma")
		}
	}

	return db, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	corsOrigins := s.config.Server.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:5173"}
	}
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint (no auth required)
	s.router.GET("/health", s.healthCheck)

	// Public auth endpoints (no auth required)
	s.router.POST("/api/setup", s.setupFirstAdmin)
	s.router.POST("/api/auth/login", s.login)
	s.router.GET(routes.Login, s.loginEntry)

	// Authenticated API routes (JWT required)
	api := s.router.Group("/api")
	api.Use(s.GuardMiddleware(guard.Requirement{}))
	{
		api.POST("/auth/logout", s.logout)
		api.GET("/auth/session", s.getSession)
		api.GET("/users/:id", s.getUserProfile)

		// User management (admin only)
		userAdmin := api.Group("/users")
		userAdmin.Use(s.GuardMiddleware(guard.Requirement{RequiredRole: session.RoleAdmin}))
		{
			userAdmin.POST("", s.createUser)
			userAdmin.GET("", s.listUsers)
		}
	}

	// Dashboard data endpoints consumed by the front-end panels
	dashboard := s.router.Group(routes.Dashboard)
	dashboard.Use(s.GuardMiddleware(guard.Requirement{RequiredPermission: authz.PermViewAll}))
	{
		dashboard.GET("", s.getDashboardSummary)
	}
	bank := s.router.Group(routes.Dashboard + "/bank-data")
	bank.Use(s.GuardMiddleware(guard.Requirement{RequiredPermission: authz.PermViewBankData}))
	{
		bank.GET("", s.getBankData)
	}

	// Unmatched paths land on the default authenticated page
	s.router.NoRoute(func(c *gin.Context) {
		c.Redirect(http.StatusFound, routes.Dashboard)
	})
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "employd-api",
	})
}

// loginEntry is the public login route. The browser front end renders
// the form; API callers get a pointer to the login endpoint.
func (s *Server) loginEntry(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"login":   "/api/auth/login",
		"message": "POST email and password to sign in",
	})
}

// purgeStaleSessions deletes expired and revoked provider sessions
func (s *Server) purgeStaleSessions() {
	now := time.Now()
	result := s.db.Where("expires_at < ? OR revoked_at IS NOT NULL", now).Delete(&models.GatewaySession{})
	if result.Error != nil {
		s.logger.Error().Err(result.Error).Msg("Session purge failed")
		return
	}
	if result.RowsAffected > 0 {
		s.logger.Info().Int64("purged", result.RowsAffected).Msg("Purged stale provider sessions")
	}
}

// Router exposes the configured router for handler tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until shutdown
func (s *Server) Start() error {
	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              s.config.Server.ListenAddr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       300 * time.Second,
	}

	s.cron.Start()

	// Start server in goroutine
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	cronCtx := s.cron.Stop()
	<-cronCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	// Close database connection to flush WAL writes
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Error closing database")
		}
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
