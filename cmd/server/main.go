package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"learnauth/internal/auth"
	"learnauth/internal/cache"
	"learnauth/internal/config"
	"learnauth/internal/db"
	"learnauth/internal/handler"
	"learnauth/internal/logging"
	"learnauth/internal/oauth"
	"learnauth/internal/repository"
	"learnauth/internal/router"
	"learnauth/internal/service"
)

// @title learnauth API
// @version 1.0
// @description Identity and access control: password and federated sign-in, bearer tokens, role checks.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN, db.WithLogger(logger))
	if err != nil {
		log.Fatalf("database init: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer func() { _ = cacheClient.Close() }()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := cacheClient.Ping(pingCtx); err != nil {
		// Password and token routes work without Redis; OAuth sign-in and the stats cache do not.
		logger.Warn("redis unavailable", logging.Error(err))
	}
	cancelPing()

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	eventRepo := repository.NewAuthEventRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret, auth.WithLeeway(cfg.TokenLeeway))
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)

	// Initialize services
	resolver := service.NewIdentityResolver(userRepo, logger)
	events := service.NewEventRecorder(eventRepo, logger)
	authService := service.NewAuthService(userRepo, hasher, jwtService, resolver, events, cfg.AccessTokenTTL, logger)
	userService := service.NewUserService(userRepo, cacheClient, logger)
	guard := service.NewGuard(jwtService, userRepo, logger)

	providers := oauth.NewRegistry(configuredProviders(cfg)...)
	flow := oauth.NewFlow(providers, oauth.NewStateStore(cacheClient, cfg.OAuthStateTTL), authService, logger)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	oauthHandler := handler.NewOAuthHandler(flow, cfg.OAuthFrontendRedirectURL, logger)
	userHandler := handler.NewUserHandler(userService, authService)
	adminHandler := handler.NewAdminHandler(userService)

	e := echo.New()
	e.HideBanner = true

	// Register routes
	router.Register(
		e,
		cfg,
		logger,
		guard,
		authHandler,
		oauthHandler,
		userHandler,
		adminHandler,
	)

	logger.Info("starting server",
		slog.String("port", cfg.ServerPort),
		slog.String("db_driver", cfg.DBDriver),
		slog.Any("oauth_providers", providers.Names()),
		slog.String("swagger", swaggerURL(cfg)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server start: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", logging.Error(err))
	}
	events.Close()
	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func configuredProviders(cfg *config.Config) []oauth.Provider {
	var providers []oauth.Provider
	if cfg.Google.Enabled() {
		providers = append(providers, oauth.NewGoogle(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL))
	}
	if cfg.Microsoft.Enabled() {
		providers = append(providers, oauth.NewMicrosoft(cfg.Microsoft.ClientID, cfg.Microsoft.ClientSecret, cfg.Microsoft.RedirectURL, cfg.MicrosoftTenant))
	}
	return providers
}

func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host + "/swagger/index.html"
}
