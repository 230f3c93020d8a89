package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"learnauth/docs"
	"learnauth/internal/config"
	"learnauth/internal/handler"
	"learnauth/internal/model"
	"learnauth/internal/service"
)

// Roles allowed on the admin group.
var adminRoles = model.NewRoleSet(model.RoleAdmin, model.RoleSuperAdmin)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	logger *slog.Logger,
	guard service.Guard,
	authHandler *handler.AuthHandler,
	oauthHandler *handler.OAuthHandler,
	userHandler *handler.UserHandler,
	adminHandler *handler.AdminHandler,
) {
	e.Use(middleware.RequestID())
	e.Use(RequestLogger(logger))
	e.Use(middleware.Recover())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/auth/oauth/:provider/start", oauthHandler.Start)
	api.GET("/auth/oauth/:provider/callback", oauthHandler.Callback)

	// Secured routes (require an active user behind a valid bearer token)
	secured := api.Group("", Bearer(guard))

	secured.GET("/users/me", userHandler.Me)
	secured.PUT("/users/me/password", userHandler.ChangePassword)

	admin := secured.Group("/admin", RequireRoles(guard, adminRoles))
	admin.GET("/stats", adminHandler.Stats)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
