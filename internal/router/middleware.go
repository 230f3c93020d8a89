package router

import (
	"errors"
	"log/slog"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	apperrors "learnauth/internal/errors"
	"learnauth/internal/handler"
	"learnauth/internal/logging"
	"learnauth/internal/model"
	"learnauth/internal/service"
)

// Bearer extracts the Authorization bearer token and resolves it through the
// guard. The authenticated *model.User is stored under handler.ContextUserKey.
func Bearer(guard service.Guard) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  handler.ContextUserKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return guard.Authenticate(c.Request().Context(), token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			var extractErr *echojwt.TokenExtractionError
			if errors.As(err, &extractErr) {
				err = apperrors.ErrUnauthenticated
			}
			return handler.MapError(c, err)
		},
	})
}

// RequireRoles rejects requests whose authenticated user holds a role outside allowed.
// It must run after Bearer.
func RequireRoles(guard service.Guard, allowed model.RoleSet) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, _ := c.Get(handler.ContextUserKey).(*model.User)
			if _, err := guard.Authorize(user, allowed); err != nil {
				return handler.MapError(c, err)
			}
			return next(c)
		}
	}
}

// RequestLogger logs one line per request. Only the path is logged so OAuth
// codes and states in the query string stay out of the logs.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	logger = logger.With(logging.Component("http"))
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("path", v.URIPath),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
				slog.String("remote_ip", v.RemoteIP),
			}
			if user, ok := c.Get(handler.ContextUserKey).(*model.User); ok && user != nil {
				attrs = append(attrs, logging.UserID(user.ID))
			}

			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, logging.Error(internalError(v.Error)))
				if v.Status >= 500 {
					level = slog.LevelError
				}
			}
			logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}

func internalError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Internal != nil {
		return he.Internal
	}
	return err
}
