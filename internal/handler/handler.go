package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"learnauth/internal/errors"
	"learnauth/internal/model"
)

// ContextUserKey is where the bearer middleware stores the authenticated *model.User.
const ContextUserKey = "user"

// MapError converts a domain error into an echo HTTP error carrying the
// standard error body. Unauthenticated responses advertise the bearer scheme.
func MapError(c echo.Context, err error) *echo.HTTPError {
	mapped := errors.MapErrorToHTTP(err)
	if mapped.StatusCode == http.StatusUnauthorized && mapped.Code == "UNAUTHENTICATED" {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	}
	return echo.NewHTTPError(mapped.StatusCode, mapped.ToErrorResponse()).SetInternal(err)
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_ERROR",
		})
	}
	return nil
}

func currentUser(c echo.Context) (*model.User, error) {
	user, ok := c.Get(ContextUserKey).(*model.User)
	if !ok || user == nil {
		return nil, MapError(c, errors.ErrUnauthenticated)
	}
	return user, nil
}
