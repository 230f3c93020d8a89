package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"learnauth/internal/service"
)

// UserHandler serves the signed-in user's own endpoints.
type UserHandler struct {
	users service.UserService
	auth  service.AuthService
}

// NewUserHandler creates a handler layer.
func NewUserHandler(users service.UserService, auth service.AuthService) *UserHandler {
	return &UserHandler{users: users, auth: auth}
}

// ChangePasswordRequest sets or replaces the account password. CurrentPassword
// may be empty when the account has no password yet.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// Me godoc
// @Summary Current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Profile
// @Failure 401 {object} errors.ErrorResponse
// @Router /users/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	profile, err := h.users.Profile(c.Request().Context(), user)
	if err != nil {
		return MapError(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

// ChangePassword godoc
// @Summary Set or change password
// @Tags users
// @Accept json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "Passwords"
// @Success 204
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /users/me/password [put]
func (h *UserHandler) ChangePassword(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req ChangePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.auth.SetPassword(c.Request().Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return MapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
