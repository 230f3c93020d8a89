package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"learnauth/internal/service"
)

// AdminHandler serves operator endpoints.
type AdminHandler struct {
	users service.UserService
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(users service.UserService) *AdminHandler {
	return &AdminHandler{users: users}
}

// Stats godoc
// @Summary User statistics
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} repository.UserStats
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(c echo.Context) error {
	stats, err := h.users.Stats(c.Request().Context())
	if err != nil {
		return MapError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
