package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"learnauth/internal/errors"
	"learnauth/internal/logging"
	"learnauth/internal/service"
)

// OAuthFlow runs the provider sign-in round trip.
type OAuthFlow interface {
	Start(ctx context.Context, provider string) (string, error)
	Complete(ctx context.Context, provider, state, code string) (*service.AuthResult, error)
}

// OAuthHandler handles federated sign-in endpoints.
type OAuthHandler struct {
	flow        OAuthFlow
	frontendURL string
	logger      *slog.Logger
}

// NewOAuthHandler creates a new OAuth handler. When frontendURL is set the
// callback redirects the browser there with the outcome in the URL fragment;
// otherwise it answers with JSON.
func NewOAuthHandler(flow OAuthFlow, frontendURL string, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		flow:        flow,
		frontendURL: frontendURL,
		logger:      logger.With(logging.Component("oauth_handler")),
	}
}

// Start godoc
// @Summary Begin provider sign-in
// @Tags auth
// @Param provider path string true "Identity provider" Enums(google, microsoft)
// @Success 302
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/oauth/{provider}/start [get]
func (h *OAuthHandler) Start(c echo.Context) error {
	redirectURL, err := h.flow.Start(c.Request().Context(), c.Param("provider"))
	if err != nil {
		return MapError(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Redirect(http.StatusFound, redirectURL)
}

// Callback godoc
// @Summary Complete provider sign-in
// @Description Exchanges the authorization code, resolves the local account and returns an access token.
// @Description With a frontend redirect configured, answers 302 to it with access_token, token_type and expires_in (or error) in the fragment.
// @Tags auth
// @Produce json
// @Param provider path string true "Identity provider" Enums(google, microsoft)
// @Param state query string true "State issued by the start endpoint"
// @Param code query string false "Authorization code"
// @Param error query string false "Provider error"
// @Success 200 {object} service.AuthResult
// @Success 302
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/oauth/{provider}/callback [get]
func (h *OAuthHandler) Callback(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")

	if c.QueryParam("error") != "" {
		return h.fail(c, echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "sign-in was cancelled or denied at the provider",
			Code:  "PROVIDER_DENIED",
		}))
	}

	result, err := h.flow.Complete(c.Request().Context(), c.Param("provider"), c.QueryParam("state"), c.QueryParam("code"))
	if err != nil {
		return h.fail(c, MapError(c, err))
	}

	if h.frontendURL == "" {
		return c.JSON(http.StatusOK, result)
	}
	return h.redirect(c, url.Values{
		"access_token": {result.AccessToken},
		"token_type":   {result.TokenType},
		"expires_in":   {strconv.FormatInt(result.ExpiresIn, 10)},
	})
}

func (h *OAuthHandler) fail(c echo.Context, he *echo.HTTPError) error {
	if h.frontendURL == "" {
		return he
	}
	body, _ := he.Message.(errors.ErrorResponse)
	h.logger.WarnContext(c.Request().Context(), "federated sign-in failed",
		logging.Provider(c.Param("provider")),
		slog.Int("status", he.Code),
		slog.String("code", body.Code),
		logging.Error(internalError(he)),
	)
	return h.redirect(c, url.Values{"error": {body.Code}})
}

// redirect puts values in the fragment, which browsers never send to servers.
func (h *OAuthHandler) redirect(c echo.Context, values url.Values) error {
	return c.Redirect(http.StatusFound, h.frontendURL+"#"+values.Encode())
}

func internalError(he *echo.HTTPError) error {
	if he.Internal != nil {
		return he.Internal
	}
	return he
}
