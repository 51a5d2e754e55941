// Package echo exposes the passwordless flow over HTTP. Session identifiers
// in URLs are opaque public references, never storage primary keys.
package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/entryway-auth/entryway/config"
	"github.com/entryway-auth/entryway/domain"
	"github.com/entryway-auth/entryway/notify"
	"github.com/entryway-auth/entryway/services"
)

// PasswordlessAPI holds the HTTP handlers for the sign-in flow.
type PasswordlessAPI struct {
	flow   *services.FlowService
	policy *config.Policy

	// SecureCookies marks cookies Secure; disable only for local development.
	SecureCookies bool
}

// NewPasswordlessAPI creates the API around a flow service.
func NewPasswordlessAPI(flow *services.FlowService, policy *config.Policy) *PasswordlessAPI {
	return &PasswordlessAPI{flow: flow, policy: policy, SecureCookies: true}
}

// RegisterRoutes registers the passwordless routes.
func (a *PasswordlessAPI) RegisterRoutes(e *echo.Echo) {
	e.GET("/:kind/sign_in", a.NewSession)
	e.POST("/:kind/sign_in", a.CreateSession)
	e.GET("/:kind/sign_in/:identifier", a.ShowSession)
	e.PATCH("/:kind/sign_in/:identifier", a.ConfirmSession)
	e.GET("/:kind/sign_in/:identifier/:token", a.ConfirmSession)
	e.GET("/:kind/sign_out", a.DestroySession)
	e.DELETE("/:kind/sign_out", a.DestroySession)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

type signInRequest struct {
	Email string `json:"email" form:"email"`
}

type confirmRequest struct {
	Token string `json:"token" form:"token"`
}

// NewSession describes the sign-in form for a principal kind.
func (a *PasswordlessAPI) NewSession(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"principal_kind":    c.Param("kind"),
		"identifying_field": "email",
	})
}

// CreateSession starts a sign-in: resolves the principal and sends the magic
// link. In paranoid mode the unknown-principal response is byte-identical to
// the success response.
func (a *PasswordlessAPI) CreateSession(c echo.Context) error {
	kind := c.Param("kind")

	var req signInRequest
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing_identifying_value"})
	}

	swt, err := a.flow.RequestSignIn(c.Request().Context(), kind, req.Email, requestMeta(c))
	switch {
	case errors.Is(err, domain.ErrResolverNotRegistered):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown_principal_kind"})
	case errors.Is(err, domain.ErrPrincipalNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	case err != nil:
		log.Error().Err(err).Str("principal_kind", kind).Msg("Sign-in request failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server_error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":             "sent",
		"session_identifier": swt.Session.Identifier,
	})
}

// ShowSession describes the confirmation form bound to a pending session.
func (a *PasswordlessAPI) ShowSession(c echo.Context) error {
	kind := c.Param("kind")

	session, err := a.flow.FindSession(c.Request().Context(), kind, c.Param("identifier"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"session_identifier": session.Identifier,
		"principal_kind":     session.PrincipalKind,
	})
}

// ConfirmSession redeems a token. Success establishes the login cookie and
// redirects; the failure modes keep their distinct status codes so the UI can
// message each one.
func (a *PasswordlessAPI) ConfirmSession(c echo.Context) error {
	kind := c.Param("kind")
	identifier := c.Param("identifier")

	candidate := c.Param("token")
	if candidate == "" {
		var req confirmRequest
		if err := c.Bind(&req); err == nil {
			candidate = req.Token
		}
	}

	ctx := c.Request().Context()
	result, err := a.flow.Confirm(ctx, kind, identifier, candidate)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	case errors.Is(err, domain.ErrInvalidToken):
		// Claim not consumed; the user may retry within the timeout window.
		return c.JSON(http.StatusForbidden, echo.Map{
			"error":              "invalid_token",
			"session_identifier": identifier,
		})
	case errors.Is(err, domain.ErrSessionTimedOut):
		a.setFlash(c, "session_expired")
		return c.Redirect(http.StatusFound, a.flow.FailureRedirect())
	case errors.Is(err, domain.ErrTokenAlreadyClaimed):
		a.setFlash(c, "token_already_claimed")
		return c.Redirect(http.StatusFound, a.flow.FailureRedirect())
	case err != nil:
		log.Error().Err(err).Str("principal_kind", kind).Msg("Confirm failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server_error"})
	}

	a.setLoginCookie(c, kind, result.LoginID)

	saved := a.flow.TakeSavedLocation(ctx, locationKey(a.browserKey(c), kind))
	target := a.flow.SuccessRedirect(result.Principal, c.Request().Host, c.QueryParam("destination"), saved)
	return c.Redirect(http.StatusFound, target)
}

// DestroySession signs the principal kind out and redirects.
func (a *PasswordlessAPI) DestroySession(c echo.Context) error {
	kind := c.Param("kind")

	target, err := a.flow.SignOut(c.Request().Context(), a.loginID(c, kind))
	if err != nil {
		log.Error().Err(err).Str("principal_kind", kind).Msg("Sign-out failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server_error"})
	}

	a.clearLoginCookie(c, kind)
	return c.Redirect(http.StatusFound, target)
}

func requestMeta(c echo.Context) notify.RequestMeta {
	return notify.RequestMeta{
		RemoteAddr: c.RealIP(),
		UserAgent:  c.Request().UserAgent(),
		Host:       c.Request().Host,
	}
}
