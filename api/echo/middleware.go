package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/entryway-auth/entryway/domain"
)

// PrincipalKey is the echo context key the authenticated principal is stored
// under by RequireSignIn.
const PrincipalKey = "entryway.principal"

// RequireSignIn guards routes behind an established login for kind. An
// unauthenticated request has its location saved so Confirm can send the
// client back, then gets redirected to the sign-in form.
func (a *PasswordlessAPI) RequireSignIn(kind string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			if loginID := a.loginID(c, kind); loginID != "" {
				ref, err := a.flow.CurrentPrincipal(ctx, loginID)
				if err == nil {
					c.Set(PrincipalKey, ref)
					return next(c)
				}
				// Stale cookie; fall through to the challenge.
				a.clearLoginCookie(c, kind)
			}

			key := locationKey(a.browserKey(c), kind)
			if err := a.flow.SaveLocation(ctx, key, c.Request().RequestURI); err != nil {
				log.Warn().Err(err).Msg("Failed to save pre-challenge location")
			}
			return c.Redirect(http.StatusFound, "/"+kind+"/sign_in")
		}
	}
}

// CurrentPrincipal returns the principal set by RequireSignIn, if any.
func CurrentPrincipal(c echo.Context) (domain.PrincipalRef, bool) {
	ref, ok := c.Get(PrincipalKey).(domain.PrincipalRef)
	return ref, ok
}
