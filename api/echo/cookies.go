package echo

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	loginCookiePrefix = "entryway_login_"
	browserKeyCookie  = "entryway_browser"
	flashCookie       = "entryway_flash"
)

func loginCookieName(kind string) string {
	return loginCookiePrefix + kind
}

func locationKey(browserKey, kind string) string {
	return browserKey + ":" + kind
}

// loginID returns the opaque login id for kind, or "".
func (a *PasswordlessAPI) loginID(c echo.Context, kind string) string {
	cookie, err := c.Cookie(loginCookieName(kind))
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (a *PasswordlessAPI) setLoginCookie(c echo.Context, kind, loginID string) {
	c.SetCookie(&http.Cookie{
		Name:     loginCookieName(kind),
		Value:    loginID,
		Path:     "/",
		MaxAge:   int(a.policy.LoginTTL / time.Second),
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *PasswordlessAPI) clearLoginCookie(c echo.Context, kind string) {
	c.SetCookie(&http.Cookie{
		Name:     loginCookieName(kind),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// browserKey identifies the browser for saved-location bookkeeping,
// creating the cookie on first sight.
func (a *PasswordlessAPI) browserKey(c echo.Context) string {
	if cookie, err := c.Cookie(browserKeyCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	key := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     browserKeyCookie,
		Value:    key,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return key
}

// setFlash leaves a one-shot message code for the next page load.
func (a *PasswordlessAPI) setFlash(c echo.Context, code string) {
	c.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    code,
		Path:     "/",
		MaxAge:   60,
		HttpOnly: false,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
