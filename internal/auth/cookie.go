package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// CookieJar is the per-request view of the session cookie. Implementations
// are constructed for each request and passed explicitly to the auth service.
type CookieJar interface {
	SessionToken() string
	SetSessionToken(token string)
	ClearSessionToken()
}

type echoCookieJar struct {
	c      echo.Context
	secure bool
}

// NewCookieJar binds a CookieJar to an echo request/response pair. secure
// marks cookies Secure and should be true in production.
func NewCookieJar(c echo.Context, secure bool) CookieJar {
	return &echoCookieJar{c: c, secure: secure}
}

func (j *echoCookieJar) SessionToken() string {
	cookie, err := j.c.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (j *echoCookieJar) SetSessionToken(token string) {
	j.c.SetCookie(j.cookie(token, int(SessionMaxAge.Seconds())))
}

// ClearSessionToken emits an immediately expiring cookie (Max-Age=0 on the wire).
func (j *echoCookieJar) ClearSessionToken() {
	j.c.SetCookie(j.cookie("", -1))
}

func (j *echoCookieJar) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
