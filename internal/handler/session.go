package handler

import (
	"github.com/labstack/echo/v4"

	"todolist/internal/auth"
	"todolist/internal/service"
)

const userContextKey = "auth_user"

// Sessions binds the session cookie to each request.
type Sessions struct {
	auth   service.AuthService
	secure bool
}

// NewSessions creates the session middleware. secure marks cookies Secure.
func NewSessions(authService service.AuthService, secure bool) *Sessions {
	return &Sessions{auth: authService, secure: secure}
}

// Jar returns the cookie jar for the current request.
func (s *Sessions) Jar(c echo.Context) auth.CookieJar {
	return auth.NewCookieJar(c, s.secure)
}

// Require rejects requests without a valid session and stores the resolved
// user in the echo context.
func (s *Sessions) Require(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := s.auth.RequireUser(c.Request().Context(), s.Jar(c))
		if err != nil {
			return respondError(err)
		}
		c.Set(userContextKey, user)
		return next(c)
	}
}
