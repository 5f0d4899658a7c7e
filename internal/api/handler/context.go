package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/ssoserver/user-directory/internal/api/middleware"
)

// ctxActor returns the token subject injected by the Auth middleware, or
// an empty string on routes mounted without it.
func ctxActor(c echo.Context) string {
	sub, _ := c.Get(middleware.ContextSubject).(string)
	return sub
}
