package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireScope rejects requests whose token does not carry one of the given scopes.
func RequireScope(scopes ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		allowed[s] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			granted, _ := c.Get(ContextScopes).([]string)
			for _, s := range granted {
				if _, ok := allowed[s]; ok {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
		}
	}
}
