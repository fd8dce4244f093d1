package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
)

// RequirePolicy lets the request through only when the token injected by Auth
// grants policy.
func RequirePolicy(policy string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			granted, _ := c.Get(ContextPolicies).([]string)
			if !slices.Contains(granted, policy) {
				return echo.NewHTTPError(http.StatusForbidden, "forbidden")
			}
			return next(c)
		}
	}
}
